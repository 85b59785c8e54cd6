package idrmaps

import (
	"context"
	"testing"

	"github.com/janelia-flyem/omerotools/gateway/gatewaytest"
	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
)

func TestCopyMapAnnotations(t *testing.T) {
	omero.SetLogMode(omero.SilentMode)
	defer omero.SetLogMode(omero.InfoMode)

	idr := gatewaytest.NewServer()
	public := idr.AddUser(PublicUser, PublicPassword, false)
	idrProject := idr.AddProject("idr0021-lawo-pericentriolarmaterial/experimentA", public.ID)
	idrDS := idr.AddDataset("CDK5RAP2-C", public.ID, idrProject.ID)
	idr.AddDataset("NEDD1ab", public.ID, idrProject.ID)
	idrImg := idr.AddImage(omero.Image{Name: "cell1.tif"}, idrDS.ID)
	genes := []omero.KeyValue{{Key: "Gene Symbol", Value: "CDK5RAP2"}, {Key: "Antibody", Value: "anti-CDK5RAP2"}}
	idr.AddAnnotation(gatewaytest.Annotation{Kind: omero.MapKind, Namespace: "openmicroscopy.org/mapr/gene", Values: genes}, scripts.ImageRef(idrImg.ID))
	idr.AddAnnotation(gatewaytest.Annotation{Kind: omero.MapKind, Namespace: omero.NSBulkAnnotations, Values: []omero.KeyValue{{Key: "Cell", Value: "1"}}}, scripts.ImageRef(idrImg.ID))

	local := gatewaytest.NewServer()
	u := local.AddUser("user-1", "pw", false)
	project := local.AddProject("idr0021", u.ID)
	ds := local.AddDataset("CDK5RAP2-C", u.ID, project.ID)
	local.AddDataset("Extra", u.ID, project.ID)
	img := local.AddImage(omero.Image{Name: "cell1.tif"}, ds.ID)
	local.AddImage(omero.Image{Name: "cell2.tif"}, ds.ID)

	s := NewScript()
	s.Source = idr
	env := &scripts.Env{Dialer: local, User: "user-1", Password: "pw", Params: scripts.Params{
		"idr":     float64(idrProject.ID),
		"project": float64(project.ID),
	}}
	report, err := scripts.Run(context.Background(), s, env)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Message != "Copied 2 map annotations" {
		t.Errorf("unexpected message %q", report.Message)
	}
	succeeded, skipped, failed := report.Counts()
	if succeeded != 1 || skipped != 2 || failed != 0 {
		t.Errorf("expected cell1 copied, cell2 and Extra skipped:\n%s", report)
	}
	anns := local.Annotations(scripts.ImageRef(img.ID), omero.MapKind)
	if len(anns) != 2 {
		t.Fatalf("expected 2 map annotations, got %d", len(anns))
	}
	if anns[0].Namespace != "openmicroscopy.org/mapr/gene" || len(anns[0].Values) != 2 || anns[0].Values[0] != genes[0] {
		t.Errorf("bad copy %+v", anns[0])
	}
}

func TestCopyNoPublicLogin(t *testing.T) {
	omero.SetLogMode(omero.SilentMode)
	defer omero.SetLogMode(omero.InfoMode)

	local := gatewaytest.NewServer()
	local.AddUser("user-1", "pw", false)
	s := NewScript()
	s.Source = gatewaytest.NewServer()
	env := &scripts.Env{Dialer: local, User: "user-1", Password: "pw", Params: scripts.Params{"idr": float64(1), "project": float64(2)}}
	if _, err := scripts.Run(context.Background(), s, env); err == nil {
		t.Errorf("expected error without a public account")
	}
}
