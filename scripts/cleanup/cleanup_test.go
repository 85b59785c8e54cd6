package cleanup

import (
	"context"
	"testing"

	"github.com/janelia-flyem/omerotools/gateway/gatewaytest"
	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
)

func TestCleanup(t *testing.T) {
	omero.SetLogMode(omero.SilentMode)
	defer omero.SetLogMode(omero.InfoMode)

	srv := gatewaytest.NewServer()
	admin := srv.AddUser("trainer-1", "pw", true)
	adminDS := srv.AddDataset("course", admin.ID)
	adminImg := srv.AddImage(omero.Image{Name: "a.tif"}, adminDS.ID)
	srv.AddROI(adminImg.ID, omero.Shape{Type: omero.Point})

	u := srv.AddUser("user-1", "pw", false)
	userDS := srv.AddDataset("course", u.ID)
	other := srv.AddDataset("elsewhere", u.ID)
	userImg := srv.AddImage(omero.Image{Name: "a.tif"}, userDS.ID)
	cut := srv.AddImage(omero.Image{Name: "cut.tif"}, userDS.ID, other.ID)
	srv.AddROI(userImg.ID, omero.Shape{Type: omero.Ellipse})
	tag := srv.AddAnnotation(gatewaytest.Annotation{Kind: omero.TagKind, Text: "keep me"}, scripts.ImageRef(userImg.ID), scripts.ImageRef(adminImg.ID))
	rating := srv.AddAnnotation(gatewaytest.Annotation{Kind: omero.LongKind, Namespace: omero.NSInsightRating, Long: 5}, scripts.ImageRef(userImg.ID))
	mapAnn := srv.AddAnnotation(gatewaytest.Annotation{Kind: omero.MapKind}, scripts.ImageRef(userImg.ID))

	env := &scripts.Env{Dialer: srv, User: "trainer-1", Password: "pw", Params: scripts.Params{"dataset": "course", "image": "cut.tif", "users": "1-2"}}
	report, err := scripts.Run(context.Background(), NewScript(), env)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed() {
		t.Fatalf("unexpected failure:\n%s", report)
	}
	if report.Message != "Deleted 2 tag links, 2 ROIs and 1 ratings" {
		t.Errorf("bad message %q", report.Message)
	}
	if len(srv.ROIs(adminImg.ID)) != 0 || len(srv.ROIs(userImg.ID)) != 0 {
		t.Errorf("ROIs not deleted")
	}
	if _, found := srv.Annotation(tag.ID); !found {
		t.Errorf("tag itself should be kept")
	}
	if len(srv.Parents(tag.ID)) != 0 {
		t.Errorf("tag links not deleted: %v", srv.Parents(tag.ID))
	}
	if _, found := srv.Annotation(rating.ID); found {
		t.Errorf("rating not deleted")
	}
	if len(srv.Parents(mapAnn.ID)) != 1 {
		t.Errorf("map annotation should be untouched")
	}
	for _, dsID := range []int64{userDS.ID, other.ID} {
		for _, id := range srv.DatasetImageIDs(dsID) {
			if id == cut.ID {
				t.Errorf("image %d still in dataset %d", cut.ID, dsID)
			}
		}
	}
}

func TestDeleteROIs(t *testing.T) {
	omero.SetLogMode(omero.SilentMode)
	defer omero.SetLogMode(omero.InfoMode)

	srv := gatewaytest.NewServer()
	u := srv.AddUser("me", "pw", false)
	ds := srv.AddDataset("d", u.ID)
	img := srv.AddImage(omero.Image{Name: "x"}, ds.ID)
	empty := srv.AddImage(omero.Image{Name: "y"}, ds.ID)
	srv.AddROI(img.ID, omero.Shape{Type: omero.Point})
	srv.AddROI(img.ID, omero.Shape{Type: omero.Line})

	env := &scripts.Env{Dialer: srv, User: "me", Password: "pw", Params: scripts.Params{"dataset": float64(ds.ID)}}
	report, err := scripts.Run(context.Background(), NewDeleteROIsScript(), env)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	succeeded, skipped, failed := report.Counts()
	if succeeded != 1 || skipped != 1 || failed != 0 {
		t.Errorf("expected 1/1/0, got %d/%d/%d", succeeded, skipped, failed)
	}
	if len(srv.ROIs(img.ID)) != 0 || len(srv.ROIs(empty.ID)) != 0 {
		t.Errorf("ROIs left")
	}
}

func TestDeleteAnnotations(t *testing.T) {
	omero.SetLogMode(omero.SilentMode)
	defer omero.SetLogMode(omero.InfoMode)

	srv := gatewaytest.NewServer()
	u := srv.AddUser("me", "pw", false)
	ds := srv.AddDataset("d", u.ID)
	img := srv.AddImage(omero.Image{Name: "x"}, ds.ID)
	doomed := srv.AddAnnotation(gatewaytest.Annotation{Kind: omero.MapKind, Namespace: omero.NSROIExport}, scripts.ImageRef(img.ID))
	kept := srv.AddAnnotation(gatewaytest.Annotation{Kind: omero.MapKind, Namespace: omero.NSClientMapAnnotation}, scripts.ImageRef(img.ID))

	env := &scripts.Env{Dialer: srv, User: "me", Password: "pw", Params: scripts.Params{"dataset": float64(ds.ID)}}
	if _, err := scripts.Run(context.Background(), NewDeleteAnnotationsScript(), env); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, found := srv.Annotation(doomed.ID); found {
		t.Errorf("export annotation not deleted")
	}
	if _, found := srv.Annotation(kept.ID); !found {
		t.Errorf("client annotation deleted")
	}

	env.Params = scripts.Params{"dataset": float64(ds.ID), "ns": omero.NSClientMapAnnotation}
	if _, err := scripts.Run(context.Background(), NewDeleteAnnotationsScript(), env); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, found := srv.Annotation(kept.ID); found {
		t.Errorf("client annotation not deleted with ns")
	}
}
