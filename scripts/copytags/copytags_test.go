package copytags

import (
	"context"
	"testing"

	"github.com/janelia-flyem/omerotools/gateway/gatewaytest"
	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
)

func TestCopyTags(t *testing.T) {
	omero.SetLogMode(omero.SilentMode)
	defer omero.SetLogMode(omero.InfoMode)

	srv := gatewaytest.NewServer()
	trainer := srv.AddUser("trainer-1", "pw", true)
	src := srv.AddDataset("course", trainer.ID)
	a := srv.AddImage(omero.Image{Name: "a.tif"}, src.ID)
	b := srv.AddImage(omero.Image{Name: "b.tif"}, src.ID)
	tag := srv.AddAnnotation(gatewaytest.Annotation{Kind: omero.TagKind, Text: "interesting"}, scripts.ImageRef(a.ID), scripts.ImageRef(b.ID))
	srv.AddAnnotation(gatewaytest.Annotation{Kind: omero.LongKind, Namespace: omero.NSInsightRating, Long: 4}, scripts.ImageRef(b.ID))
	srv.AddAnnotation(gatewaytest.Annotation{Kind: omero.LongKind, Namespace: "other", Long: 9}, scripts.ImageRef(a.ID))

	u := srv.AddUser("user-1", "pw", false)
	dst := srv.AddDataset("course", u.ID)
	ua := srv.AddImage(omero.Image{Name: "a.tif"}, dst.ID)
	ub := srv.AddImage(omero.Image{Name: "b.tif"}, dst.ID)
	srv.AddUser("user-2", "pw", false) // no dataset

	env := &scripts.Env{Dialer: srv, User: "trainer-1", Password: "pw", Params: scripts.Params{"dataset": "course", "users": "1-3"}}
	report, err := scripts.Run(context.Background(), NewScript(), env)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	succeeded, skipped, _ := report.Counts()
	if succeeded != 1 || skipped != 2 {
		t.Errorf("expected user-1 done and the others skipped:\n%s", report)
	}
	if tags := srv.Annotations(scripts.ImageRef(ua.ID), omero.TagKind); len(tags) != 1 || tags[0].ID != tag.ID {
		t.Errorf("tag not linked to a.tif: %+v", tags)
	}
	if longs := srv.Annotations(scripts.ImageRef(ua.ID), omero.LongKind); len(longs) != 0 {
		t.Errorf("unexpected rating on a.tif: %+v", longs)
	}
	ratings := srv.Annotations(scripts.ImageRef(ub.ID), omero.LongKind)
	if len(ratings) != 1 || ratings[0].Long != 4 || ratings[0].Namespace != omero.NSInsightRating {
		t.Errorf("bad rating on b.tif: %+v", ratings)
	}
}
