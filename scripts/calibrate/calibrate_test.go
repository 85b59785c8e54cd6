package calibrate

import (
	"context"
	"testing"

	"github.com/janelia-flyem/omerotools/gateway/gatewaytest"
	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
)

func TestCalibrate(t *testing.T) {
	omero.SetLogMode(omero.SilentMode)
	defer omero.SetLogMode(omero.InfoMode)

	srv := gatewaytest.NewServer()
	var imageIDs []int64
	for _, name := range []string{"user-1", "user-2"} {
		u := srv.AddUser(name, "pw", false)
		srv.AddDataset("practical", u.ID) // older dataset with the same name
		ds := srv.AddDataset("practical", u.ID)
		imageIDs = append(imageIDs, srv.AddImage(omero.Image{Name: "x"}, ds.ID).ID)
	}
	u3 := srv.AddUser("user-3", "pw", false)
	srv.AddDataset("other", u3.ID)

	env := &scripts.Env{
		Dialer:   srv,
		Password: "pw",
		Params:   scripts.Params{"target": "practical", "users": "1-4", "size": 0.5},
	}
	report, err := scripts.Run(context.Background(), NewScript(), env)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	succeeded, skipped, failed := report.Counts()
	// user-3 has no such dataset and user-4 does not exist
	if succeeded != 2 || skipped != 1 || failed != 1 {
		t.Errorf("expected 2/1/1 results, got %d/%d/%d:\n%s", succeeded, skipped, failed, report)
	}
	for _, id := range imageIDs {
		img, _ := srv.Image(id)
		want := omero.Length{Value: 0.5, Unit: DefaultUnit}
		if img.PhysicalSizeX != want || img.PhysicalSizeY != want {
			t.Errorf("image %d has size %v x %v", id, img.PhysicalSizeX, img.PhysicalSizeY)
		}
	}
}
