package linkimages

import (
	"context"
	"reflect"
	"testing"

	"github.com/janelia-flyem/omerotools/gateway/gatewaytest"
	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
)

func TestLinkImages(t *testing.T) {
	omero.SetLogMode(omero.SilentMode)
	defer omero.SetLogMode(omero.InfoMode)

	srv := gatewaytest.NewServer()
	u1 := srv.AddUser("user-1", "pw", false)
	u2 := srv.AddUser("user-2", "pw", false)
	u3 := srv.AddUser("user-3", "pw", false)
	src := srv.AddDataset("raw", u1.ID)
	first := srv.AddImage(omero.Image{Name: "CD_s_1_t_3", OwnerID: u1.ID}, src.ID)
	srv.AddImage(omero.Image{Name: "other", OwnerID: u1.ID}, src.ID)
	second := srv.AddImage(omero.Image{Name: "CD_s_1_t_3", OwnerID: u1.ID})
	theirs := srv.AddImage(omero.Image{Name: "CD_s_1_t_3", OwnerID: u2.ID})
	srv.AddImage(omero.Image{Name: "CD_s_1_t_3.tif", OwnerID: u3.ID})

	env := &scripts.Env{Dialer: srv, Password: "pw", Params: scripts.Params{"dataset": "gathered", "target": "CD_s_1_t_3", "users": "1-3"}}
	report, err := scripts.Run(context.Background(), NewScript(), env)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	succeeded, skipped, failed := report.Counts()
	if succeeded != 2 || skipped != 1 || failed != 0 {
		t.Errorf("user-3 has no exact match and should be skipped:\n%s", report)
	}

	tests := []struct {
		user string
		want []int64
	}{
		{"user-1", []int64{second.ID, first.ID}},
		{"user-2", []int64{theirs.ID}},
		{"user-3", nil},
	}
	for _, tc := range tests {
		conn, err := srv.Connect(context.Background(), tc.user, "pw")
		if err != nil {
			t.Fatalf("connect %s: %v", tc.user, err)
		}
		owner, _ := srv.User(tc.user)
		datasets, err := conn.FindDatasets(context.Background(), "gathered", owner.ID)
		conn.Close()
		if err != nil {
			t.Fatalf("FindDatasets: %v", err)
		}
		if tc.want == nil {
			if len(datasets) != 0 {
				t.Errorf("%s: expected no dataset, got %+v", tc.user, datasets)
			}
			continue
		}
		if len(datasets) != 1 {
			t.Fatalf("%s: expected 1 dataset, got %+v", tc.user, datasets)
		}
		if got := srv.DatasetImageIDs(datasets[0].ID); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s: dataset has images %v, want %v", tc.user, got, tc.want)
		}
	}
	if got := srv.DatasetImageIDs(src.ID); len(got) != 2 {
		t.Errorf("source dataset should keep its images, got %v", got)
	}
}

func TestLinkMissingDataset(t *testing.T) {
	srv := gatewaytest.NewServer()
	u := srv.AddUser("user-1", "pw", false)
	img := srv.AddImage(omero.Image{Name: "a", OwnerID: u.ID})
	conn, err := srv.Connect(context.Background(), "user-1", "pw")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()
	if err := conn.LinkImages(context.Background(), 9999, []int64{img.ID}); err == nil {
		t.Errorf("expected error linking into a missing dataset")
	}
}
