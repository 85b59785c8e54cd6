package channelnames

import (
	"context"
	"reflect"
	"testing"

	"github.com/janelia-flyem/omerotools/gateway/gatewaytest"
	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
)

func TestParseChannelNames(t *testing.T) {
	tests := []struct {
		in   string
		sep  string
		want map[int]string
		err  bool
	}{
		{"1:H2B,2:nuclear lamina", ",", map[int]string{0: "H2B", 1: "nuclear lamina"}, false},
		{"1:DAPI; 2:GFP", ";", map[int]string{0: "DAPI", 1: "GFP"}, false},
		{"3:Cy5", ",", map[int]string{2: "Cy5"}, false},
		{"DAPI,GFP", ",", map[int]string{0: "DAPI", 1: "GFP"}, false},
		{"a:b:c", ";", map[int]string{0: "b:c"}, false},
		{"0:bad", ",", nil, true},
		{" ; ", ";", nil, true},
	}
	for _, tc := range tests {
		got, err := ParseChannelNames(tc.in, tc.sep)
		if tc.err {
			if err == nil {
				t.Errorf("ParseChannelNames(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseChannelNames(%q): %v", tc.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("ParseChannelNames(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestChannelNames(t *testing.T) {
	omero.SetLogMode(omero.SilentMode)
	defer omero.SetLogMode(omero.InfoMode)

	srv := gatewaytest.NewServer()
	u := srv.AddUser("user-1", "pw", false)
	ds := srv.AddDataset("practical", u.ID)
	two := srv.AddImage(omero.Image{Name: "two", Channels: []omero.Channel{{Label: "0"}, {Label: "1"}}}, ds.ID)
	one := srv.AddImage(omero.Image{Name: "one", Channels: []omero.Channel{{Label: "0"}}}, ds.ID)

	env := &scripts.Env{Dialer: srv, Password: "pw", Params: scripts.Params{"target": "practical", "users": "1"}}
	report, err := scripts.Run(context.Background(), NewScript(), env)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed() {
		t.Fatalf("unexpected failure:\n%s", report)
	}
	img, _ := srv.Image(two.ID)
	if labels := img.ChannelLabels(); !reflect.DeepEqual(labels, []string{"H2B", "nuclear lamina"}) {
		t.Errorf("bad labels %v", labels)
	}
	img, _ = srv.Image(one.ID)
	if labels := img.ChannelLabels(); !reflect.DeepEqual(labels, []string{"H2B"}) {
		t.Errorf("bad labels %v", labels)
	}
}

func TestChannelNamesFromMaps(t *testing.T) {
	omero.SetLogMode(omero.SilentMode)
	defer omero.SetLogMode(omero.InfoMode)

	srv := gatewaytest.NewServer()
	u := srv.AddUser("trainer-1", "pw", false)
	proj := srv.AddProject("idr0021", u.ID)
	ds := srv.AddDataset("GFP", u.ID, proj.ID)
	chans := []omero.Channel{{Label: "0"}, {Label: "1"}}
	mapped := srv.AddImage(omero.Image{Name: "mapped", Channels: chans}, ds.ID)
	noKey := srv.AddImage(omero.Image{Name: "no key", Channels: chans}, ds.ID)
	srv.AddImage(omero.Image{Name: "bare", Channels: chans}, ds.ID)
	srv.AddAnnotation(gatewaytest.Annotation{
		Kind:      omero.MapKind,
		Namespace: omero.NSBulkAnnotations,
		Values:    []omero.KeyValue{{Key: "Gene", Value: "CENPA"}, {Key: MapKey, Value: "1:DAPI; 2:GFP"}},
	}, scripts.ImageRef(mapped.ID))
	srv.AddAnnotation(gatewaytest.Annotation{
		Kind:      omero.MapKind,
		Namespace: omero.NSBulkAnnotations,
		Values:    []omero.KeyValue{{Key: "Gene", Value: "CENPA"}},
	}, scripts.ImageRef(noKey.ID))

	env := &scripts.Env{Dialer: srv, User: "trainer-1", Password: "pw", Params: scripts.Params{"IDs": []interface{}{float64(proj.ID)}}}
	report, err := scripts.Run(context.Background(), NewMapsScript(), env)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	succeeded, skipped, failed := report.Counts()
	if succeeded != 1 || skipped != 2 || failed != 0 {
		t.Errorf("expected 1/2/0 results, got %d/%d/%d:\n%s", succeeded, skipped, failed, report)
	}
	if report.Message != "Renamed channels of 1 images" {
		t.Errorf("bad message %q", report.Message)
	}
	img, _ := srv.Image(mapped.ID)
	if labels := img.ChannelLabels(); !reflect.DeepEqual(labels, []string{"DAPI", "GFP"}) {
		t.Errorf("bad labels %v", labels)
	}
}
