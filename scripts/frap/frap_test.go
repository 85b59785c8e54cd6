package frap

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/janelia-flyem/omerotools/gateway/gatewaytest"
	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
)

type memExporter map[string][]byte

func (m memExporter) Export(ctx context.Context, name string, data []byte) (string, error) {
	m[name] = data
	return "mem://" + name, nil
}

func TestFirstEllipse(t *testing.T) {
	rois := []omero.ROI{
		{ID: 1, Shapes: []omero.Shape{{ID: 10, Type: omero.Rectangle}}},
		{ID: 2, Shapes: []omero.Shape{{ID: 11, Type: omero.Point}, {ID: 12, Type: omero.Ellipse}, {ID: 13, Type: omero.Ellipse}}},
	}
	shape, err := FirstEllipse(rois)
	if err != nil || shape.ID != 12 {
		t.Errorf("expected shape 12, got %d, %v", shape.ID, err)
	}
	if _, err := FirstEllipse(rois[:1]); !errors.Is(err, ErrNoEllipse) {
		t.Errorf("expected ErrNoEllipse, got %v", err)
	}
}

func TestKeyValues(t *testing.T) {
	kv := KeyValues([]float64{100, 12.5})
	if len(kv) != 2 || kv[0] != (omero.KeyValue{Key: "0", Value: "100"}) || kv[1] != (omero.KeyValue{Key: "1", Value: "12.5"}) {
		t.Errorf("bad key values %v", kv)
	}
}

func TestPlot(t *testing.T) {
	tests := [][]float64{
		{100, 20, 45, 70, 85, 90},
		{7},
		{3, 3, 3},
	}
	for _, means := range tests {
		data, err := Plot(means)
		if err != nil {
			t.Fatalf("Plot(%v): %v", means, err)
		}
		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("plot of %v is not a valid image: %v", means, err)
		}
		if b := img.Bounds(); b.Dx() != PlotWidth || b.Dy() != PlotHeight {
			t.Errorf("plot is %dx%d", b.Dx(), b.Dy())
		}
	}
	if _, err := Plot(nil); err == nil {
		t.Errorf("expected error for empty curve")
	}
}

func TestRun(t *testing.T) {
	omero.SetLogMode(omero.SilentMode)
	defer omero.SetLogMode(omero.InfoMode)

	srv := gatewaytest.NewServer()
	u := srv.AddUser("user-1", "pw", false)
	ds := srv.AddDataset("frap", u.ID)
	bleached := srv.AddImage(omero.Image{Name: "bleach.tif", SizeT: 3, Channels: []omero.Channel{{Label: "GFP"}, {Label: "RFP"}}}, ds.ID)
	plain := srv.AddImage(omero.Image{Name: "plain.tif", SizeT: 2, Channels: []omero.Channel{{Label: "GFP"}}}, ds.ID)

	srv.AddROI(plain.ID, omero.Shape{Type: omero.Rectangle, Z: omero.Unset, T: omero.Unset, C: omero.Unset})
	roi := srv.AddROI(bleached.ID,
		omero.Shape{Type: omero.Ellipse, Z: 0, T: omero.Unset, C: omero.Unset},
		omero.Shape{Type: omero.Ellipse, Z: 0, T: omero.Unset, C: omero.Unset})
	shapeID := roi.Shapes[0].ID
	for t, mean := range []float64{200, 40, 120.5} {
		srv.SetStats(shapeID, 0, t, 0, omero.ChannelStats{Mean: mean})
		srv.SetStats(shapeID, 0, t, 1, omero.ChannelStats{Mean: 1})
	}

	exporter := memExporter{}
	env := &scripts.Env{
		Dialer:   srv,
		User:     "user-1",
		Password: "pw",
		Params:   scripts.Params{"Data_Type": "Dataset", "IDs": []interface{}{float64(ds.ID)}},
		Exporter: exporter,
	}
	report, err := scripts.Run(context.Background(), NewScript(), env)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Message != "Processed 1 images" {
		t.Errorf("unexpected message %q", report.Message)
	}
	if succeeded, skipped, _ := report.Counts(); succeeded != 1 || skipped != 1 {
		t.Errorf("expected plain.tif skipped:\n%s", report)
	}
	if srv.StatsCalls != 3 {
		t.Errorf("expected 3 stats requests, got %d", srv.StatsCalls)
	}

	ref := scripts.ImageRef(bleached.ID)
	maps := srv.Annotations(ref, omero.MapKind)
	if len(maps) != 1 || maps[0].Namespace != omero.NSFRAP {
		t.Fatalf("expected 1 FRAP map annotation, got %+v", maps)
	}
	if v := maps[0].Values; len(v) != 3 || v[1].Value != "40" || v[2].Value != "120.5" {
		t.Errorf("bad curve %v", v)
	}
	files := srv.Annotations(ref, omero.FileKind)
	if len(files) != 1 || files[0].File.Name != "bleach.tif_FRAP_plot.png" || files[0].File.MimeType != PlotMimeType {
		t.Fatalf("expected plot file, got %+v", files)
	}
	if !bytes.Equal(files[0].Data, exporter["bleach.tif_FRAP_plot.png"]) {
		t.Errorf("local copy differs from uploaded plot")
	}
	if len(srv.Annotations(scripts.ImageRef(plain.ID), "")) != 0 {
		t.Errorf("skipped image should not be annotated")
	}
}
