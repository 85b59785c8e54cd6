package minmax

import (
	"context"
	"errors"
	"testing"

	"github.com/janelia-flyem/omerotools/gateway/gatewaytest"
	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
	"github.com/janelia-flyem/omerotools/tables"
)

func newPlate(t *testing.T) (*gatewaytest.Server, *omero.Plate, *omero.Image) {
	srv := gatewaytest.NewServer()
	u := srv.AddUser("user-1", "pw", false)
	a := srv.AddImage(omero.Image{Name: "A1", OwnerID: u.ID, Channels: []omero.Channel{
		{Label: "DAPI", GlobalMin: 3, GlobalMax: 4095},
		{Label: "GFP", GlobalMin: 10.4, GlobalMax: 250.6},
	}})
	b := srv.AddImage(omero.Image{Name: "B2", OwnerID: u.ID, Channels: []omero.Channel{
		{Label: "DAPI", GlobalMin: 0, GlobalMax: 1000},
		{Label: "GFP", GlobalMin: 5, GlobalMax: 60},
	}})
	plate := srv.AddPlate("plate1", u.ID, map[[2]int]int64{{1, 1}: b.ID, {0, 0}: a.ID})
	return srv, plate, a
}

func TestBuild(t *testing.T) {
	omero.SetLogMode(omero.SilentMode)
	defer omero.SetLogMode(omero.InfoMode)

	srv, plate, _ := newPlate(t)
	conn, err := srv.Connect(context.Background(), "user-1", "pw")
	if err != nil {
		t.Fatal(err)
	}
	report := omero.NewReport(Name)
	table, err := Build(context.Background(), conn, plate.ID, report)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if table.NumRows() != 2 || len(table.Columns) != 4 {
		t.Fatalf("expected 2 rows and 4 columns, got %d and %d", table.NumRows(), len(table.Columns))
	}
	expected := map[string][]int64{
		"Ch0Min": {3, 0},
		"Ch0Max": {4095, 1000},
		"Ch1Min": {10, 5},
		"Ch1Max": {251, 60},
	}
	for name, values := range expected {
		col, found := table.Column(name)
		if !found {
			t.Fatalf("no column %s", name)
		}
		if col.Kind != tables.LongColumn {
			t.Errorf("column %s has kind %s", name, col.Kind)
		}
		for i, v := range values {
			if col.Longs[i] != v {
				t.Errorf("%s[%d] = %d, expected %d", name, i, col.Longs[i], v)
			}
		}
	}
	if succeeded, _, _ := report.Counts(); succeeded != 2 {
		t.Errorf("expected 2 wells:\n%s", report)
	}
}

func TestRun(t *testing.T) {
	omero.SetLogMode(omero.SilentMode)
	defer omero.SetLogMode(omero.InfoMode)

	srv, plate, _ := newPlate(t)
	env := &scripts.Env{Dialer: srv, User: "user-1", Password: "pw", Params: scripts.Params{"plate": float64(plate.ID)}}
	report, err := scripts.Run(context.Background(), NewScript(), env)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	anns := srv.Annotations(omero.ObjectRef{Type: omero.PlateType, ID: plate.ID}, omero.FileKind)
	if len(anns) != 1 {
		t.Fatalf("expected 1 table on the plate, got %d:\n%s", len(anns), report)
	}
	if anns[0].Namespace != omero.NSBulkAnnotations || anns[0].File.MimeType != tables.MimeType {
		t.Errorf("bad file annotation %+v", anns[0].File)
	}
	table, err := tables.Decode(anns[0].Data)
	if err != nil {
		t.Fatal(err)
	}
	if table.Name != TableName || table.IDName != "Well" || table.IDKind != tables.WellColumn {
		t.Errorf("bad table header %s %s %s", table.Name, table.IDName, table.IDKind)
	}
}

func TestRunEmptyPlate(t *testing.T) {
	omero.SetLogMode(omero.SilentMode)
	defer omero.SetLogMode(omero.InfoMode)

	srv := gatewaytest.NewServer()
	u := srv.AddUser("user-1", "pw", false)
	plate := srv.AddPlate("empty", u.ID, nil)
	env := &scripts.Env{Dialer: srv, User: "user-1", Password: "pw", Params: scripts.Params{"plate": float64(plate.ID)}}
	_, err := scripts.Run(context.Background(), NewScript(), env)
	if !errors.Is(err, omero.ErrNotFound) {
		t.Errorf("expected not found error, got %v", err)
	}
}
