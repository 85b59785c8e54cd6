package roiexport

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/janelia-flyem/omerotools/gateway"
	"github.com/janelia-flyem/omerotools/gateway/gatewaytest"
	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
	"github.com/janelia-flyem/omerotools/tables"
)

type fixture struct {
	srv      *gatewaytest.Server
	conn     gateway.Conn
	project  *omero.Project
	gfp, dna *omero.Dataset
	imgA     *omero.Image
	imgB     *omero.Image
	shape1   int64
	shape3   int64
}

func newFixture(t *testing.T) *fixture {
	omero.SetLogMode(omero.SilentMode)
	t.Cleanup(func() { omero.SetLogMode(omero.InfoMode) })

	f := &fixture{srv: gatewaytest.NewServer()}
	user := f.srv.AddUser("user-1", "pw", false)
	f.project = f.srv.AddProject("idr0021", user.ID)
	f.gfp = f.srv.AddDataset("GFP", user.ID, f.project.ID)
	f.dna = f.srv.AddDataset("nuclei", user.ID, f.project.ID)

	f.imgA = f.srv.AddImage(omero.Image{
		Name:     "a,1.tif",
		SizeZ:    3,
		SizeT:    4,
		Channels: []omero.Channel{{Label: "DAPI"}, {Label: "GFP"}},
	}, f.gfp.ID)
	f.imgB = f.srv.AddImage(omero.Image{
		Name:     "b.tif",
		Channels: []omero.Channel{{Label: "DAPI"}},
	}, f.dna.ID)

	roi := f.srv.AddROI(f.imgA.ID,
		omero.Shape{Type: omero.Ellipse, Text: "cell, 1", Z: omero.NewIndex(0), T: omero.NewIndex(0), C: omero.NewIndex(1)},
		omero.Shape{Type: omero.Rectangle, Z: omero.NewIndex(0), T: omero.NewIndex(0), C: omero.NewIndex(0)},
		omero.Shape{Type: omero.Polygon, Z: omero.Unset, T: omero.NewIndex(2), C: omero.NewIndex(1)},
	)
	f.srv.AddROI(f.imgA.ID, omero.Shape{Type: omero.Point, Z: omero.NewIndex(0), T: omero.NewIndex(0), C: omero.Unset})
	f.shape1 = roi.Shapes[0].ID
	f.shape3 = roi.Shapes[2].ID

	f.srv.SetStats(f.shape1, 0, 0, 0, omero.ChannelStats{Points: 20, Min: 1, Max: 10, Sum: 100, Mean: 5, StdDev: 1})
	f.srv.SetStats(f.shape1, 0, 0, 1, omero.ChannelStats{Points: 20, Min: 2, Max: 20, Sum: 160, Mean: 8, StdDev: 2})
	for z := 0; z < 3; z++ {
		f.srv.SetStats(f.shape3, z, 2, 0, omero.ChannelStats{Points: 30, Min: 3, Max: 7, Mean: 4})
		f.srv.SetStats(f.shape3, z, 2, 1, omero.ChannelStats{Points: 30, Min: 4, Max: 9, Mean: 6})
	}

	conn, err := f.srv.Connect(context.Background(), "user-1", "pw")
	if err != nil {
		t.Fatal(err)
	}
	f.conn = conn
	t.Cleanup(func() { conn.Close() })
	return f
}

func TestResolveProject(t *testing.T) {
	f := newFixture(t)
	images, err := Resolve(context.Background(), f.conn, omero.ProjectType, []int64{f.project.ID}, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(images) != 2 || images[0].ID != f.imgA.ID || images[1].ID != f.imgB.ID {
		t.Fatalf("bad images: %v", images)
	}
	if images[0].DatasetName() != "GFP" || images[0].Project == nil || images[0].Project.ID != f.project.ID {
		t.Errorf("bad parents of first image: %+v %+v", images[0].Dataset, images[0].Project)
	}
}

func TestResolveImagesKeepsDuplicates(t *testing.T) {
	f := newFixture(t)
	f.srv.LinkImage(f.imgA.ID, f.dna.ID)
	images, err := Resolve(context.Background(), f.conn, omero.DatasetType, []int64{f.gfp.ID, f.dna.ID}, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(images) != 3 {
		t.Fatalf("expected 3 images with duplicate, got %d", len(images))
	}
	if images[2].ID != f.imgA.ID || images[2].DatasetName() != "nuclei" {
		t.Errorf("duplicate should carry its own parent, got %+v", images[2].Dataset)
	}
}

func TestResolveImageParents(t *testing.T) {
	f := newFixture(t)
	report := omero.NewReport(Name)
	images, err := Resolve(context.Background(), f.conn, omero.ImageType, []int64{999, f.imgA.ID}, report)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(images) != 1 || images[0].DatasetName() != "GFP" || images[0].Project == nil {
		t.Errorf("bad resolved image: %+v", images)
	}
	if _, skipped, _ := report.Counts(); skipped != 1 {
		t.Errorf("missing image should be recorded as skipped")
	}
}

func TestResolveNoImages(t *testing.T) {
	f := newFixture(t)
	_, err := Resolve(context.Background(), f.conn, omero.DatasetType, []int64{12345}, nil)
	if !errors.Is(err, ErrNoImages) {
		t.Errorf("expected ErrNoImages, got %v", err)
	}
	if _, err := Resolve(context.Background(), f.conn, omero.PlateType, []int64{1}, nil); !errors.Is(err, omero.ErrInvalidArgument) {
		t.Errorf("expected invalid argument for plates, got %v", err)
	}
}

func TestValidChannels(t *testing.T) {
	got := ValidChannels([]int{1, 5}, 4)
	if !reflect.DeepEqual(got, []int{0}) {
		t.Errorf("expected [0], got %v", got)
	}
	got = ValidChannels([]int{0, 2, 4, -1}, 4)
	if !reflect.DeepEqual(got, []int{1, 3}) {
		t.Errorf("expected [1 3], got %v", got)
	}
}

func TestFilterChannel(t *testing.T) {
	tests := []struct {
		labels  []string
		dataset string
		want    int
	}{
		{[]string{"DAPI", "GFP-dataset1"}, "dataset1", 1},
		{[]string{"DAPI", "GFP"}, "dataset1", 0},
		{[]string{"DAPI", "GFP"}, "GFP_cells", 1},
		{[]string{"GFP", "GFP"}, "GFP", 0},
		{[]string{"", "H2B"}, "H2B", 1},
		{[]string{"DAPI"}, "", 0},
	}
	for _, tc := range tests {
		if got := FilterChannel(tc.labels, tc.dataset); got != tc.want {
			t.Errorf("FilterChannel(%v, %q) = %d, want %d", tc.labels, tc.dataset, got, tc.want)
		}
	}
}

func TestExtract(t *testing.T) {
	f := newFixture(t)
	img := f.imgA.WithParents(f.gfp, f.project)
	rows, err := Extract(context.Background(), f.conn, img, 0, Options{Channels: []int{1, 2, 5}})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	// ellipse on one plane and polygon on an unknown plane, two channels each
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if f.srv.StatsCalls != 1 {
		t.Errorf("expected 1 stats call, got %d", f.srv.StatsCalls)
	}
	first := rows[0]
	if first.ShapeID != f.shape1 || first.ShapeType != "ellipse" || first.Label != `"cell. 1"` {
		t.Errorf("bad first row: %+v", first)
	}
	if first.ImageName != "a.1.tif" || first.Channel != "DAPI" || first.C.String() != "2" {
		t.Errorf("bad first row names: %+v", first)
	}
	if !first.HasStats || first.Mean != 5 || first.Points != 20 {
		t.Errorf("bad first row stats: %+v", first)
	}
	if rows[1].Channel != "GFP" || rows[1].Mean != 8 {
		t.Errorf("bad second row: %+v", rows[1])
	}
	unknown := rows[2]
	if unknown.ShapeID != f.shape3 || unknown.HasStats || unknown.Z.IsSet() {
		t.Errorf("unknown plane row should have no stats: %+v", unknown)
	}
	if unknown.Field("mean") != "" || unknown.Field("z") != "" || unknown.Field("t") != "3" {
		t.Errorf("bad unknown plane fields: mean=%q z=%q t=%q", unknown.Field("mean"), unknown.Field("z"), unknown.Field("t"))
	}
}

func TestExtractAllPlanes(t *testing.T) {
	srv := gatewaytest.NewServer()
	srv.AddUser("u", "pw", false)
	img := srv.AddImage(omero.Image{Name: "zstack", SizeZ: 3, SizeT: 3, Channels: []omero.Channel{{Label: "DAPI"}}})
	srv.AddROI(img.ID, omero.Shape{Type: omero.Rectangle, Z: omero.Unset, T: omero.NewIndex(2), C: omero.NewIndex(0)})
	conn, _ := srv.Connect(context.Background(), "u", "pw")
	defer conn.Close()

	rows, err := Extract(context.Background(), conn, img, 0, Options{Channels: []int{1}, AllPlanes: true})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i, r := range rows {
		z, zset := r.Z.Int()
		tt, tset := r.T.Int()
		if !zset || z != i || !tset || tt != 2 {
			t.Errorf("row %d: expected z=%d t=2, got z=%v t=%v", i, i, r.Z, r.T)
		}
		if !r.HasStats {
			t.Errorf("row %d should have stats", i)
		}
	}
}

func TestExtractStatsFailure(t *testing.T) {
	f := newFixture(t)
	f.srv.FailStats(f.shape1, errors.New("stats service down"))
	img := f.imgA.WithParents(f.gfp, f.project)
	if _, err := Extract(context.Background(), f.conn, img, 0, Options{Channels: []int{1}}); err == nil {
		t.Errorf("expected stats error")
	}
}

func TestExportStatsFailure(t *testing.T) {
	f := newFixture(t)
	f.srv.FailStats(f.shape1, errors.New("stats service down"))
	cfg := Config{DataType: omero.ProjectType, IDs: []int64{f.project.ID}, Channels: []int{1, 2}}
	report := omero.NewReport(Name)
	res, err := Export(context.Background(), f.conn, nil, cfg, report)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	outcomes := make(map[string]omero.Outcome)
	for _, r := range report.Results {
		outcomes[r.Unit] = r.Outcome
	}
	unitA := "image " + strconv.FormatInt(f.imgA.ID, 10)
	unitB := "image " + strconv.FormatInt(f.imgB.ID, 10)
	if outcomes[unitA] != omero.Failed {
		t.Errorf("expected %s to fail, got %s:\n%s", unitA, outcomes[unitA], report)
	}
	if outcome, found := outcomes[unitB]; !found || outcome != omero.Success {
		t.Errorf("expected %s to succeed:\n%s", unitB, report)
	}
	if len(res.Summaries) != 2 {
		t.Errorf("expected a summary per image, got %d", len(res.Summaries))
	}
}

func TestAggregate(t *testing.T) {
	imgX := &omero.Image{ID: 1, Channels: []omero.Channel{{Label: "DAPI"}, {Label: "GFP"}}, Dataset: &omero.Dataset{Name: "GFP"}}
	imgY := &omero.Image{ID: 2}
	imgZ := &omero.Image{ID: 3}
	rows := []ExportRow{
		{ImageID: 1, HasStats: true, Min: 3, Max: 10, Mean: 6, Points: 10},
		{ImageID: 1, HasStats: true, Min: 1, Max: 12, Mean: 4, Points: 30},
		{ImageID: 1},
		{ImageID: 3, HasStats: true, Min: 5, Max: 5, Mean: 5, Points: 2},
	}
	summaries := Aggregate([]*omero.Image{imgX, imgY, imgZ}, rows)
	if len(summaries) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(summaries))
	}
	x := summaries[0]
	want := SummaryRow{FilterChannel: 2, ShapeCount: 3, MinIntensity: 1, MaxIntensity: 12, MeanIntensity: 5, MinPoints: 10, MaxPoints: 30, MeanPoints: 20}
	if x != want {
		t.Errorf("bad summary for X:\n got %+v\nwant %+v", x, want)
	}
	if summaries[1] != (SummaryRow{}) || !summaries[1].Empty() {
		t.Errorf("image without rows should have zero summary, got %+v", summaries[1])
	}
	for _, v := range summaries[1].Values() {
		if v != 0 {
			t.Errorf("zero summary has non-zero value %v", v)
		}
	}
	if summaries[2].ShapeCount != 1 || summaries[2].FilterChannel != 1 {
		t.Errorf("bad summary for Z: %+v", summaries[2])
	}
}

func TestAggregateDuplicateImage(t *testing.T) {
	img := &omero.Image{ID: 7}
	rows := []ExportRow{{Position: 0, ImageID: 7}, {Position: 1, ImageID: 7}, {Position: 1, ImageID: 7}}
	summaries := Aggregate([]*omero.Image{img, img}, rows)
	if summaries[0].ShapeCount != 1 || summaries[1].ShapeCount != 2 {
		t.Errorf("duplicates should be summarised per position: %+v", summaries)
	}
}

func TestCSVRoundTrip(t *testing.T) {
	rows := []ExportRow{
		{ImageID: 1, ImageName: "a.1", ROIID: 2, ShapeID: 3, ShapeType: "ellipse", Label: `"x. y"`,
			Z: omero.NewIndex(0), T: omero.NewIndex(1), C: omero.NewIndex(0), Channel: "DAPI",
			HasStats: true, Points: 10, Min: 0.5, Max: 100, Sum: 1234.25, Mean: 12.3456789, StdDev: 0.001},
		{ImageID: 1, ImageName: "a.1", ROIID: 2, ShapeID: 4, ShapeType: "polygon",
			Z: omero.Unset, T: omero.Unset, C: omero.NewIndex(1), Channel: "GFP"},
	}
	data := string(FormatCSV(ExportColumns, exportRecords(rows)))
	if strings.HasSuffix(data, "\n") {
		t.Errorf("CSV should not end with a newline")
	}
	lines := strings.Split(data, "\n")
	if len(lines) != len(rows)+1 {
		t.Fatalf("expected %d lines, got %d", len(rows)+1, len(lines))
	}
	if lines[0] != strings.Join(ExportColumns, ",") {
		t.Errorf("bad header: %s", lines[0])
	}
	for i, r := range rows {
		cells := strings.Split(lines[i+1], ",")
		if len(cells) != len(ExportColumns) {
			t.Fatalf("line %d has %d cells", i+1, len(cells))
		}
		for j, col := range ExportColumns {
			if col == "text" {
				continue
			}
			if cells[j] != r.Field(col) {
				t.Errorf("row %d column %s: got %q, want %q", i, col, cells[j], r.Field(col))
			}
		}
	}
	if cells := strings.Split(lines[1], ","); cells[5] != `"x. y"` || cells[15] != "0.001" || cells[13] != "1234.25" {
		t.Errorf("bad formatted cells: %v", cells)
	}
}

func TestCSVFileName(t *testing.T) {
	for in, want := range map[string]string{
		"":          DefaultFileName,
		"out":       "out.csv",
		"table.csv": "table.csv",
	} {
		if got := CSVFileName(in); got != want {
			t.Errorf("CSVFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

type memExporter map[string][]byte

func (m memExporter) Export(ctx context.Context, name string, data []byte) (string, error) {
	m[name] = data
	return "mem://" + name, nil
}

func TestExportProject(t *testing.T) {
	f := newFixture(t)
	exporter := memExporter{}
	cfg := Config{
		DataType:      omero.ProjectType,
		IDs:           []int64{f.project.ID},
		Channels:      []int{1, 2, 5},
		ExportCSV:     true,
		FileName:      CSVFileName("export"),
		SaveKeyValues: true,
		CreateTable:   true,
	}
	report := omero.NewReport(Name)
	res, err := Export(context.Background(), f.conn, exporter, cfg, report)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if report.Failed() {
		t.Fatalf("unexpected failures:\n%s", report)
	}
	if report.Message != "Exported 4 shapes" {
		t.Errorf("bad message %q", report.Message)
	}
	projRef := omero.ObjectRef{Type: omero.ProjectType, ID: f.project.ID}

	// CSV linked to the selected project, with a local copy.
	if res.CSV == nil || res.CSV.Name != "export.csv" {
		t.Fatalf("bad CSV annotation: %+v", res.CSV)
	}
	if parents := f.srv.Parents(res.CSV.ID); len(parents) != 1 || parents[0] != projRef {
		t.Errorf("CSV should be linked to project, got %v", parents)
	}
	if _, found := exporter["export.csv"]; !found {
		t.Errorf("no local copy of CSV")
	}

	// Key-value pairs only on the image with shapes.
	aRef := omero.ObjectRef{Type: omero.ImageType, ID: f.imgA.ID}
	maps := f.srv.Annotations(aRef, omero.MapKind)
	if len(maps) != 1 || maps[0].Namespace != omero.NSROIExport {
		t.Fatalf("bad key-values on image A: %+v", maps)
	}
	if maps[0].Values[0].Key != "filter_shapes_by_channel" || maps[0].Values[0].Value != "2" {
		t.Errorf("bad first key-value: %+v", maps[0].Values[0])
	}
	if maps[0].Values[1].Value != "4" || maps[0].Values[4].Value != "6.5" {
		t.Errorf("bad key-values: %+v", maps[0].Values)
	}
	if len(f.srv.Annotations(omero.ObjectRef{Type: omero.ImageType, ID: f.imgB.ID}, omero.MapKind)) != 0 {
		t.Errorf("image without shapes should get no key-values")
	}

	// Table and summary CSV on the project.
	var table *tables.Table
	var summaryCSV string
	for _, a := range f.srv.Annotations(projRef, omero.FileKind) {
		switch a.File.Name {
		case TableName:
			if table, err = tables.Decode(a.Data); err != nil {
				t.Fatalf("bad table: %v", err)
			}
		case SummaryFileName:
			summaryCSV = string(a.Data)
		}
	}
	if table == nil {
		t.Fatalf("no table linked to project")
	}
	if !reflect.DeepEqual(table.IDs, []int64{f.imgA.ID, f.imgB.ID}) {
		t.Errorf("bad table rows: %v", table.IDs)
	}
	counts, _ := table.Column("shape_count")
	if !reflect.DeepEqual(counts.Doubles, []float64{4, 0}) {
		t.Errorf("bad shape counts: %v", counts.Doubles)
	}
	lines := strings.Split(summaryCSV, "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "image_id,name,dataset,filter_shapes_by_channel") {
		t.Fatalf("bad summary CSV:\n%s", summaryCSV)
	}
	if !strings.HasPrefix(lines[1], strings.Join([]string{strconv.FormatInt(f.imgA.ID, 10), "a.1.tif", "GFP", "2", "4"}, ",")) {
		t.Errorf("bad summary line: %s", lines[1])
	}
}

func TestExportImagesWithoutProject(t *testing.T) {
	srv := gatewaytest.NewServer()
	srv.AddUser("u", "pw", false)
	ds := srv.AddDataset("orphans", 0)
	img := srv.AddImage(omero.Image{Name: "x", Channels: []omero.Channel{{Label: "DAPI"}}}, ds.ID)
	srv.AddROI(img.ID, omero.Shape{Type: omero.Point, Z: omero.NewIndex(0), T: omero.NewIndex(0), C: omero.NewIndex(0)})
	conn, _ := srv.Connect(context.Background(), "u", "pw")
	defer conn.Close()
	omero.SetLogMode(omero.SilentMode)
	defer omero.SetLogMode(omero.InfoMode)

	cfg := Config{DataType: omero.ImageType, IDs: []int64{img.ID}, Channels: []int{1}, ExportCSV: true, FileName: DefaultFileName, CreateTable: true}
	report := omero.NewReport(Name)
	res, err := Export(context.Background(), conn, nil, cfg, report)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if report.Failed() {
		t.Errorf("unexpected failure:\n%s", report)
	}
	imgRef := omero.ObjectRef{Type: omero.ImageType, ID: img.ID}
	if parents := srv.Parents(res.CSV.ID); len(parents) != 1 || parents[0] != imgRef {
		t.Errorf("CSV should be linked to the image, got %v", parents)
	}
	found := false
	for _, r := range report.Results {
		if r.Unit == "table" && strings.Contains(r.Message, "no project") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected table result without project link:\n%s", report)
	}
}

func TestRunNoImages(t *testing.T) {
	f := newFixture(t)
	s, err := scripts.Get(Name)
	if err != nil {
		t.Fatalf("roi-export not registered: %v", err)
	}
	params, err := scripts.FromCommand(omero.Command{Name, "Data_Type=Dataset", "IDs=4242"}, s.Info())
	if err != nil {
		t.Fatal(err)
	}
	env := &scripts.Env{Dialer: f.srv, User: "user-1", Password: "pw", Params: params}
	report, err := scripts.Run(context.Background(), s, env)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Message != "No images found" || report.Failed() {
		t.Errorf("bad report:\n%s", report)
	}
}

func TestRunBadParams(t *testing.T) {
	f := newFixture(t)
	s := NewScript()
	env := &scripts.Env{Dialer: f.srv, User: "user-1", Password: "pw", Params: scripts.Params{"Data_Type": "Plate", "IDs": []interface{}{float64(1)}}}
	if _, err := scripts.Run(context.Background(), s, env); !errors.Is(err, omero.ErrInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", err)
	}
}
