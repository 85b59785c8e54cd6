package tables

import (
	"bytes"
	"context"
	"reflect"
	"testing"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"

	"github.com/janelia-flyem/omerotools/gateway/gatewaytest"
	"github.com/janelia-flyem/omerotools/omero"
)

func TestEncodeDecode(t *testing.T) {
	tbl := New("Channels_Min_Max_Intensity", "Well", WellColumn, []int64{11, 12, 13})
	tbl.AddLongs("Ch0Min", []int64{0, 1, 2})
	tbl.AddDoubles("mean", []float64{1.5, 2.5, 3.5})

	data, err := tbl.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Name != tbl.Name || got.IDName != "Well" || got.IDKind != WellColumn {
		t.Errorf("bad table header: %q %q %q", got.Name, got.IDName, got.IDKind)
	}
	if !reflect.DeepEqual(got.IDs, tbl.IDs) {
		t.Errorf("bad ids: %v", got.IDs)
	}
	c, found := got.Column("Ch0Min")
	if !found || c.Kind != LongColumn || !reflect.DeepEqual(c.Longs, []int64{0, 1, 2}) {
		t.Errorf("bad long column: %+v", c)
	}
	c, found = got.Column("mean")
	if !found || c.Kind != DoubleColumn || !reflect.DeepEqual(c.Doubles, []float64{1.5, 2.5, 3.5}) {
		t.Errorf("bad double column: %+v", c)
	}
}

func TestRaggedTable(t *testing.T) {
	tbl := New("bad", "Image", ImageColumn, []int64{1, 2})
	tbl.AddDoubles("x", []float64{1})
	if _, err := tbl.Encode(); err == nil {
		t.Errorf("expected error for ragged column")
	}
}

func TestUpload(t *testing.T) {
	srv := gatewaytest.NewServer()
	srv.AddUser("user-1", "pw", false)
	proj := srv.AddProject("p", 0)
	conn, err := srv.Connect(context.Background(), "user-1", "pw")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	tbl := New("batch_roi_export", "Image", ImageColumn, []int64{5})
	tbl.AddDoubles("shape_count", []float64{2})
	ref := omero.ObjectRef{Type: omero.ProjectType, ID: proj.ID}
	fa, err := tbl.Upload(context.Background(), conn, ref)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	anns := srv.Annotations(ref, omero.FileKind)
	if len(anns) != 1 || anns[0].ID != fa.ID || anns[0].Namespace != omero.NSBulkAnnotations {
		t.Fatalf("table not linked to project: %+v", anns)
	}
	back, err := Decode(anns[0].Data)
	if err != nil || back.NumRows() != 1 {
		t.Errorf("uploaded table unreadable: %v", err)
	}
}

func TestFileFormat(t *testing.T) {
	tbl := New("batch_roi_export", "Image", ImageColumn, []int64{5, 6})
	tbl.AddDoubles("area", []float64{1, 2})
	data, err := tbl.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	magic := []byte("ARROW1")
	if !bytes.HasPrefix(data, magic) || !bytes.HasSuffix(data, magic) {
		t.Errorf("expected an Arrow IPC file framed by %q", magic)
	}
	if MimeType != "application/vnd.apache.arrow.file" {
		t.Errorf("mime type %q does not name the Arrow file format", MimeType)
	}
}

func TestDecodeBadIDColumn(t *testing.T) {
	pool := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{{Name: "Image", Type: arrow.PrimitiveTypes.Float64}}, nil)
	b := array.NewFloat64Builder(pool)
	b.AppendValues([]float64{1.5, 2.5}, nil)
	ids := b.NewArray()
	b.Release()
	defer ids.Release()
	record := array.NewRecord(schema, []arrow.Array{ids}, 2)
	defer record.Release()

	var buf bytes.Buffer
	w, err := ipc.NewFileWriter(bufferSeeker{&buf}, ipc.WithSchema(schema), ipc.WithAllocator(pool))
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	if err := w.Write(record); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := Decode(buf.Bytes()); err == nil {
		t.Errorf("expected error decoding a table with a float id column")
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode([]byte("not a table")); err == nil {
		t.Errorf("expected error decoding garbage")
	}
}
