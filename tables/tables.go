/*
	Package tables writes and reads the columnar result tables scripts attach to
	projects and plates.  A table has one object id column, e.g. "Image" or "Well",
	followed by numeric columns, and is stored as an Apache Arrow IPC file in a
	file annotation under the bulk annotations namespace.
*/
package tables

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"

	"github.com/janelia-flyem/omerotools/gateway"
	"github.com/janelia-flyem/omerotools/omero"
)

// MimeType of uploaded tables.
const MimeType = "application/vnd.apache.arrow.file"

// metadata key holding the server column class of a field.
const columnKindKey = "omero:column"

type ColumnKind string

const (
	ImageColumn  ColumnKind = "ImageColumn"
	WellColumn   ColumnKind = "WellColumn"
	DoubleColumn ColumnKind = "DoubleColumn"
	LongColumn   ColumnKind = "LongColumn"
)

// Column is a numeric column.  Doubles is used for DoubleColumn and Longs
// for LongColumn.
type Column struct {
	Name    string
	Kind    ColumnKind
	Doubles []float64
	Longs   []int64
}

func (c Column) len() int {
	if c.Kind == LongColumn {
		return len(c.Longs)
	}
	return len(c.Doubles)
}

// Table is a named table with one row per object.
type Table struct {
	Name string

	IDName string
	IDKind ColumnKind
	IDs    []int64

	Columns []Column
}

// New returns an empty table keyed by objects of the given column kind.
func New(name, idName string, idKind ColumnKind, ids []int64) *Table {
	return &Table{Name: name, IDName: idName, IDKind: idKind, IDs: ids}
}

// AddDoubles appends a float column.
func (t *Table) AddDoubles(name string, values []float64) {
	t.Columns = append(t.Columns, Column{Name: name, Kind: DoubleColumn, Doubles: values})
}

// AddLongs appends an integer column.
func (t *Table) AddLongs(name string, values []int64) {
	t.Columns = append(t.Columns, Column{Name: name, Kind: LongColumn, Longs: values})
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	return len(t.IDs)
}

// Column returns a column by name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func kindMetadata(kind ColumnKind) arrow.Metadata {
	return arrow.NewMetadata([]string{columnKindKey}, []string{string(kind)})
}

func (t *Table) schema() *arrow.Schema {
	fields := []arrow.Field{
		{Name: t.IDName, Type: arrow.PrimitiveTypes.Int64, Metadata: kindMetadata(t.IDKind)},
	}
	for _, c := range t.Columns {
		f := arrow.Field{Name: c.Name, Type: arrow.PrimitiveTypes.Float64, Metadata: kindMetadata(c.Kind)}
		if c.Kind == LongColumn {
			f.Type = arrow.PrimitiveTypes.Int64
		}
		fields = append(fields, f)
	}
	md := arrow.NewMetadata([]string{"name"}, []string{t.Name})
	return arrow.NewSchema(fields, &md)
}

// Encode writes the table as an Arrow IPC file with a single record.
func (t *Table) Encode() ([]byte, error) {
	for _, c := range t.Columns {
		if c.len() != len(t.IDs) {
			return nil, fmt.Errorf("table %s: column %s has %d rows, expected %d", t.Name, c.Name, c.len(), len(t.IDs))
		}
	}
	pool := memory.NewGoAllocator()
	schema := t.schema()

	idBuilder := array.NewInt64Builder(pool)
	defer idBuilder.Release()
	idBuilder.AppendValues(t.IDs, nil)
	arrays := []arrow.Array{idBuilder.NewArray()}

	for _, c := range t.Columns {
		switch c.Kind {
		case LongColumn:
			b := array.NewInt64Builder(pool)
			b.AppendValues(c.Longs, nil)
			arrays = append(arrays, b.NewArray())
			b.Release()
		default:
			b := array.NewFloat64Builder(pool)
			b.AppendValues(c.Doubles, nil)
			arrays = append(arrays, b.NewArray())
			b.Release()
		}
	}
	defer func() {
		for _, a := range arrays {
			a.Release()
		}
	}()

	record := array.NewRecord(schema, arrays, int64(len(t.IDs)))
	defer record.Release()

	var buf bytes.Buffer
	writer, err := ipc.NewFileWriter(bufferSeeker{&buf}, ipc.WithSchema(schema), ipc.WithAllocator(pool))
	if err != nil {
		return nil, fmt.Errorf("could not write table %s: %v", t.Name, err)
	}
	if err := writer.Write(record); err != nil {
		return nil, fmt.Errorf("could not write table %s: %v", t.Name, err)
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a table written by Encode.
func Decode(data []byte) (*Table, error) {
	reader, err := ipc.NewFileReader(bytes.NewReader(data), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("could not read table: %v", err)
	}
	defer reader.Close()

	schema := reader.Schema()
	if schema.NumFields() == 0 {
		return nil, fmt.Errorf("table has no columns")
	}
	t := &Table{IDName: schema.Field(0).Name}
	if name, found := schema.Metadata().GetValue("name"); found {
		t.Name = name
	}
	fieldKind := func(f arrow.Field) ColumnKind {
		if kind, found := f.Metadata.GetValue(columnKindKey); found {
			return ColumnKind(kind)
		}
		return DoubleColumn
	}
	t.IDKind = fieldKind(schema.Field(0))
	for i := 1; i < schema.NumFields(); i++ {
		f := schema.Field(i)
		t.Columns = append(t.Columns, Column{Name: f.Name, Kind: fieldKind(f)})
	}

	for r := 0; r < reader.NumRecords(); r++ {
		record, err := reader.Record(r)
		if err != nil {
			return nil, fmt.Errorf("could not read table record %d: %v", r, err)
		}
		ids, ok := record.Column(0).(*array.Int64)
		if !ok {
			return nil, fmt.Errorf("id column %s has type %s, expected int64", t.IDName, record.Column(0).DataType())
		}
		t.IDs = append(t.IDs, ids.Int64Values()...)
		for i := range t.Columns {
			switch col := record.Column(i + 1).(type) {
			case *array.Int64:
				t.Columns[i].Longs = append(t.Columns[i].Longs, col.Int64Values()...)
			case *array.Float64:
				t.Columns[i].Doubles = append(t.Columns[i].Doubles, col.Float64Values()...)
			default:
				return nil, fmt.Errorf("column %s has unsupported type %s", t.Columns[i].Name, col.DataType())
			}
		}
	}
	return t, nil
}

// Upload encodes the table and stores it as a file annotation linked to the
// given parents.  With no parents the file is stored unlinked.
func (t *Table) Upload(ctx context.Context, a gateway.Annotator, parents ...omero.ObjectRef) (*omero.FileAnnotation, error) {
	data, err := t.Encode()
	if err != nil {
		return nil, err
	}
	omero.Debugf("Uploading table %s with %d rows (%s)\n", t.Name, t.NumRows(), omero.ByteSize(len(data)))
	return a.UploadFile(ctx, t.Name, MimeType, omero.NSBulkAnnotations, data, parents...)
}

// bufferSeeker lets ipc.NewFileWriter, which needs an io.WriteSeeker, append
// to a bytes.Buffer.  The writer only seeks to ask for the current position.
type bufferSeeker struct {
	*bytes.Buffer
}

func (b bufferSeeker) Seek(offset int64, whence int) (int64, error) {
	if offset != 0 || whence != io.SeekCurrent {
		return 0, fmt.Errorf("bufferSeeker only reports the current position")
	}
	return int64(b.Len()), nil
}
