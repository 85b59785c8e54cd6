package roiexport

import (
	"strconv"

	"github.com/janelia-flyem/omerotools/omero"
)

// Schema is an ordered list of column names.  Every record written against a
// schema must know how to render each of its columns.
type Schema []string

// Record renders the value of a named column.
type Record interface {
	Field(column string) string
}

// ExportColumns are the columns of the per-shape export, one row per
// (shape, z, t, channel).
var ExportColumns = Schema{
	"image_id",
	"image_name",
	"roi_id",
	"shape_id",
	"type",
	"text",
	"z",
	"t",
	"c",
	"points",
	"intensity_for_channel",
	"min",
	"max",
	"sum",
	"mean",
	"std_dev",
}

// SummaryColumns are the per-image summary fields in table and key-value order.
var SummaryColumns = Schema{
	"filter_shapes_by_channel",
	"shape_count",
	"min_intensity",
	"max_intensity",
	"mean_intensity",
	"min_points",
	"max_points",
	"mean_points",
}

// ImageSummaryColumns are the columns of the summary CSV attached to the project.
var ImageSummaryColumns = append(Schema{"image_id", "name", "dataset"}, SummaryColumns...)

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ExportRow is the measurement of one shape on one plane for one channel.
type ExportRow struct {
	// Position is the index of the image in the resolved image list.
	Position int

	ImageID   int64
	ImageName string
	ROIID     int64
	ShapeID   int64
	ShapeType omero.ShapeType

	// Label is the shape text, already sanitized and quoted, or "".
	Label string

	Z, T, C omero.Index

	// Channel is the name of the channel the statistics were measured on.
	Channel      string
	ChannelIndex int

	// HasStats is false when the plane was unknown and no statistics were requested.
	HasStats bool
	Points   int64
	Min      float64
	Max      float64
	Sum      float64
	Mean     float64
	StdDev   float64
}

func (r ExportRow) stat(s string) string {
	if !r.HasStats {
		return ""
	}
	return s
}

func (r ExportRow) Field(column string) string {
	switch column {
	case "image_id":
		return strconv.FormatInt(r.ImageID, 10)
	case "image_name":
		return r.ImageName
	case "roi_id":
		return strconv.FormatInt(r.ROIID, 10)
	case "shape_id":
		return strconv.FormatInt(r.ShapeID, 10)
	case "type":
		return string(r.ShapeType)
	case "text":
		return r.Label
	case "z":
		return r.Z.String()
	case "t":
		return r.T.String()
	case "c":
		return r.C.String()
	case "points":
		return r.stat(strconv.FormatInt(r.Points, 10))
	case "intensity_for_channel":
		return r.Channel
	case "min":
		return r.stat(formatFloat(r.Min))
	case "max":
		return r.stat(formatFloat(r.Max))
	case "sum":
		return r.stat(formatFloat(r.Sum))
	case "mean":
		return r.stat(formatFloat(r.Mean))
	case "std_dev":
		return r.stat(formatFloat(r.StdDev))
	}
	return ""
}

// SummaryRow summarises the export rows of one image.  A zero SummaryRow is
// the placeholder for images without rows.
type SummaryRow struct {
	// FilterChannel is 1-based.
	FilterChannel int
	ShapeCount    int

	MinIntensity  float64
	MaxIntensity  float64
	MeanIntensity float64
	MinPoints     float64
	MaxPoints     float64
	MeanPoints    float64
}

// Empty returns true for images that had no export rows.
func (s SummaryRow) Empty() bool {
	return s.ShapeCount == 0
}

// Values returns the summary in SummaryColumns order.
func (s SummaryRow) Values() []float64 {
	return []float64{
		float64(s.FilterChannel),
		float64(s.ShapeCount),
		s.MinIntensity,
		s.MaxIntensity,
		s.MeanIntensity,
		s.MinPoints,
		s.MaxPoints,
		s.MeanPoints,
	}
}

func (s SummaryRow) Field(column string) string {
	switch column {
	case "filter_shapes_by_channel":
		return strconv.Itoa(s.FilterChannel)
	case "shape_count":
		return strconv.Itoa(s.ShapeCount)
	case "min_intensity":
		return formatFloat(s.MinIntensity)
	case "max_intensity":
		return formatFloat(s.MaxIntensity)
	case "mean_intensity":
		return formatFloat(s.MeanIntensity)
	case "min_points":
		return formatFloat(s.MinPoints)
	case "max_points":
		return formatFloat(s.MaxPoints)
	case "mean_points":
		return formatFloat(s.MeanPoints)
	}
	return ""
}

// KeyValues returns the summary as ordered map annotation entries.
func (s SummaryRow) KeyValues() []omero.KeyValue {
	kvs := make([]omero.KeyValue, len(SummaryColumns))
	for i, col := range SummaryColumns {
		kvs[i] = omero.KeyValue{Key: col, Value: s.Field(col)}
	}
	return kvs
}

// imageSummary is a SummaryRow with the image it belongs to.
type imageSummary struct {
	image   *omero.Image
	summary SummaryRow
}

func (r imageSummary) Field(column string) string {
	switch column {
	case "image_id":
		return strconv.FormatInt(r.image.ID, 10)
	case "name":
		return omero.SanitizeField(r.image.Name)
	case "dataset":
		return omero.SanitizeField(r.image.DatasetName())
	}
	return r.summary.Field(column)
}
