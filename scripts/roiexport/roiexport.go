/*
	Package roiexport implements the batch ROI export: it measures the intensity of
	every ROI shape on a selection of images and writes the measurements as CSV, as a
	summary table on the parent project and as key-value pairs on each image.
*/
package roiexport

import (
	"context"
	"errors"
	"fmt"

	"github.com/janelia-flyem/omerotools/gateway"
	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
)

const (
	Name    = "roi-export"
	URL     = "github.com/janelia-flyem/omerotools/scripts/roiexport"
	Version = "0.2"
)

// Parameter names.
const (
	KeyDataType      = "Data_Type"
	KeyIDs           = "IDs"
	KeyChannels      = "Intensity_For_Channels"
	KeyAllPlanes     = "Export_All_Planes"
	KeyExportCSV     = "Export_CSV"
	KeyFileName      = "File_Name"
	KeySaveKeyValues = "Save_As_Key-Value"
	KeyCreateTable   = "Create_Table"
)

const helpMessage = `
Exports ROI intensities for selected images.

    $ omerotools roi-export Data_Type=<type> IDs=<id,id,...> [settings...]

    Settings:

    Data_Type               Project, Dataset or Image (default Image)
    IDs                     Comma separated ids of the selected objects
    Intensity_For_Channels  1-based channels to measure intensity on (default 1,2,3,4)
    Export_All_Planes       Measure shapes without Z or T on every plane (default false)
    Export_CSV              Upload a CSV with one row per shape, plane and channel (default true)
    File_Name               Name of the CSV (default roi_intensities_filtered_by_channel.csv)
    Save_As_Key-Value       Summarise ROIs as key-value pairs on each image (default true)
    Create_Table            Summarise ROIs as a table (1 row per image) on the parent project (default true)

    Only shapes on the filter channel are exported.  The filter channel is the first
    channel whose name matches the name of the image's dataset, else the first channel.
`

const paramSchema = `{
	"type": "object",
	"properties": {
		"Data_Type": {"type": "string", "enum": ["Project", "Dataset", "Image"]},
		"IDs": {"type": "array", "items": {"type": "integer", "minimum": 1}, "minItems": 1},
		"Intensity_For_Channels": {"type": "array", "items": {"type": "integer"}},
		"Export_All_Planes": {"type": "boolean"},
		"Export_CSV": {"type": "boolean"},
		"File_Name": {"type": "string"},
		"Save_As_Key-Value": {"type": "boolean"},
		"Create_Table": {"type": "boolean"}
	},
	"required": ["IDs"],
	"additionalProperties": false
}`

func init() {
	scripts.Register(NewScript())
}

// Script is the registered roi-export script.
type Script struct {
	scripts.Base
}

// NewScript returns the roi-export script.
func NewScript() *Script {
	return &Script{scripts.NewBase(scripts.Info{
		Name:        Name,
		URL:         URL,
		Version:     Version,
		Description: "Export ROI intensities to CSV, a project table and key-value pairs",
		ParamSchema: paramSchema,
	})}
}

func (s *Script) Help() string {
	return s.FullHelp(helpMessage)
}

// Config is a parsed set of export parameters.
type Config struct {
	DataType      omero.DataType
	IDs           []int64
	Channels      []int
	AllPlanes     bool
	ExportCSV     bool
	FileName      string
	SaveKeyValues bool
	CreateTable   bool
}

// DefaultChannels are measured when none are requested.
var DefaultChannels = []int{1, 2, 3, 4}

// ConfigFromParams applies defaults to the script parameters.
func ConfigFromParams(p scripts.Params) (Config, error) {
	dataType, err := omero.ParseDataType(p.String(KeyDataType, string(omero.ImageType)))
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		DataType:      dataType,
		IDs:           p.IDs(KeyIDs),
		Channels:      p.Ints(KeyChannels, DefaultChannels),
		AllPlanes:     p.Bool(KeyAllPlanes, false),
		ExportCSV:     p.Bool(KeyExportCSV, true),
		FileName:      CSVFileName(p.String(KeyFileName, DefaultFileName)),
		SaveKeyValues: p.Bool(KeySaveKeyValues, true),
		CreateTable:   p.Bool(KeyCreateTable, true),
	}
	if len(cfg.IDs) == 0 {
		return cfg, fmt.Errorf("no %s given: %w", KeyIDs, omero.ErrInvalidArgument)
	}
	return cfg, nil
}

func (s *Script) Run(ctx context.Context, env *scripts.Env) (*omero.Report, error) {
	cfg, err := ConfigFromParams(env.Params)
	if err != nil {
		return nil, err
	}
	conn, err := env.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	report := omero.NewReport(Name)
	if _, err := Export(ctx, conn, env.Exporter, cfg, report); err != nil {
		return report, err
	}
	return report, nil
}

// Result holds everything an export produced.
type Result struct {
	Images    []*omero.Image
	Rows      []ExportRow
	Summaries []SummaryRow
	CSV       *omero.FileAnnotation
}

// Export runs the pipeline: resolve the selection, measure every image, then
// write the enabled sinks.  Failures of single images or sinks are recorded
// in report and do not stop the export.
func Export(ctx context.Context, conn gateway.Conn, exporter scripts.Exporter, cfg Config, report *omero.Report) (*Result, error) {
	images, err := Resolve(ctx, conn, cfg.DataType, cfg.IDs, report)
	if errors.Is(err, ErrNoImages) {
		report.Finish("%s", ErrNoImages.Error())
		return &Result{}, nil
	}
	if err != nil {
		return nil, err
	}

	res := &Result{Images: images}
	opts := Options{Channels: cfg.Channels, AllPlanes: cfg.AllPlanes}
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		unit := fmt.Sprintf("image %d", img.ID)
		rows, err := Extract(ctx, conn, img, i, opts)
		if err != nil {
			report.Fail(unit, err)
			continue
		}
		report.Succeed(unit, "%d rows", len(rows))
		res.Rows = append(res.Rows, rows...)
	}
	res.Summaries = Aggregate(images, res.Rows)

	if cfg.ExportCSV {
		targets := csvTargets(cfg.DataType, cfg.IDs, images)
		fa, err := exportCSV(ctx, conn, exporter, cfg.FileName, ExportColumns, exportRecords(res.Rows), targets)
		if err != nil {
			report.Fail("csv", err)
		} else {
			res.CSV = fa
			report.Succeed("csv", "%s as file annotation %d linked to %d objects", cfg.FileName, fa.ID, len(targets))
		}
	}
	if cfg.SaveKeyValues {
		report.Add(SaveKeyValues(ctx, conn, images, res.Summaries)...)
	}
	if cfg.CreateTable {
		report.Add(SaveTable(ctx, conn, exporter, images, res.Summaries)...)
	}

	report.Finish("Exported %d shapes", len(res.Rows))
	return res, nil
}
