/*
	Package frap does a simple fluorescence recovery after photobleaching analysis.
	For each image it measures the mean intensity of channel 0 at Z=0 inside the
	first ellipse over all timepoints, then attaches the curve to the image as a
	map annotation and as a PNG plot.
*/
package frap

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/janelia-flyem/omerotools/gateway"
	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
	"github.com/janelia-flyem/omerotools/scripts/roiexport"
)

const (
	Name    = "frap"
	URL     = "github.com/janelia-flyem/omerotools/scripts/frap"
	Version = "0.1"

	PlotMimeType = "image/png"
)

const helpMessage = `
Simple FRAP analysis using an Ellipse ROI previously drawn on each image.

    $ omerotools frap Data_Type=Dataset IDs=<id,id,...>

    The mean intensity of the first channel at Z=0 is measured for every
    timepoint.  Values are stored as a map annotation keyed by timepoint and
    plotted to <image name>_FRAP_plot.png, attached to the image.
    Images without an ellipse are skipped.
`

const paramSchema = `{
	"type": "object",
	"properties": {
		"Data_Type": {"type": "string", "enum": ["Dataset", "Image"]},
		"IDs": {"type": "array", "items": {"type": "integer", "minimum": 1}, "minItems": 1}
	},
	"required": ["IDs"],
	"additionalProperties": false
}`

// ErrNoEllipse is returned for images without an ellipse shape.
var ErrNoEllipse = errors.New("No Ellipse found")

func init() {
	scripts.Register(NewScript())
}

type Script struct {
	scripts.Base
}

func NewScript() *Script {
	return &Script{scripts.NewBase(scripts.Info{
		Name:        Name,
		URL:         URL,
		Version:     Version,
		Description: "FRAP intensity curves from ellipse ROIs",
		ParamSchema: paramSchema,
	})}
}

func (s *Script) Help() string {
	return s.FullHelp(helpMessage)
}

// FirstEllipse returns the first ellipse of the image's ROIs.
func FirstEllipse(rois []omero.ROI) (omero.Shape, error) {
	for _, roi := range rois {
		for _, shape := range roi.Shapes {
			if shape.Type == omero.Ellipse {
				return shape, nil
			}
		}
	}
	return omero.Shape{}, ErrNoEllipse
}

// Intensities returns the mean of channel 0 at Z=0 within the first ellipse
// for each timepoint of the image.
func Intensities(ctx context.Context, rois gateway.ROIService, img *omero.Image) ([]float64, error) {
	list, err := rois.ListROIs(ctx, img.ID)
	if err != nil {
		return nil, err
	}
	shape, err := FirstEllipse(list)
	if err != nil {
		return nil, err
	}
	means := make([]float64, img.SizeT)
	for t := 0; t < img.SizeT; t++ {
		stats, err := rois.ShapeStats(ctx, shape.ID, 0, t, []int{0})
		if err != nil {
			return nil, fmt.Errorf("shape %d at t=%d: %v", shape.ID, t, err)
		}
		if cs, found := stats.ForChannel(0); found {
			means[t] = cs.Mean
		}
	}
	return means, nil
}

// KeyValues returns the curve as timepoint to mean pairs.
func KeyValues(means []float64) []omero.KeyValue {
	kv := make([]omero.KeyValue, len(means))
	for t, m := range means {
		kv[t] = omero.KeyValue{Key: strconv.Itoa(t), Value: strconv.FormatFloat(m, 'f', -1, 64)}
	}
	return kv
}

// PlotName returns the file name of an image's plot.
func PlotName(imageName string) string {
	return imageName + "_FRAP_plot.png"
}

// Analyze measures one image and attaches the results.
func Analyze(ctx context.Context, conn gateway.Conn, exporter scripts.Exporter, img *omero.Image) ([]float64, error) {
	means, err := Intensities(ctx, conn, img)
	if err != nil {
		return nil, err
	}
	ref := scripts.ImageRef(img.ID)
	if _, err := conn.CreateMapAnnotation(ctx, omero.NSFRAP, KeyValues(means), ref); err != nil {
		return means, err
	}
	data, err := Plot(means)
	if err != nil {
		return means, err
	}
	name := PlotName(img.Name)
	if exporter != nil {
		if location, err := exporter.Export(ctx, name, data); err != nil {
			omero.Warningf("Could not save local copy of %s: %v\n", name, err)
		} else {
			omero.Debugf("Saved %s to %s\n", name, location)
		}
	}
	if _, err := conn.UploadFile(ctx, name, PlotMimeType, omero.NSFRAP, data, ref); err != nil {
		return means, err
	}
	return means, nil
}

func (s *Script) Run(ctx context.Context, env *scripts.Env) (*omero.Report, error) {
	dataType, err := omero.ParseDataType(env.Params.String("Data_Type", string(omero.DatasetType)))
	if err != nil {
		return nil, err
	}
	conn, err := env.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	report := omero.NewReport(Name)
	images, err := roiexport.Resolve(ctx, conn, dataType, env.Params.IDs("IDs"), report)
	if errors.Is(err, roiexport.ErrNoImages) {
		report.Finish("No images found")
		return report, nil
	}
	if err != nil {
		return report, err
	}
	var processed int
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		unit := fmt.Sprintf("image %d %s", img.ID, img.Name)
		means, err := Analyze(ctx, conn, env.Exporter, img)
		switch {
		case errors.Is(err, ErrNoEllipse):
			report.Skip(unit, "%v", err)
		case err != nil:
			report.Fail(unit, err)
		default:
			processed++
			report.Succeed(unit, "%d timepoints", len(means))
		}
	}
	report.Finish("Processed %d images", processed)
	return report, nil
}
