package cleanup

import (
	"context"

	"github.com/janelia-flyem/omerotools/gateway"
	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
)

const (
	DeleteROIsName        = "delete-rois"
	DeleteROIsURL         = "github.com/janelia-flyem/omerotools/scripts/cleanup/rois"
	DeleteAnnotationsName = "delete-annotations"
	DeleteAnnotationsURL  = "github.com/janelia-flyem/omerotools/scripts/cleanup/annotations"
)

const deleteROIsHelp = `
Deletes all ROIs on the images of a dataset.

    $ omerotools delete-rois dataset=<dataset id>
`

const deleteAnnotationsHelp = `
Deletes annotations in a namespace from the images of a dataset.

    $ omerotools delete-annotations dataset=<dataset id> [ns=omero.batch_roi_export.map_ann]
`

const deleteROIsSchema = `{
	"type": "object",
	"properties": {
		"dataset": {"type": "integer", "minimum": 1}
	},
	"required": ["dataset"],
	"additionalProperties": false
}`

const deleteAnnotationsSchema = `{
	"type": "object",
	"properties": {
		"dataset": {"type": "integer", "minimum": 1},
		"ns": {"type": "string", "minLength": 1}
	},
	"required": ["dataset"],
	"additionalProperties": false
}`

// imageFunc deletes something from one image and returns how many objects went.
type imageFunc func(ctx context.Context, conn gateway.Conn, img omero.Image) (int, error)

// forDatasetImages runs fn on every image of a dataset, one result per image.
func forDatasetImages(ctx context.Context, env *scripts.Env, name string, fn imageFunc) (*omero.Report, error) {
	datasetID := int64(env.Params.Int("dataset", 0))
	conn, err := env.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	images, err := conn.ListImages(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	report := omero.NewReport(name)
	var total int
	for _, img := range images {
		unit := scripts.ImageRef(img.ID).String()
		n, err := fn(ctx, conn, img)
		switch {
		case err != nil:
			report.Fail(unit, err)
		case n == 0:
			report.Skip(unit, "nothing to delete")
		default:
			report.Succeed(unit, "deleted %d", n)
			total += n
		}
	}
	report.Finish("Deleted %d objects on %d images", total, len(images))
	return report, nil
}

type DeleteROIsScript struct {
	scripts.Base
}

func NewDeleteROIsScript() *DeleteROIsScript {
	return &DeleteROIsScript{scripts.NewBase(scripts.Info{
		Name:        DeleteROIsName,
		URL:         DeleteROIsURL,
		Version:     Version,
		Description: "Delete all ROIs on the images of a dataset",
		ParamSchema: deleteROIsSchema,
	})}
}

func (s *DeleteROIsScript) Help() string {
	return s.FullHelp(deleteROIsHelp)
}

func (s *DeleteROIsScript) Run(ctx context.Context, env *scripts.Env) (*omero.Report, error) {
	return forDatasetImages(ctx, env, DeleteROIsName, func(ctx context.Context, conn gateway.Conn, img omero.Image) (int, error) {
		rois, err := conn.ListROIs(ctx, img.ID)
		if err != nil || len(rois) == 0 {
			return 0, err
		}
		ids := make([]int64, len(rois))
		for i, roi := range rois {
			ids[i] = roi.ID
		}
		omero.Infof("Deleting %d ROIs...\n", len(ids))
		return len(ids), conn.DeleteROIs(ctx, ids)
	})
}

type DeleteAnnotationsScript struct {
	scripts.Base
}

func NewDeleteAnnotationsScript() *DeleteAnnotationsScript {
	return &DeleteAnnotationsScript{scripts.NewBase(scripts.Info{
		Name:        DeleteAnnotationsName,
		URL:         DeleteAnnotationsURL,
		Version:     Version,
		Description: "Delete annotations in a namespace on the images of a dataset",
		ParamSchema: deleteAnnotationsSchema,
	})}
}

func (s *DeleteAnnotationsScript) Help() string {
	return s.FullHelp(deleteAnnotationsHelp)
}

func (s *DeleteAnnotationsScript) Run(ctx context.Context, env *scripts.Env) (*omero.Report, error) {
	ns := env.Params.String("ns", omero.NSROIExport)
	return forDatasetImages(ctx, env, DeleteAnnotationsName, func(ctx context.Context, conn gateway.Conn, img omero.Image) (int, error) {
		links, err := conn.ListAnnotations(ctx, scripts.ImageRef(img.ID), "", ns)
		if err != nil || len(links) == 0 {
			return 0, err
		}
		ids := make([]int64, len(links))
		for i, l := range links {
			ids[i] = l.AnnotationID
		}
		omero.Infof("Deleting %d anns...\n", len(ids))
		return len(ids), conn.DeleteAnnotations(ctx, ids)
	})
}
