/*
	Package hello implements a minimal script that lists the images of a selection.
	It is useful for checking a connection and the script machinery.
*/
package hello

import (
	"context"
	"errors"

	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
	"github.com/janelia-flyem/omerotools/scripts/roiexport"
)

const (
	Name    = "hello"
	URL     = "github.com/janelia-flyem/omerotools/scripts/hello"
	Version = "0.1"
)

const helpMessage = `
Lists the images of the selected datasets or images.

    $ omerotools hello Data_Type=Dataset IDs=<id,id,...>
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
		Description: "List the images of datasets",
		ParamSchema: paramSchema,
	})}
}

func (s *Script) Help() string {
	return s.FullHelp(helpMessage)
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
	for _, img := range images {
		report.Succeed(omero.ObjectRef{Type: omero.ImageType, ID: img.ID}.String(), "---- Processing image %s", img.Name)
	}
	report.Finish("Returned %d images", len(images))
	return report, nil
}
