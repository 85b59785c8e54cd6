/*
	Package calibrate sets the pixel size of every image in a named dataset of each
	training account.  Each change is made by the owner of the dataset.
*/
package calibrate

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/omerotools/gateway"
	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
)

const (
	Name    = "calibrate"
	URL     = "github.com/janelia-flyem/omerotools/scripts/calibrate"
	Version = "0.1"
)

const (
	DefaultSize = 0.33
	DefaultUnit = "MICROMETER"
)

// DefaultUsers are the training accounts calibrated when no range is given.
var DefaultUsers = omero.Range{First: 1, Last: 40}

const helpMessage = `
Sets physical size X and Y of all images in a dataset of each training account.

    $ omerotools calibrate target=<dataset name> [users=1-40] [size=0.33] [unit=MICROMETER]

    The dataset is looked up by name among the datasets owned by each user.
`

const paramSchema = `{
	"type": "object",
	"properties": {
		"target": {"type": "string", "minLength": 1},
		"size": {"type": "number", "exclusiveMinimum": 0},
		"unit": {"type": "string", "enum": ["NANOMETER", "MICROMETER", "MILLIMETER"]},
		"users": {"type": "string", "pattern": "^[0-9]+(-[0-9]+)?$"},
		"prefix": {"type": "string"}
	},
	"required": ["target"],
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
		Description: "Set the pixel size of images in each user's dataset",
		ParamSchema: paramSchema,
	})}
}

func (s *Script) Help() string {
	return s.FullHelp(helpMessage)
}

func (s *Script) Run(ctx context.Context, env *scripts.Env) (*omero.Report, error) {
	users, err := env.Users(DefaultUsers)
	if err != nil {
		return nil, err
	}
	target := env.Params.String(scripts.KeyTarget, "")
	size := omero.Length{
		Value: env.Params.Float("size", DefaultSize),
		Unit:  env.Params.String("unit", DefaultUnit),
	}

	report := omero.NewReport(Name)
	err = scripts.ForEachUser(ctx, env, users, report, func(ctx context.Context, conn gateway.Conn, user omero.Experimenter) (string, error) {
		return Calibrate(ctx, conn, target, user.ID, size)
	})
	report.Finish("Calibrated datasets %q of users %s", target, users)
	return report, err
}

// Calibrate sets the pixel size of all images in the owner's dataset in one update.
func Calibrate(ctx context.Context, conn gateway.Conn, target string, ownerID int64, size omero.Length) (string, error) {
	ds, images, err := scripts.TargetImages(ctx, conn, target, ownerID)
	if err != nil {
		return "", err
	}
	if len(images) == 0 {
		return fmt.Sprintf("dataset %d has no images", ds.ID), nil
	}
	ids := make([]int64, len(images))
	for i, img := range images {
		ids[i] = img.ID
	}
	if err := conn.SetPhysicalSizes(ctx, ids, size, size); err != nil {
		return "", err
	}
	return fmt.Sprintf("set pixel size of %d images in dataset %d to %g %s", len(ids), ds.ID, size.Value, size.Unit), nil
}
