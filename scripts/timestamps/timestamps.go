/*
	Package timestamps sets the time stamps of all images in a dataset of each
	training account.  Every timepoint gets a fixed interval after the previous one.
*/
package timestamps

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/omerotools/gateway"
	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
)

const (
	Name    = "set-timestamps"
	URL     = "github.com/janelia-flyem/omerotools/scripts/timestamps"
	Version = "0.1"

	// DefaultDelta is the interval between timepoints in seconds.
	DefaultDelta = 300
)

var DefaultUsers = omero.Range{First: 1, Last: 50}

const helpMessage = `
Sets the time stamps of all images in a dataset of each training account.

    $ omerotools set-timestamps target=<dataset name> [delta=300] [users=1-50]

    delta    Seconds between timepoints

    Plane infos of the first Z and channel are created when missing and updated
    otherwise, with deltaT = t * delta.
`

const paramSchema = `{
	"type": "object",
	"properties": {
		"target": {"type": "string", "minLength": 1},
		"delta": {"type": "number", "minimum": 0},
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
		Description: "Set time stamps of images in each user's dataset",
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
	delta := env.Params.Float("delta", DefaultDelta)

	report := omero.NewReport(Name)
	err = scripts.ForEachUser(ctx, env, users, report, func(ctx context.Context, conn gateway.Conn, user omero.Experimenter) (string, error) {
		ds, images, err := scripts.TargetImages(ctx, conn, target, user.ID)
		if err != nil {
			return "", err
		}
		var planes int
		for i := range images {
			n, err := SetTimestamps(ctx, conn, &images[i], delta)
			if err != nil {
				return "", fmt.Errorf("image %d: %w", images[i].ID, err)
			}
			planes += n
		}
		return fmt.Sprintf("set %d time stamps on %d images in dataset %d", planes, len(images), ds.ID), nil
	})
	report.Finish("Set time stamps in datasets %q of users %s", target, users)
	return report, err
}

// Timestamps returns the plane infos of the first Z and channel with deltaT
// set from the timepoint.  Existing infos are updated and kept in order;
// without any, one per timepoint of the image is created.
func Timestamps(existing []omero.PlaneInfo, sizeT int, delta float64) []omero.PlaneInfo {
	var infos []omero.PlaneInfo
	for _, info := range existing {
		if info.Z == 0 && info.C == 0 {
			info.DeltaT = float64(info.T) * delta
			infos = append(infos, info)
		}
	}
	if len(infos) > 0 {
		return infos
	}
	omero.Debugf("Creating info for %d timepoints\n", sizeT)
	for t := 0; t < sizeT; t++ {
		infos = append(infos, omero.PlaneInfo{T: t, DeltaT: float64(t) * delta})
	}
	return infos
}

// SetTimestamps saves the time stamps of one image and returns how many were set.
func SetTimestamps(ctx context.Context, conn gateway.Updater, img *omero.Image, delta float64) (int, error) {
	existing, err := conn.PlaneInfos(ctx, img.ID)
	if err != nil {
		return 0, err
	}
	infos := Timestamps(existing, img.SizeT, delta)
	if err := conn.SavePlaneInfos(ctx, img.ID, infos); err != nil {
		return 0, err
	}
	return len(infos), nil
}
