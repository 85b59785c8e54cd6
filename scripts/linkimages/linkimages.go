/*
	Package linkimages gathers the images with a given name into a new dataset
	in each training account.
*/
package linkimages

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/omerotools/gateway"
	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
)

const (
	Name    = "link-images"
	URL     = "github.com/janelia-flyem/omerotools/scripts/linkimages"
	Version = "0.1"
)

var DefaultUsers = omero.Range{First: 1, Last: 50}

const helpMessage = `
Creates a dataset for each training account and links every image of the
account with the target name to it.  Accounts without such an image are
skipped and get no dataset.

    $ omerotools link-images dataset=<dataset name> target=<image name> [users=1-50]
`

const paramSchema = `{
	"type": "object",
	"properties": {
		"dataset": {"type": "string", "minLength": 1},
		"target": {"type": "string", "minLength": 1},
		"users": {"type": "string", "pattern": "^[0-9]+(-[0-9]+)?$"},
		"prefix": {"type": "string"}
	},
	"required": ["dataset", "target"],
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
		Description: "Link each user's images with a name into a new dataset",
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
	datasetName := env.Params.String("dataset", "")
	target := env.Params.String("target", "")

	report := omero.NewReport(Name)
	err = scripts.ForEachUser(ctx, env, users, report, func(ctx context.Context, conn gateway.Conn, user omero.Experimenter) (string, error) {
		return Link(ctx, conn, user.ID, datasetName, target)
	})
	report.Finish("Linked images %q into datasets %q of users %s", target, datasetName, users)
	return report, err
}

// Link creates a dataset owned by the session user and links the owner's
// images named target to it.  Images are looked up first so no dataset is
// created for an account without a match.
func Link(ctx context.Context, conn gateway.Conn, ownerID int64, datasetName, target string) (string, error) {
	images, err := conn.FindImages(ctx, target, ownerID)
	if err != nil {
		return "", err
	}
	if len(images) == 0 {
		return "", fmt.Errorf("image %q: %w", target, omero.ErrNotFound)
	}
	ids := make([]int64, len(images))
	for i, img := range images {
		ids[i] = img.ID
	}
	ds, err := conn.CreateDataset(ctx, datasetName)
	if err != nil {
		return "", err
	}
	if err := conn.LinkImages(ctx, ds.ID, ids); err != nil {
		return "", err
	}
	return fmt.Sprintf("linked %d images to dataset %d", len(ids), ds.ID), nil
}
