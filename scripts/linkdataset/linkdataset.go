/*
	Package linkdataset links a dataset of each training account to a project of
	the same account, optionally creating the project first.
*/
package linkdataset

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/omerotools/gateway"
	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
)

const (
	Name    = "link-dataset"
	URL     = "github.com/janelia-flyem/omerotools/scripts/linkdataset"
	Version = "0.1"
)

var DefaultUsers = omero.Range{First: 1, Last: 40}

const helpMessage = `
Links the newest dataset with a name to the newest project with a name, for each
training account.

    $ omerotools link-dataset project=<project name> dataset=<dataset name> [new=false] [users=1-40]

    new     Create a new project with the name instead of looking one up
`

const paramSchema = `{
	"type": "object",
	"properties": {
		"project": {"type": "string", "minLength": 1},
		"dataset": {"type": "string", "minLength": 1},
		"new": {"type": "boolean"},
		"users": {"type": "string", "pattern": "^[0-9]+(-[0-9]+)?$"},
		"prefix": {"type": "string"}
	},
	"required": ["project", "dataset"],
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
		Description: "Link each user's dataset to a project",
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
	projectName := env.Params.String("project", "")
	datasetName := env.Params.String("dataset", "")
	create := env.Params.Bool("new", false)

	report := omero.NewReport(Name)
	err = scripts.ForEachUser(ctx, env, users, report, func(ctx context.Context, conn gateway.Conn, user omero.Experimenter) (string, error) {
		return Link(ctx, conn, user.ID, projectName, datasetName, create)
	})
	report.Finish("Linked datasets %q to projects %q of users %s", datasetName, projectName, users)
	return report, err
}

// Link links the owner's newest dataset to the owner's newest project, or to
// a new project when create is set.  The dataset is looked up first so no
// project is created for an account without the dataset.
func Link(ctx context.Context, conn gateway.Conn, ownerID int64, projectName, datasetName string, create bool) (string, error) {
	ds, err := scripts.NewestDataset(ctx, conn, datasetName, ownerID)
	if err != nil {
		return "", err
	}
	var project *omero.Project
	if create {
		project, err = conn.CreateProject(ctx, projectName)
	} else {
		project, err = scripts.NewestProject(ctx, conn, projectName, ownerID)
	}
	if err != nil {
		return "", err
	}
	if err := conn.LinkDatasetToProject(ctx, ds.ID, project.ID); err != nil {
		return "", err
	}
	return fmt.Sprintf("linked dataset %d to project %d", ds.ID, project.ID), nil
}
