/*
	Package cleanup removes what trainees added to course data.  The cleanup script
	collects tag links, ratings and ROIs on the images of a named dataset of an
	administrator and each training account and then deletes them all at once.
	The delete-rois and delete-annotations scripts clear one dataset by id.
*/
package cleanup

import (
	"context"

	"github.com/janelia-flyem/omerotools/gateway"
	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
)

const (
	Name    = "cleanup"
	URL     = "github.com/janelia-flyem/omerotools/scripts/cleanup"
	Version = "0.1"
)

var DefaultUsers = omero.Range{First: 1, Last: 50}

const helpMessage = `
Deletes ROIs and ratings and unlinks tags on the images of a dataset owned by you
and by each training account.  Run it as an administrator.

    $ omerotools cleanup dataset=<dataset name> [image=<image name>] [users=1-50]

    dataset   Name of the datasets to clean
    image     Name of an image to remove from the datasets containing it

    Tags themselves are kept; only their links to the images are removed.
`

const paramSchema = `{
	"type": "object",
	"properties": {
		"dataset": {"type": "string", "minLength": 1},
		"image": {"type": "string", "minLength": 1},
		"users": {"type": "string", "pattern": "^[0-9]+(-[0-9]+)?$"},
		"prefix": {"type": "string"}
	},
	"required": ["dataset"],
	"additionalProperties": false
}`

func init() {
	scripts.Register(NewScript())
	scripts.Register(NewDeleteROIsScript())
	scripts.Register(NewDeleteAnnotationsScript())
}

type Script struct {
	scripts.Base
}

func NewScript() *Script {
	return &Script{scripts.NewBase(scripts.Info{
		Name:        Name,
		URL:         URL,
		Version:     Version,
		Description: "Delete ROIs, ratings and tag links in course datasets",
		ParamSchema: paramSchema,
	})}
}

func (s *Script) Help() string {
	return s.FullHelp(helpMessage)
}

// Doomed collects the ids of objects to delete.
type Doomed struct {
	TagLinks []int64
	Ratings  []int64
	ROIs     []int64
}

// Collect adds the tag links, ratings and ROIs of the owner's dataset images.
func (d *Doomed) Collect(ctx context.Context, conn gateway.Conn, userName, datasetName string, ownerID int64) error {
	_, images, err := scripts.TargetImages(ctx, conn, datasetName, ownerID)
	if err != nil {
		return err
	}
	for _, img := range images {
		rois, err := conn.ListROIs(ctx, img.ID)
		if err != nil {
			return err
		}
		for _, roi := range rois {
			d.ROIs = append(d.ROIs, roi.ID)
		}
		if len(rois) > 0 {
			omero.Infof("Will delete %d ROIs on image %d of %s\n", len(rois), img.ID, userName)
		}
		links, err := conn.ListAnnotations(ctx, scripts.ImageRef(img.ID), "", "")
		if err != nil {
			return err
		}
		for _, l := range links {
			switch l.Kind {
			case omero.LongKind:
				omero.Infof("Will delete rating %d on image %d of %s\n", l.AnnotationID, img.ID, userName)
				d.Ratings = append(d.Ratings, l.AnnotationID)
			case omero.TagKind:
				omero.Infof("Will delete link %d on image %d of tag %d of %s\n", l.ID, img.ID, l.AnnotationID, userName)
				d.TagLinks = append(d.TagLinks, l.ID)
			}
		}
	}
	return nil
}

// Delete removes everything collected and records one result per kind.
func (d *Doomed) Delete(ctx context.Context, conn gateway.Conn, report *omero.Report) {
	del := func(unit string, ids []int64, fn func(context.Context, []int64) error) {
		if len(ids) == 0 {
			report.Skip(unit, "nothing to delete")
			return
		}
		if err := fn(ctx, ids); err != nil {
			report.Fail(unit, err)
			return
		}
		report.Succeed(unit, "deleted %d", len(ids))
	}
	del("tag links", d.TagLinks, conn.DeleteAnnotationLinks)
	del("rois", d.ROIs, conn.DeleteROIs)
	del("ratings", d.Ratings, conn.DeleteAnnotations)
}

// CutImage removes the named images of the owner's dataset from every
// dataset containing them and returns how many links were removed.
func CutImage(ctx context.Context, conn gateway.Conn, datasetName, imageName string, ownerID int64) (int, error) {
	_, images, err := scripts.TargetImages(ctx, conn, datasetName, ownerID)
	if err != nil {
		return 0, err
	}
	var cut int
	for _, img := range images {
		if img.Name != imageName {
			continue
		}
		parents, err := conn.ImageDatasets(ctx, img.ID)
		if err != nil {
			return cut, err
		}
		for _, ds := range parents {
			if err := conn.UnlinkImage(ctx, img.ID, ds.ID); err != nil {
				return cut, err
			}
			cut++
		}
	}
	return cut, nil
}

func (s *Script) Run(ctx context.Context, env *scripts.Env) (*omero.Report, error) {
	users, err := env.Users(DefaultUsers)
	if err != nil {
		return nil, err
	}
	datasetName := env.Params.String("dataset", "")
	imageName := env.Params.String("image", "")
	prefix := env.Params.String(scripts.KeyUserPrefix, scripts.DefaultUserPrefix)

	conn, err := env.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	admin, err := conn.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	owners := []omero.Experimenter{admin}
	report := omero.NewReport(Name)
	for i := users.First; i <= users.Last; i++ {
		name := omero.UserName(prefix, i)
		exp, err := conn.LookupExperimenter(ctx, name)
		if err != nil {
			report.Fail(name, err)
			continue
		}
		owners = append(owners, exp)
	}

	var doomed Doomed
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := doomed.Collect(ctx, conn, owner.UserName, datasetName, owner.ID); err != nil {
			report.Fail(owner.UserName, err)
			continue
		}
		if imageName != "" {
			cut, err := CutImage(ctx, conn, datasetName, imageName, owner.ID)
			if err != nil {
				report.Fail(owner.UserName, err)
				continue
			}
			omero.Debugf("Removed %d dataset links of %s of %s\n", cut, imageName, owner.UserName)
		}
		report.Succeed(owner.UserName, "listed")
	}
	doomed.Delete(ctx, conn, report)
	report.Finish("Deleted %d tag links, %d ROIs and %d ratings", len(doomed.TagLinks), len(doomed.ROIs), len(doomed.Ratings))
	return report, nil
}
