/*
	Package copytags replicates the tags and ratings of a trainer's dataset onto
	the same-named images of each training account's dataset of the same name.
	It runs as the trainer, who must be an administrator.
*/
package copytags

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/omerotools/gateway"
	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
)

const (
	Name    = "copy-tags"
	URL     = "github.com/janelia-flyem/omerotools/scripts/copytags"
	Version = "0.1"
)

var DefaultUsers = omero.Range{First: 1, Last: 50}

const helpMessage = `
Copies tags and ratings from the images of your dataset to the same-named images
in the same-named dataset of each training account.

    $ omerotools copy-tags dataset=<dataset name> [users=1-50]

    Tags are linked, not duplicated.  Ratings are created anew on each image.
`

const paramSchema = `{
	"type": "object",
	"properties": {
		"dataset": {"type": "string", "minLength": 1},
		"users": {"type": "string", "pattern": "^[0-9]+(-[0-9]+)?$"},
		"prefix": {"type": "string"}
	},
	"required": ["dataset"],
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
		Description: "Copy tags and ratings to each user's dataset",
		ParamSchema: paramSchema,
	})}
}

func (s *Script) Help() string {
	return s.FullHelp(helpMessage)
}

// Annotations are the tags and rating of the source images keyed by image name.
type Annotations struct {
	Tags    map[string][]int64
	Ratings map[string]int64
}

// Collect reads the tags and ratings of the images in a dataset.
func Collect(ctx context.Context, conn gateway.Conn, datasetName string, ownerID int64) (*Annotations, error) {
	_, images, err := scripts.TargetImages(ctx, conn, datasetName, ownerID)
	if err != nil {
		return nil, err
	}
	anns := &Annotations{Tags: make(map[string][]int64), Ratings: make(map[string]int64)}
	for _, img := range images {
		links, err := conn.ListAnnotations(ctx, scripts.ImageRef(img.ID), "", "")
		if err != nil {
			return nil, err
		}
		for _, l := range links {
			switch {
			case l.Kind == omero.TagKind:
				anns.Tags[img.Name] = append(anns.Tags[img.Name], l.AnnotationID)
			case l.Kind == omero.LongKind && l.Namespace == omero.NSInsightRating:
				anns.Ratings[img.Name] = l.LongValue
			}
		}
	}
	omero.Infof("image ratings %v\n", anns.Ratings)
	return anns, nil
}

// Apply links the tags and creates the ratings on the matching images of the
// owner's dataset and returns the number of annotations added.
func (a *Annotations) Apply(ctx context.Context, conn gateway.Conn, datasetName string, ownerID int64) (int, error) {
	_, images, err := scripts.TargetImages(ctx, conn, datasetName, ownerID)
	if err != nil {
		return 0, err
	}
	var added int
	for _, img := range images {
		ref := scripts.ImageRef(img.ID)
		for _, tagID := range a.Tags[img.Name] {
			if err := conn.LinkAnnotation(ctx, tagID, ref); err != nil {
				return added, fmt.Errorf("image %d: %w", img.ID, err)
			}
			added++
		}
		if rating, found := a.Ratings[img.Name]; found {
			if _, err := conn.CreateLongAnnotation(ctx, omero.NSInsightRating, rating, ref); err != nil {
				return added, fmt.Errorf("image %d: %w", img.ID, err)
			}
			added++
		}
	}
	return added, nil
}

func (s *Script) Run(ctx context.Context, env *scripts.Env) (*omero.Report, error) {
	users, err := env.Users(DefaultUsers)
	if err != nil {
		return nil, err
	}
	datasetName := env.Params.String("dataset", "")
	prefix := env.Params.String(scripts.KeyUserPrefix, scripts.DefaultUserPrefix)

	conn, err := env.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	me, err := conn.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	anns, err := Collect(ctx, conn, datasetName, me.ID)
	if err != nil {
		return nil, err
	}

	report := omero.NewReport(Name)
	for i := users.First; i <= users.Last; i++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		name := omero.UserName(prefix, i)
		exp, err := conn.LookupExperimenter(ctx, name)
		if err != nil {
			report.Fail(name, err)
			continue
		}
		added, err := anns.Apply(ctx, conn, datasetName, exp.ID)
		if err != nil {
			report.Fail(name, err)
			continue
		}
		report.Succeed(name, "%d links", added)
	}
	report.Finish("Copied %d tagged and %d rated images to users %s", len(anns.Tags), len(anns.Ratings), users)
	return report, nil
}
