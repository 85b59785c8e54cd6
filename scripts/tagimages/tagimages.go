/*
	Package tagimages links a tag owned by a trainer to named images in a dataset
	of each training account.
*/
package tagimages

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/omerotools/gateway"
	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
)

const (
	Name    = "tag-images"
	URL     = "github.com/janelia-flyem/omerotools/scripts/tagimages"
	Version = "0.1"
)

const DefaultTagOwner = "trainer-1"

var DefaultUsers = omero.Range{First: 1, Last: 40}

// DefaultImages are tagged when no image list is given.
var DefaultImages = []string{
	"A1.pattern1.tif",
	"B12.pattern1.tif",
	"B12.pattern2.tif",
	"B12.pattern3.tif",
	"C4.pattern9.tif",
	"C4.pattern.tif",
}

const helpMessage = `
Tags a set of images in a dataset of each training account.

    $ omerotools tag-images target=<dataset name> tag=<tag text> [name=trainer-1] [images=<list.yaml>] [users=1-40]

    name      Owner of the tag (default trainer-1)
    images    YAML or JSON list of image names to tag

    Images already carrying the tag are left alone.
`

const paramSchema = `{
	"type": "object",
	"properties": {
		"target": {"type": "string", "minLength": 1},
		"tag": {"type": "string", "minLength": 1},
		"name": {"type": "string"},
		"images": {"type": "string"},
		"users": {"type": "string", "pattern": "^[0-9]+(-[0-9]+)?$"},
		"prefix": {"type": "string"}
	},
	"required": ["target", "tag"],
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
		Description: "Tag named images in each user's dataset",
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
	names := DefaultImages
	if filename := env.Params.String("images", ""); filename != "" {
		names = nil
		if err := scripts.ReadDataFile(filename, &names); err != nil {
			return nil, err
		}
	}
	target := env.Params.String(scripts.KeyTarget, "")
	tag := env.Params.String("tag", "")
	owner := env.Params.String("name", DefaultTagOwner)

	report := omero.NewReport(Name)
	err = scripts.ForEachUser(ctx, env, users, report, func(ctx context.Context, conn gateway.Conn, user omero.Experimenter) (string, error) {
		return TagImages(ctx, conn, target, user.ID, tag, owner, names)
	})
	report.Finish("Tagged images with %q in datasets %q of users %s", tag, target, users)
	return report, err
}

// TagImages links the owner's tag to the named images of the user's dataset
// that do not carry it yet.
func TagImages(ctx context.Context, conn gateway.Conn, target string, userID int64, tag, tagOwner string, names []string) (string, error) {
	ds, images, err := scripts.TargetImages(ctx, conn, target, userID)
	if err != nil {
		return "", err
	}
	owner, err := conn.LookupExperimenter(ctx, tagOwner)
	if err != nil {
		return "", err
	}
	tags, err := conn.FindTags(ctx, tag, owner.ID)
	if err != nil {
		return "", err
	}
	if len(tags) == 0 {
		return "", fmt.Errorf("tag %q of %s: %w", tag, tagOwner, omero.ErrNotFound)
	}
	tagID := tags[0].ID

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	var refs []omero.ObjectRef
	for _, img := range images {
		if !wanted[img.Name] {
			continue
		}
		ref := scripts.ImageRef(img.ID)
		linked, err := hasAnnotation(ctx, conn, ref, tagID)
		if err != nil {
			return "", err
		}
		if linked {
			omero.Infof("Tag %s already linked to %s\n", tag, img.Name)
			continue
		}
		refs = append(refs, ref)
	}
	if len(refs) > 0 {
		if err := conn.LinkAnnotation(ctx, tagID, refs...); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("linked tag %d to %d images in dataset %d", tagID, len(refs), ds.ID), nil
}

func hasAnnotation(ctx context.Context, conn gateway.Annotator, parent omero.ObjectRef, annotationID int64) (bool, error) {
	links, err := conn.ListAnnotations(ctx, parent, omero.TagKind, "")
	if err != nil {
		return false, err
	}
	for _, l := range links {
		if l.AnnotationID == annotationID {
			return true, nil
		}
	}
	return false, nil
}
