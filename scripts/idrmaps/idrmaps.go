/*
	Package idrmaps copies the map annotations of images in a public Image Data
	Resource project onto a local copy of that project.  Datasets and images are
	matched by name.
*/
package idrmaps

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/omerotools/gateway"
	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
)

const (
	Name    = "copy-map-annotations"
	URL     = "github.com/janelia-flyem/omerotools/scripts/idrmaps"
	Version = "0.1"

	DefaultIDR = "https://idr.openmicroscopy.org"

	// PublicUser logs in to the public resource.
	PublicUser     = "public"
	PublicPassword = "public"
)

const helpMessage = `
Copies map annotations from the images of a public IDR project to the images
with the same names in a local project.

    $ omerotools copy-map-annotations idr=<IDR project id> project=<local project id> [idr_url=https://idr.openmicroscopy.org]

    Local datasets without a dataset of the same name in the IDR project are skipped.
`

const paramSchema = `{
	"type": "object",
	"properties": {
		"idr": {"type": "integer", "minimum": 1},
		"project": {"type": "integer", "minimum": 1},
		"idr_url": {"type": "string"}
	},
	"required": ["idr", "project"],
	"additionalProperties": false
}`

func init() {
	scripts.Register(NewScript())
}

type Script struct {
	scripts.Base

	// Source opens sessions on the public resource.  If nil, an HTTP dialer
	// for the idr_url setting is used.
	Source gateway.Dialer
}

func NewScript() *Script {
	return &Script{Base: scripts.NewBase(scripts.Info{
		Name:        Name,
		URL:         URL,
		Version:     Version,
		Description: "Copy map annotations from a public IDR project",
		ParamSchema: paramSchema,
	})}
}

func (s *Script) Help() string {
	return s.FullHelp(helpMessage)
}

func (s *Script) source(env *scripts.Env) gateway.Dialer {
	if s.Source != nil {
		return s.Source
	}
	d := gateway.NewHTTPDialer("", 0)
	d.WebURL = env.Params.String("idr_url", DefaultIDR)
	return d
}

func byName(ctx context.Context, conn gateway.Browser, datasetID int64) (map[string]omero.Image, error) {
	images, err := conn.ListImages(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	m := make(map[string]omero.Image, len(images))
	for _, img := range images {
		m[img.Name] = img
	}
	return m, nil
}

// CopyDataset copies the map annotations of every image of the source
// dataset onto the image with the same name in the destination dataset and
// returns the number of annotations created.
func CopyDataset(ctx context.Context, src, dst gateway.Conn, srcID, dstID int64, report *omero.Report) (int, error) {
	srcImages, err := byName(ctx, src, srcID)
	if err != nil {
		return 0, err
	}
	dstImages, err := dst.ListImages(ctx, dstID)
	if err != nil {
		return 0, err
	}
	var copied int
	for _, img := range dstImages {
		unit := fmt.Sprintf("image %d %s", img.ID, img.Name)
		srcImg, found := srcImages[img.Name]
		if !found {
			report.Skip(unit, "no image of that name in the source dataset")
			continue
		}
		anns, err := src.MapAnnotations(ctx, scripts.ImageRef(srcImg.ID), "")
		if err != nil {
			report.Fail(unit, err)
			continue
		}
		var n int
		for _, ann := range anns {
			if _, err = dst.CreateMapAnnotation(ctx, ann.Namespace, ann.Values, scripts.ImageRef(img.ID)); err != nil {
				break
			}
			n++
		}
		copied += n
		if err != nil {
			report.Fail(unit, err)
			continue
		}
		report.Succeed(unit, "added %d map annotations", n)
	}
	return copied, nil
}

func (s *Script) Run(ctx context.Context, env *scripts.Env) (*omero.Report, error) {
	idrID := int64(env.Params.Int("idr", 0))
	projectID := int64(env.Params.Int("project", 0))

	conn, err := env.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	src, err := s.source(env).Connect(ctx, PublicUser, PublicPassword)
	if err != nil {
		return nil, fmt.Errorf("could not connect to the public resource: %w", err)
	}
	defer src.Close()

	srcDatasets, err := src.ListDatasets(ctx, idrID)
	if err != nil {
		return nil, err
	}
	srcByName := make(map[string]int64, len(srcDatasets))
	for _, ds := range srcDatasets {
		srcByName[ds.Name] = ds.ID
	}
	datasets, err := conn.ListDatasets(ctx, projectID)
	if err != nil {
		return nil, err
	}

	report := omero.NewReport(Name)
	var copied int
	for _, ds := range datasets {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		srcID, found := srcByName[ds.Name]
		if !found {
			report.Skip("dataset "+ds.Name, "no dataset of that name in IDR project %d", idrID)
			continue
		}
		n, err := CopyDataset(ctx, src, conn, srcID, ds.ID, report)
		if err != nil {
			report.Fail("dataset "+ds.Name, err)
			continue
		}
		copied += n
	}
	report.Finish("Copied %d map annotations", copied)
	return report, nil
}
