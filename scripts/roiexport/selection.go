package roiexport

import (
	"context"
	"errors"
	"fmt"

	"github.com/janelia-flyem/omerotools/gateway"
	"github.com/janelia-flyem/omerotools/omero"
)

// ErrNoImages is returned when a selection resolves to no images.  It is an
// outcome to report, not a failure.
var ErrNoImages = errors.New("No images found")

// Resolve expands a selection into the ordered list of images to process.
// Projects expand to their datasets' images and datasets to their images, in
// server order.  Images are not deduplicated: an image reached through two
// datasets appears twice, once with each parent.  Containers that do not exist
// are skipped and recorded in report, which may be nil.
func Resolve(ctx context.Context, b gateway.Browser, dataType omero.DataType, ids []int64, report *omero.Report) ([]*omero.Image, error) {
	var images []*omero.Image
	skip := func(ref omero.ObjectRef, err error) error {
		if !errors.Is(err, omero.ErrNotFound) {
			return err
		}
		omero.Warningf("Skipping %s: %v\n", ref, err)
		if report != nil {
			report.Add(omero.Result{Unit: ref.String(), Outcome: omero.Skipped, Message: err.Error()})
		}
		return nil
	}

	switch dataType {
	case omero.ProjectType:
		for _, id := range ids {
			ref := omero.ObjectRef{Type: omero.ProjectType, ID: id}
			proj, err := b.GetProject(ctx, id)
			if err != nil {
				if err = skip(ref, err); err != nil {
					return nil, err
				}
				continue
			}
			datasets, err := b.ListDatasets(ctx, id)
			if err != nil {
				return nil, err
			}
			for i := range datasets {
				dsImages, err := datasetImages(ctx, b, &datasets[i], proj)
				if err != nil {
					return nil, err
				}
				images = append(images, dsImages...)
			}
		}

	case omero.DatasetType:
		for _, id := range ids {
			ref := omero.ObjectRef{Type: omero.DatasetType, ID: id}
			ds, err := b.GetDataset(ctx, id)
			if err != nil {
				if err = skip(ref, err); err != nil {
					return nil, err
				}
				continue
			}
			proj, err := firstProject(ctx, b, ds.ID)
			if err != nil {
				return nil, err
			}
			dsImages, err := datasetImages(ctx, b, ds, proj)
			if err != nil {
				return nil, err
			}
			images = append(images, dsImages...)
		}

	case omero.ImageType:
		for _, id := range ids {
			ref := omero.ObjectRef{Type: omero.ImageType, ID: id}
			img, err := b.GetImage(ctx, id)
			if err != nil {
				if err = skip(ref, err); err != nil {
					return nil, err
				}
				continue
			}
			parents, err := b.ImageDatasets(ctx, id)
			if err != nil {
				return nil, err
			}
			var ds *omero.Dataset
			var proj *omero.Project
			if len(parents) > 0 {
				ds = &parents[0]
				if proj, err = firstProject(ctx, b, ds.ID); err != nil {
					return nil, err
				}
			}
			images = append(images, img.WithParents(ds, proj))
		}

	default:
		return nil, fmt.Errorf("cannot export ROIs from %q: %w", dataType, omero.ErrInvalidArgument)
	}

	omero.Infof("Processing %d images...\n", len(images))
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	return images, nil
}

func datasetImages(ctx context.Context, b gateway.Browser, ds *omero.Dataset, proj *omero.Project) ([]*omero.Image, error) {
	children, err := b.ListImages(ctx, ds.ID)
	if err != nil {
		return nil, err
	}
	images := make([]*omero.Image, len(children))
	for i := range children {
		images[i] = children[i].WithParents(ds, proj)
	}
	return images, nil
}

func firstProject(ctx context.Context, b gateway.Browser, datasetID int64) (*omero.Project, error) {
	projects, err := b.DatasetProjects(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, nil
	}
	return &projects[0], nil
}

// FirstProject returns the project of the first image that has one, or nil.
func FirstProject(images []*omero.Image) *omero.Project {
	for _, img := range images {
		if img.Project != nil {
			return img.Project
		}
	}
	return nil
}
