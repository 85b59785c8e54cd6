package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/janelia-flyem/omerotools/omero"
)

func (c *Client) GetProject(ctx context.Context, id int64) (*omero.Project, error) {
	var obj jsonObject
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("m/projects/%d/", id), nil, nil, &obj); err != nil {
		return nil, fmt.Errorf("project %d: %w", id, err)
	}
	p := obj.project()
	return &p, nil
}

func (c *Client) GetDataset(ctx context.Context, id int64) (*omero.Dataset, error) {
	var obj jsonObject
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("m/datasets/%d/", id), nil, nil, &obj); err != nil {
		return nil, fmt.Errorf("dataset %d: %w", id, err)
	}
	d := obj.dataset()
	return &d, nil
}

func (c *Client) GetPlate(ctx context.Context, id int64) (*omero.Plate, error) {
	var obj jsonObject
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("m/plates/%d/", id), nil, nil, &obj); err != nil {
		return nil, fmt.Errorf("plate %d: %w", id, err)
	}
	p := obj.plate()
	return &p, nil
}

func (c *Client) GetImage(ctx context.Context, id int64) (*omero.Image, error) {
	if img, found := c.cache.image(id); found {
		return img, nil
	}
	var ji jsonImage
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("m/images/%d/", id), nil, nil, &ji); err != nil {
		return nil, fmt.Errorf("image %d: %w", id, err)
	}
	img := ji.image()
	c.cache.putImage(img)
	return img, nil
}

func (c *Client) ListDatasets(ctx context.Context, projectID int64) ([]omero.Dataset, error) {
	var objs []jsonObject
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("m/projects/%d/datasets/", projectID), nil, nil, &objs); err != nil {
		return nil, fmt.Errorf("datasets of project %d: %w", projectID, err)
	}
	datasets := make([]omero.Dataset, len(objs))
	for i, obj := range objs {
		datasets[i] = obj.dataset()
	}
	return datasets, nil
}

func (c *Client) ListImages(ctx context.Context, datasetID int64) ([]omero.Image, error) {
	var jis []jsonImage
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("m/datasets/%d/images/", datasetID), nil, nil, &jis); err != nil {
		return nil, fmt.Errorf("images of dataset %d: %w", datasetID, err)
	}
	images := make([]omero.Image, len(jis))
	for i, ji := range jis {
		img := ji.image()
		c.cache.putImage(img)
		images[i] = *img
	}
	return images, nil
}

func (c *Client) ListWells(ctx context.Context, plateID int64) ([]omero.Well, error) {
	var jws []jsonWell
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("m/plates/%d/wells/", plateID), nil, nil, &jws); err != nil {
		return nil, fmt.Errorf("wells of plate %d: %w", plateID, err)
	}
	wells := make([]omero.Well, len(jws))
	for i, jw := range jws {
		w := omero.Well{ID: jw.ID, Row: jw.Row, Column: jw.Column}
		for _, ws := range jw.WellSamples {
			w.ImageIDs = append(w.ImageIDs, ws.Image.ID)
		}
		wells[i] = w
	}
	return wells, nil
}

func (c *Client) ImageDatasets(ctx context.Context, imageID int64) ([]omero.Dataset, error) {
	if v, found := c.cache.parent("image", imageID); found {
		return v.([]omero.Dataset), nil
	}
	var objs []jsonObject
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("m/images/%d/datasets/", imageID), nil, nil, &objs); err != nil {
		return nil, fmt.Errorf("datasets of image %d: %w", imageID, err)
	}
	datasets := make([]omero.Dataset, len(objs))
	for i, obj := range objs {
		datasets[i] = obj.dataset()
	}
	c.cache.putParent("image", imageID, datasets)
	return datasets, nil
}

func (c *Client) DatasetProjects(ctx context.Context, datasetID int64) ([]omero.Project, error) {
	if v, found := c.cache.parent("dataset", datasetID); found {
		return v.([]omero.Project), nil
	}
	var objs []jsonObject
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("m/datasets/%d/projects/", datasetID), nil, nil, &objs); err != nil {
		return nil, fmt.Errorf("projects of dataset %d: %w", datasetID, err)
	}
	projects := make([]omero.Project, len(objs))
	for i, obj := range objs {
		projects[i] = obj.project()
	}
	c.cache.putParent("dataset", datasetID, projects)
	return projects, nil
}

func findQuery(name string, ownerID int64) url.Values {
	q := url.Values{}
	q.Set("name", name)
	if ownerID != 0 {
		q.Set("owner", strconv.FormatInt(ownerID, 10))
	}
	return q
}

func (c *Client) FindDatasets(ctx context.Context, name string, ownerID int64) ([]omero.Dataset, error) {
	var objs []jsonObject
	if err := c.do(ctx, http.MethodGet, "m/datasets/", findQuery(name, ownerID), nil, &objs); err != nil {
		return nil, fmt.Errorf("find dataset %q: %w", name, err)
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].ID > objs[j].ID })
	datasets := make([]omero.Dataset, 0, len(objs))
	for _, obj := range objs {
		if obj.Name == name {
			datasets = append(datasets, obj.dataset())
		}
	}
	return datasets, nil
}

func (c *Client) FindProjects(ctx context.Context, name string, ownerID int64) ([]omero.Project, error) {
	var objs []jsonObject
	if err := c.do(ctx, http.MethodGet, "m/projects/", findQuery(name, ownerID), nil, &objs); err != nil {
		return nil, fmt.Errorf("find project %q: %w", name, err)
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].ID > objs[j].ID })
	projects := make([]omero.Project, 0, len(objs))
	for _, obj := range objs {
		if obj.Name == name {
			projects = append(projects, obj.project())
		}
	}
	return projects, nil
}

func (c *Client) FindImages(ctx context.Context, name string, ownerID int64) ([]omero.Image, error) {
	var jis []jsonImage
	if err := c.do(ctx, http.MethodGet, "m/images/", findQuery(name, ownerID), nil, &jis); err != nil {
		return nil, fmt.Errorf("find image %q: %w", name, err)
	}
	sort.Slice(jis, func(i, j int) bool { return jis[i].ID > jis[j].ID })
	images := make([]omero.Image, 0, len(jis))
	for _, ji := range jis {
		if ji.Name == name {
			images = append(images, *ji.image())
		}
	}
	return images, nil
}
