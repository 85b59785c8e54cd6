package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/janelia-flyem/omerotools/omero"
)

func (c *Client) SetPhysicalSizes(ctx context.Context, imageIDs []int64, x, y omero.Length) error {
	body := struct {
		Images        []int64    `json:"images"`
		PhysicalSizeX jsonLength `json:"PhysicalSizeX"`
		PhysicalSizeY jsonLength `json:"PhysicalSizeY"`
	}{imageIDs, jsonLength(x), jsonLength(y)}
	if err := c.do(ctx, http.MethodPut, "m/images/physicalsizes/", nil, body, nil); err != nil {
		return fmt.Errorf("set physical sizes of %d images: %w", len(imageIDs), err)
	}
	for _, id := range imageIDs {
		c.cache.dropImage(id)
	}
	return nil
}

func (c *Client) SetChannelLabels(ctx context.Context, imageID int64, labels map[int]string) error {
	body := make(map[string]string, len(labels))
	for i, label := range labels {
		body[strconv.Itoa(i)] = label
	}
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("m/images/%d/channels/", imageID), nil, body, nil); err != nil {
		return fmt.Errorf("rename channels of image %d: %w", imageID, err)
	}
	c.cache.dropImage(imageID)
	return nil
}

func (c *Client) PlaneInfos(ctx context.Context, imageID int64) ([]omero.PlaneInfo, error) {
	var jps []jsonPlaneInfo
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("m/images/%d/planeinfos/", imageID), nil, nil, &jps); err != nil {
		return nil, fmt.Errorf("plane infos of image %d: %w", imageID, err)
	}
	infos := make([]omero.PlaneInfo, len(jps))
	for i, jp := range jps {
		infos[i] = omero.PlaneInfo{ID: jp.ID, Z: jp.TheZ, C: jp.TheC, T: jp.TheT}
		if jp.DeltaT != nil {
			infos[i].DeltaT = jp.DeltaT.Value
		}
	}
	return infos, nil
}

func (c *Client) SavePlaneInfos(ctx context.Context, imageID int64, infos []omero.PlaneInfo) error {
	jps := make([]jsonPlaneInfo, len(infos))
	for i, info := range infos {
		jps[i] = jsonPlaneInfo{
			ID:     info.ID,
			TheZ:   info.Z,
			TheC:   info.C,
			TheT:   info.T,
			DeltaT: &jsonLength{Value: info.DeltaT, Unit: "SECOND"},
		}
	}
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("m/images/%d/planeinfos/", imageID), nil, jps, nil); err != nil {
		return fmt.Errorf("save plane infos of image %d: %w", imageID, err)
	}
	return nil
}

func (c *Client) CreateProject(ctx context.Context, name string) (*omero.Project, error) {
	var obj jsonObject
	if err := c.do(ctx, http.MethodPost, "m/projects/", nil, jsonObject{Name: name}, &obj); err != nil {
		return nil, fmt.Errorf("create project %q: %w", name, err)
	}
	p := obj.project()
	return &p, nil
}

func (c *Client) CreateDataset(ctx context.Context, name string) (*omero.Dataset, error) {
	var obj jsonObject
	if err := c.do(ctx, http.MethodPost, "m/datasets/", nil, jsonObject{Name: name}, &obj); err != nil {
		return nil, fmt.Errorf("create dataset %q: %w", name, err)
	}
	d := obj.dataset()
	return &d, nil
}

func (c *Client) LinkImages(ctx context.Context, datasetID int64, imageIDs []int64) error {
	for _, id := range imageIDs {
		body := jsonRef{Type: string(omero.ImageType), ID: id}
		if err := c.do(ctx, http.MethodPost, fmt.Sprintf("m/datasets/%d/images/", datasetID), nil, body, nil); err != nil {
			return fmt.Errorf("link image %d to dataset %d: %w", id, datasetID, err)
		}
		c.cache.dropParent("image", id)
	}
	return nil
}

func (c *Client) LinkDatasetToProject(ctx context.Context, datasetID, projectID int64) error {
	body := jsonRef{Type: string(omero.DatasetType), ID: datasetID}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("m/projects/%d/datasets/", projectID), nil, body, nil); err != nil {
		return fmt.Errorf("link dataset %d to project %d: %w", datasetID, projectID, err)
	}
	c.cache.dropParent("dataset", datasetID)
	return nil
}

func (c *Client) UnlinkImage(ctx context.Context, imageID, datasetID int64) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("m/datasets/%d/images/%d/", datasetID, imageID), nil, nil, nil); err != nil {
		return fmt.Errorf("unlink image %d from dataset %d: %w", imageID, datasetID, err)
	}
	c.cache.dropParent("image", imageID)
	return nil
}
