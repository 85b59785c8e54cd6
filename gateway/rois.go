package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/janelia-flyem/omerotools/omero"
)

func (c *Client) ListROIs(ctx context.Context, imageID int64) ([]omero.ROI, error) {
	q := url.Values{}
	q.Set("image", strconv.FormatInt(imageID, 10))
	var jrs []jsonROI
	if err := c.do(ctx, http.MethodGet, "m/rois/", q, nil, &jrs); err != nil {
		return nil, fmt.Errorf("rois of image %d: %w", imageID, err)
	}
	rois := make([]omero.ROI, len(jrs))
	for i, jr := range jrs {
		roi := omero.ROI{ID: jr.ID, ImageID: imageID, Name: jr.Name}
		for _, js := range jr.Shapes {
			roi.Shapes = append(roi.Shapes, js.shape())
		}
		rois[i] = roi
	}
	return rois, nil
}

func (c *Client) ShapeStats(ctx context.Context, shapeID int64, z, t int, channels []int) (omero.ShapeStats, error) {
	stats := omero.ShapeStats{ShapeID: shapeID, Z: z, T: t}
	q := url.Values{}
	q.Set("z", strconv.Itoa(z))
	q.Set("t", strconv.Itoa(t))
	for _, ch := range channels {
		q.Add("c", strconv.Itoa(ch))
	}
	var jcs []jsonChannelStats
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("m/shapes/%d/stats/", shapeID), q, nil, &jcs); err != nil {
		return stats, fmt.Errorf("stats of shape %d at z=%d t=%d: %w", shapeID, z, t, err)
	}
	for _, jc := range jcs {
		stats.Channels = append(stats.Channels, omero.ChannelStats{
			Channel: jc.Channel,
			Points:  jc.Points,
			Min:     jc.Min,
			Max:     jc.Max,
			Sum:     jc.Sum,
			Mean:    jc.Mean,
			StdDev:  jc.StdDev,
		})
	}
	return stats, nil
}

func (c *Client) DeleteROIs(ctx context.Context, roiIDs []int64) error {
	if len(roiIDs) == 0 {
		return nil
	}
	q := url.Values{}
	q.Set("ids", idList(roiIDs))
	if err := c.do(ctx, http.MethodDelete, "m/rois/", q, nil, nil); err != nil {
		return fmt.Errorf("delete %d rois: %w", len(roiIDs), err)
	}
	return nil
}
