package roiexport

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/janelia-flyem/omerotools/omero"
)

// Summarize computes the summary of one image from its rows.  Shape count is
// the number of rows; the intensity and point statistics use only rows that
// carry statistics and stay zero if none do.
func Summarize(img *omero.Image, rows []ExportRow) SummaryRow {
	if len(rows) == 0 {
		return SummaryRow{}
	}
	s := SummaryRow{
		FilterChannel: FilterChannel(img.ChannelLabels(), img.DatasetName()) + 1,
		ShapeCount:    len(rows),
	}
	var mins, maxs, means, points []float64
	for _, r := range rows {
		if !r.HasStats {
			continue
		}
		mins = append(mins, r.Min)
		maxs = append(maxs, r.Max)
		means = append(means, r.Mean)
		points = append(points, float64(r.Points))
	}
	if len(mins) == 0 {
		return s
	}
	s.MinIntensity = floats.Min(mins)
	s.MaxIntensity = floats.Max(maxs)
	s.MeanIntensity = stat.Mean(means, nil)
	s.MinPoints = floats.Min(points)
	s.MaxPoints = floats.Max(points)
	s.MeanPoints = stat.Mean(points, nil)
	return s
}

// Aggregate returns one summary per image, index aligned with images.  Rows
// are matched to images by image id.  When an image is listed twice, the row
// Position decides which entry a row belongs to.  Images without rows get a
// zero summary.
func Aggregate(images []*omero.Image, rows []ExportRow) []SummaryRow {
	firstPos := make(map[int64]int, len(images))
	for i := len(images) - 1; i >= 0; i-- {
		firstPos[images[i].ID] = i
	}
	byPosition := make([][]ExportRow, len(images))
	for _, r := range rows {
		pos := r.Position
		if pos < 0 || pos >= len(images) || images[pos].ID != r.ImageID {
			var found bool
			if pos, found = firstPos[r.ImageID]; !found {
				continue
			}
		}
		byPosition[pos] = append(byPosition[pos], r)
	}
	summaries := make([]SummaryRow, len(images))
	for i, img := range images {
		summaries[i] = Summarize(img, byPosition[i])
	}
	return summaries
}
