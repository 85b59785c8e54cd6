package roiexport

import (
	"context"
	"strings"

	"github.com/janelia-flyem/omerotools/gateway"
	"github.com/janelia-flyem/omerotools/omero"
)

// ValidChannels converts requested 1-based channel numbers into 0-based
// indices, dropping those outside 1..sizeC with a warning.
func ValidChannels(requested []int, sizeC int) []int {
	indices := make([]int, 0, len(requested))
	for _, ch := range requested {
		if ch < 1 || ch > sizeC {
			omero.Warningf("Channel index: %d out of range 1 - %d\n", ch, sizeC)
			continue
		}
		indices = append(indices, ch-1)
	}
	return indices
}

// FilterChannel picks the 0-based channel whose shapes are exported: the first
// channel whose label and the dataset name contain one another, else 0.  The
// same rule is used for the per-image summary.
func FilterChannel(labels []string, datasetName string) int {
	if datasetName == "" {
		return 0
	}
	for i, label := range labels {
		if label == "" {
			continue
		}
		if strings.Contains(datasetName, label) || strings.Contains(label, datasetName) {
			return i
		}
	}
	return 0
}

// planes returns the plane indices to measure for a shape coordinate.  An unset
// coordinate yields every plane when allPlanes is set and a single unknown
// plane otherwise.
func planes(idx omero.Index, size int, allPlanes bool) []omero.Index {
	if idx.IsSet() || !allPlanes {
		return []omero.Index{idx}
	}
	all := make([]omero.Index, size)
	for i := range all {
		all[i] = omero.NewIndex(i)
	}
	return all
}

// Options control the extraction.
type Options struct {
	// Channels are 1-based channel numbers to measure intensity on.
	Channels []int

	// AllPlanes expands shapes without Z or T across every plane.
	AllPlanes bool
}

// Extract measures every shape on the image's filter channel and returns one
// row per (shape, z, t, requested channel).  position is the image's index in
// the resolved list.
func Extract(ctx context.Context, rois gateway.ROIService, img *omero.Image, position int, opts Options) ([]ExportRow, error) {
	omero.Infof("Image ID %d...\n", img.ID)
	chIndexes := ValidChannels(opts.Channels, img.SizeC)

	labels := img.ChannelLabels()
	filterCh := FilterChannel(labels, img.DatasetName())
	chNames := make([]string, img.SizeC)
	for i := range chNames {
		if i < len(labels) {
			chNames[i] = omero.SanitizeField(labels[i])
		}
	}
	imageName := omero.SanitizeField(img.Name)

	imageROIs, err := rois.ListROIs(ctx, img.ID)
	if err != nil {
		return nil, err
	}

	omero.Debugf("Filter_Shapes_By_Channel: %d\n", filterCh)
	var rows []ExportRow
	for _, roi := range imageROIs {
		for _, shape := range roi.Shapes {
			if c, set := shape.C.Int(); !set || c != filterCh {
				omero.Debugf("shape %d on channel %s != %d\n", shape.ID, shape.C, filterCh+1)
				continue
			}
			label := ""
			if shape.Text != "" {
				label = omero.QuoteField(shape.Text)
			}
			base := ExportRow{
				Position:  position,
				ImageID:   img.ID,
				ImageName: imageName,
				ROIID:     roi.ID,
				ShapeID:   shape.ID,
				ShapeType: omero.ShapeType(strings.ToLower(string(shape.Type))),
				Label:     label,
				C:         shape.C,
			}
			for _, z := range planes(shape.Z, img.SizeZ, opts.AllPlanes) {
				for _, t := range planes(shape.T, img.SizeT, opts.AllPlanes) {
					var stats omero.ShapeStats
					known := z.IsSet() && t.IsSet() && len(chIndexes) > 0
					if known {
						zi, _ := z.Int()
						ti, _ := t.Int()
						if stats, err = rois.ShapeStats(ctx, shape.ID, zi, ti, chIndexes); err != nil {
							return nil, err
						}
					}
					for c, chIndex := range chIndexes {
						row := base
						row.Z, row.T = z, t
						row.Channel = chNames[chIndex]
						row.ChannelIndex = chIndex
						if known {
							// statistics come back in request order
							var cs omero.ChannelStats
							found := len(stats.Channels) == len(chIndexes)
							if found {
								cs = stats.Channels[c]
							} else {
								cs, found = stats.ForChannel(chIndex)
							}
							if found {
								row.HasStats = true
								row.Points = cs.Points
								row.Min, row.Max, row.Sum = cs.Min, cs.Max, cs.Sum
								row.Mean, row.StdDev = cs.Mean, cs.StdDev
							}
						}
						rows = append(rows, row)
					}
				}
			}
		}
	}
	return rows, nil
}
