package roiexport

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/omerotools/gateway"
	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
	"github.com/janelia-flyem/omerotools/tables"
)

// TableName is the name of the summary table.
const TableName = "batch_roi_export"

// csvTargets returns the objects the export CSV is linked to: the selected
// projects or datasets, or every resolved image for an image selection.
func csvTargets(dataType omero.DataType, ids []int64, images []*omero.Image) []omero.ObjectRef {
	var refs []omero.ObjectRef
	switch dataType {
	case omero.ProjectType, omero.DatasetType:
		for _, id := range ids {
			refs = append(refs, omero.ObjectRef{Type: dataType, ID: id})
		}
	default:
		seen := make(map[int64]bool)
		for _, img := range images {
			if !seen[img.ID] {
				seen[img.ID] = true
				refs = append(refs, scripts.ImageRef(img.ID))
			}
		}
	}
	return refs
}

// exportCSV writes the rows as CSV, keeps a local copy through the exporter and
// uploads it as a file annotation linked to targets.
func exportCSV(ctx context.Context, a gateway.Annotator, exporter scripts.Exporter, name string, schema Schema, records []Record, targets []omero.ObjectRef) (*omero.FileAnnotation, error) {
	data := FormatCSV(schema, records)
	if exporter != nil {
		location, err := exporter.Export(ctx, name, data)
		if err != nil {
			omero.Warningf("Could not save local copy of %s: %v\n", name, err)
		} else {
			omero.Infof("Saved %s (%s) to %s\n", name, omero.ByteSize(len(data)), location)
		}
	}
	fa, err := a.UploadFile(ctx, name, csvMimeType, "", data, targets...)
	if err != nil {
		return nil, err
	}
	return fa, nil
}

// SaveKeyValues attaches each non-empty summary to its image as a map
// annotation in the export namespace.  It returns one result per image.
func SaveKeyValues(ctx context.Context, a gateway.Annotator, images []*omero.Image, summaries []SummaryRow) []omero.Result {
	var results []omero.Result
	for i, img := range images {
		unit := fmt.Sprintf("key-values image %d", img.ID)
		if summaries[i].Empty() {
			results = append(results, omero.Result{Unit: unit, Outcome: omero.Skipped, Message: "no shapes"})
			continue
		}
		id, err := a.CreateMapAnnotation(ctx, omero.NSROIExport, summaries[i].KeyValues(), scripts.ImageRef(img.ID))
		if err != nil {
			results = append(results, omero.Result{Unit: unit, Outcome: omero.Failed, Err: err})
			continue
		}
		results = append(results, omero.Result{Unit: unit, Outcome: omero.Success, Message: fmt.Sprintf("map annotation %d", id)})
	}
	return results
}

// SummaryTable builds the per-image table: an Image column followed by one
// double column per summary field, one row per resolved image.
func SummaryTable(images []*omero.Image, summaries []SummaryRow) *tables.Table {
	ids := make([]int64, len(images))
	for i, img := range images {
		ids[i] = img.ID
	}
	tbl := tables.New(TableName, "Image", tables.ImageColumn, ids)
	for col, name := range SummaryColumns {
		values := make([]float64, len(summaries))
		for i, s := range summaries {
			values[i] = s.Values()[col]
		}
		tbl.AddDoubles(name, values)
	}
	return tbl
}

// SaveTable uploads the summary table and links it, with a summary CSV, to the
// first project found among the images.  Without a project the table is stored
// unlinked and no summary CSV is written.
func SaveTable(ctx context.Context, a gateway.Annotator, exporter scripts.Exporter, images []*omero.Image, summaries []SummaryRow) []omero.Result {
	project := FirstProject(images)
	var parents []omero.ObjectRef
	if project != nil {
		parents = append(parents, omero.ObjectRef{Type: omero.ProjectType, ID: project.ID})
	}

	var results []omero.Result
	fa, err := SummaryTable(images, summaries).Upload(ctx, a, parents...)
	if err != nil {
		return append(results, omero.Result{Unit: "table", Outcome: omero.Failed, Err: err})
	}
	if project == nil {
		omero.Infof("No Project found to link table\n")
		return append(results, omero.Result{Unit: "table", Outcome: omero.Success, Message: fmt.Sprintf("file annotation %d, no project to link", fa.ID)})
	}
	results = append(results, omero.Result{Unit: "table", Outcome: omero.Success, Message: fmt.Sprintf("file annotation %d on project %d", fa.ID, project.ID)})

	records := make([]Record, len(images))
	for i, img := range images {
		records[i] = imageSummary{image: img, summary: summaries[i]}
	}
	csvAnn, err := exportCSV(ctx, a, exporter, SummaryFileName, ImageSummaryColumns, records, parents)
	if err != nil {
		return append(results, omero.Result{Unit: "summary csv", Outcome: omero.Failed, Err: err})
	}
	return append(results, omero.Result{Unit: "summary csv", Outcome: omero.Success, Message: fmt.Sprintf("file annotation %d on project %d", csvAnn.ID, project.ID)})
}
