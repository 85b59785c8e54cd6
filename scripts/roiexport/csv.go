package roiexport

import (
	"strings"
)

const (
	// DefaultFileName is the name of the per-shape CSV when none is given.
	DefaultFileName = "roi_intensities_filtered_by_channel.csv"

	// SummaryFileName is the per-image summary CSV attached to the project.
	SummaryFileName = "batch_roi_export.csv"

	csvMimeType = "text/csv"
)

// CSVFileName applies the default name and makes sure the name ends in ".csv".
func CSVFileName(name string) string {
	if name == "" {
		name = DefaultFileName
	}
	if !strings.HasSuffix(name, ".csv") {
		name += ".csv"
	}
	return name
}

// FormatCSV writes a header line from the schema and one line per record.
// Values are joined with commas as rendered by the records; only labels are
// quoted, so fields must not contain commas.  Lines are separated by "\n"
// with no trailing newline.
func FormatCSV(schema Schema, records []Record) []byte {
	lines := make([]string, 0, len(records)+1)
	lines = append(lines, strings.Join(schema, ","))
	cells := make([]string, len(schema))
	for _, r := range records {
		for i, col := range schema {
			cells[i] = r.Field(col)
		}
		lines = append(lines, strings.Join(cells, ","))
	}
	return []byte(strings.Join(lines, "\n"))
}

func exportRecords(rows []ExportRow) []Record {
	records := make([]Record, len(rows))
	for i, r := range rows {
		records[i] = r
	}
	return records
}
