/*
	Package minmax records the global intensity range of every channel of a
	plate.  The result is a table with one row per well, using the first image
	of the well, attached to the plate.
*/
package minmax

import (
	"context"
	"fmt"
	"math"

	"github.com/janelia-flyem/omerotools/gateway"
	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
	"github.com/janelia-flyem/omerotools/tables"
)

const (
	Name    = "channel-minmax"
	URL     = "github.com/janelia-flyem/omerotools/scripts/minmax"
	Version = "0.1"

	TableName = "Channels_Min_Max_Intensity"
)

const helpMessage = `
Builds a table of the per-channel global minimum and maximum intensities of a
plate and attaches it to the plate.

    $ omerotools channel-minmax plate=<id>

    Columns are Well, Ch0Min, Ch0Max, Ch1Min, ...  Wells without images are left out.
`

const paramSchema = `{
	"type": "object",
	"properties": {
		"plate": {"type": "integer", "minimum": 1}
	},
	"required": ["plate"],
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
		Description: "Table of channel intensity ranges for a plate",
		ParamSchema: paramSchema,
	})}
}

func (s *Script) Help() string {
	return s.FullHelp(helpMessage)
}

type wellRow struct {
	wellID int64
	minmax []int64
}

// Build reads the channel statistics of the first image of every well.
func Build(ctx context.Context, conn gateway.Browser, plateID int64, report *omero.Report) (*tables.Table, error) {
	wells, err := conn.ListWells(ctx, plateID)
	if err != nil {
		return nil, err
	}
	var rows []wellRow
	numC := 0
	for _, well := range wells {
		if len(well.ImageIDs) == 0 {
			continue
		}
		img, err := conn.GetImage(ctx, well.ImageIDs[0])
		if err != nil {
			report.Fail("well "+well.Label(), err)
			continue
		}
		row := wellRow{wellID: well.ID}
		for _, c := range img.Channels {
			row.minmax = append(row.minmax, int64(math.Round(c.GlobalMin)), int64(math.Round(c.GlobalMax)))
		}
		if len(img.Channels) > numC {
			numC = len(img.Channels)
		}
		rows = append(rows, row)
		report.Succeed("well "+well.Label(), "image %d with %d channels", img.ID, len(img.Channels))
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("plate %d has no well images: %w", plateID, omero.ErrNotFound)
	}

	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.wellID
	}
	table := tables.New(TableName, "Well", tables.WellColumn, ids)
	for col := 0; col < 2*numC; col++ {
		values := make([]int64, len(rows))
		for i, row := range rows {
			if col < len(row.minmax) {
				values[i] = row.minmax[col]
			}
		}
		name := fmt.Sprintf("Ch%dMin", col/2)
		if col%2 == 1 {
			name = fmt.Sprintf("Ch%dMax", col/2)
		}
		table.AddLongs(name, values)
	}
	return table, nil
}

func (s *Script) Run(ctx context.Context, env *scripts.Env) (*omero.Report, error) {
	plateID := int64(env.Params.Int("plate", 0))
	conn, err := env.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	report := omero.NewReport(Name)
	plate, err := conn.GetPlate(ctx, plateID)
	if err != nil {
		return report, err
	}
	table, err := Build(ctx, conn, plate.ID, report)
	if err != nil {
		return report, err
	}
	fa, err := table.Upload(ctx, conn, omero.ObjectRef{Type: omero.PlateType, ID: plate.ID})
	if err != nil {
		return report, err
	}
	report.Finish("Attached table %d with %d wells to plate %s", fa.ID, table.NumRows(), plate.Name)
	return report, nil
}
