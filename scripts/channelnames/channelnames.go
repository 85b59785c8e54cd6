/*
	Package channelnames renames image channels.  The channel-names script applies
	fixed names to the images of a dataset of each training account, and the
	channel-names-from-maps script reads names from the bulk key-value pairs of
	each image in a project.
*/
package channelnames

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/janelia-flyem/omerotools/gateway"
	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
)

const (
	Name    = "channel-names"
	URL     = "github.com/janelia-flyem/omerotools/scripts/channelnames"
	Version = "0.1"

	MapsName = "channel-names-from-maps"
	MapsURL  = "github.com/janelia-flyem/omerotools/scripts/channelnames/maps"

	// MapKey holds channel names in bulk annotations, e.g. "1:DAPI; 2:GFP".
	MapKey = "Channels"

	DefaultNames = "1:H2B,2:nuclear lamina"
)

var DefaultUsers = omero.Range{First: 1, Last: 40}

const helpMessage = `
Renames the channels of all images in a dataset of each training account.

    $ omerotools channel-names target=<dataset name> [names="1:H2B,2:nuclear lamina"] [users=1-40]

    names    Comma separated <channel>:<name> pairs; channels are 1-based
`

const mapsHelpMessage = `
Renames channels of every image in a project from its bulk key-value pairs.

    $ omerotools channel-names-from-maps IDs=<project id>

    The value of key "Channels" in the bulk annotation namespace, e.g.
    "1:DAPI; 2:GFP", gives the channel names of each image.
`

const paramSchema = `{
	"type": "object",
	"properties": {
		"target": {"type": "string", "minLength": 1},
		"names": {"type": "string", "minLength": 1},
		"users": {"type": "string", "pattern": "^[0-9]+(-[0-9]+)?$"},
		"prefix": {"type": "string"}
	},
	"required": ["target"],
	"additionalProperties": false
}`

const mapsParamSchema = `{
	"type": "object",
	"properties": {
		"Data_Type": {"type": "string", "enum": ["Project"]},
		"IDs": {"type": "array", "items": {"type": "integer", "minimum": 1}, "minItems": 1}
	},
	"required": ["IDs"],
	"additionalProperties": false
}`

func init() {
	scripts.Register(NewScript())
	scripts.Register(NewMapsScript())
}

// ParseChannelNames parses "<channel>:<name>" pairs separated by sep into
// names keyed by 0-based channel index.  A pair without a valid channel
// number is taken as the channel at its position.
func ParseChannelNames(s, sep string) (map[int]string, error) {
	names := make(map[int]string)
	for i, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		index, name := i, part
		if pos := strings.Index(part, ":"); pos >= 0 {
			name = strings.TrimSpace(part[pos+1:])
			if n, err := strconv.Atoi(strings.TrimSpace(part[:pos])); err == nil {
				if n < 1 {
					return nil, fmt.Errorf("bad channel %d in %q: %w", n, part, omero.ErrInvalidArgument)
				}
				index = n - 1
			}
		}
		names[index] = name
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no channel names in %q: %w", s, omero.ErrInvalidArgument)
	}
	return names, nil
}

// fitNames drops names of channels the image does not have.
func fitNames(names map[int]string, sizeC int) map[int]string {
	fitted := make(map[int]string, len(names))
	for i, name := range names {
		if i < sizeC {
			fitted[i] = name
		}
	}
	return fitted
}

type Script struct {
	scripts.Base
}

func NewScript() *Script {
	return &Script{scripts.NewBase(scripts.Info{
		Name:        Name,
		URL:         URL,
		Version:     Version,
		Description: "Rename channels of images in each user's dataset",
		ParamSchema: paramSchema,
	})}
}

func (s *Script) Help() string {
	return s.FullHelp(helpMessage)
}

func (s *Script) Run(ctx context.Context, env *scripts.Env) (*omero.Report, error) {
	users, err := env.Users(DefaultUsers)
	if err != nil {
		return nil, err
	}
	names, err := ParseChannelNames(env.Params.String("names", DefaultNames), ",")
	if err != nil {
		return nil, err
	}
	target := env.Params.String(scripts.KeyTarget, "")

	report := omero.NewReport(Name)
	err = scripts.ForEachUser(ctx, env, users, report, func(ctx context.Context, conn gateway.Conn, user omero.Experimenter) (string, error) {
		ds, images, err := scripts.TargetImages(ctx, conn, target, user.ID)
		if err != nil {
			return "", err
		}
		for _, img := range images {
			if err := conn.SetChannelLabels(ctx, img.ID, fitNames(names, img.SizeC)); err != nil {
				return "", fmt.Errorf("image %d: %w", img.ID, err)
			}
		}
		return fmt.Sprintf("renamed channels of %d images in dataset %d", len(images), ds.ID), nil
	})
	report.Finish("Renamed channels in datasets %q of users %s", target, users)
	return report, err
}

// MapsScript renames channels from bulk annotations.
type MapsScript struct {
	scripts.Base
}

func NewMapsScript() *MapsScript {
	return &MapsScript{scripts.NewBase(scripts.Info{
		Name:        MapsName,
		URL:         MapsURL,
		Version:     Version,
		Description: "Rename channels from the key-value pairs of each image in a project",
		ParamSchema: mapsParamSchema,
	})}
}

func (s *MapsScript) Help() string {
	return s.FullHelp(mapsHelpMessage)
}

func (s *MapsScript) Run(ctx context.Context, env *scripts.Env) (*omero.Report, error) {
	conn, err := env.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	report := omero.NewReport(MapsName)
	var renamed int
	for _, projectID := range env.Params.IDs("IDs") {
		datasets, err := conn.ListDatasets(ctx, projectID)
		if err != nil {
			report.Fail(omero.ObjectRef{Type: omero.ProjectType, ID: projectID}.String(), err)
			continue
		}
		for _, ds := range datasets {
			omero.Infof("Dataset %d %s\n", ds.ID, ds.Name)
			images, err := conn.ListImages(ctx, ds.ID)
			if err != nil {
				report.Fail(omero.ObjectRef{Type: omero.DatasetType, ID: ds.ID}.String(), err)
				continue
			}
			for i := range images {
				if RenameFromMap(ctx, conn, &images[i], report) {
					renamed++
				}
			}
		}
	}
	report.Finish("Renamed channels of %d images", renamed)
	return report, nil
}

// RenameFromMap renames the channels of an image from the "Channels" value of
// its first bulk annotation and records the outcome in report.
func RenameFromMap(ctx context.Context, conn gateway.Conn, img *omero.Image, report *omero.Report) bool {
	unit := scripts.ImageRef(img.ID).String()
	anns, err := conn.MapAnnotations(ctx, scripts.ImageRef(img.ID), omero.NSBulkAnnotations)
	if err != nil {
		report.Fail(unit, err)
		return false
	}
	if len(anns) == 0 {
		report.Skip(unit, "no annotation found")
		return false
	}
	value, found := anns[0].Get(MapKey)
	if !found {
		report.Skip(unit, "no key-value found for key %s", MapKey)
		return false
	}
	names, err := ParseChannelNames(value, ";")
	if err != nil {
		report.Fail(unit, err)
		return false
	}
	if err := conn.SetChannelLabels(ctx, img.ID, fitNames(names, img.SizeC)); err != nil {
		report.Fail(unit, err)
		return false
	}
	report.Succeed(unit, "channels %s", value)
	return true
}
