/*
	Package keyvalues attaches key-value pairs to named images in a dataset of each
	training account.  The pairs use the client namespace so they stay editable in
	the web and desktop clients.
*/
package keyvalues

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/omerotools/gateway"
	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
)

const (
	Name    = "key-values"
	URL     = "github.com/janelia-flyem/omerotools/scripts/keyvalues"
	Version = "0.1"
)

var DefaultUsers = omero.Range{First: 1, Last: 50}

const helpMessage = `
Adds key-value pairs to images of a dataset for each training account.

    $ omerotools key-values target=<dataset name> [file=<mapping.yaml>] [users=1-50]

    The mapping file maps image names to lists of key-value pairs:

        A10.pattern1.tif:
          - [mitomycin-A, 0mM]
          - [PBS, 10mM]

    Without a file the pairs of the FRAP training dataset are used.  Each image
    gets its own map annotation.
`

const paramSchema = `{
	"type": "object",
	"properties": {
		"target": {"type": "string", "minLength": 1},
		"file": {"type": "string"},
		"users": {"type": "string", "pattern": "^[0-9]+(-[0-9]+)?$"},
		"prefix": {"type": "string"}
	},
	"required": ["target"],
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
		Description: "Add key-value pairs to images in each user's dataset",
		ParamSchema: paramSchema,
	})}
}

func (s *Script) Help() string {
	return s.FullHelp(helpMessage)
}

// Mapping holds the key-value pairs of each image name.
type Mapping map[string][]omero.KeyValue

// ReadMapping reads a mapping of image name to [key, value] pairs.
func ReadMapping(filename string) (Mapping, error) {
	var raw map[string][][]string
	if err := scripts.ReadDataFile(filename, &raw); err != nil {
		return nil, err
	}
	m := make(Mapping, len(raw))
	for name, pairs := range raw {
		kvs := make([]omero.KeyValue, len(pairs))
		for i, pair := range pairs {
			if len(pair) != 2 {
				return nil, fmt.Errorf("image %q pair %d has %d elements, expected key and value: %w", name, i+1, len(pair), omero.ErrInvalidArgument)
			}
			kvs[i] = omero.KeyValue{Key: pair[0], Value: pair[1]}
		}
		m[name] = kvs
	}
	return m, nil
}

func (s *Script) Run(ctx context.Context, env *scripts.Env) (*omero.Report, error) {
	users, err := env.Users(DefaultUsers)
	if err != nil {
		return nil, err
	}
	mapping := DefaultMapping()
	if filename := env.Params.String("file", ""); filename != "" {
		if mapping, err = ReadMapping(filename); err != nil {
			return nil, err
		}
	}
	target := env.Params.String(scripts.KeyTarget, "")

	report := omero.NewReport(Name)
	err = scripts.ForEachUser(ctx, env, users, report, func(ctx context.Context, conn gateway.Conn, user omero.Experimenter) (string, error) {
		return Annotate(ctx, conn, target, user.ID, mapping)
	})
	report.Finish("Added key-value pairs to datasets %q of users %s", target, users)
	return report, err
}

// Annotate links a new client map annotation to each image of the owner's
// dataset whose name is in the mapping.
func Annotate(ctx context.Context, conn gateway.Conn, target string, ownerID int64, mapping Mapping) (string, error) {
	ds, images, err := scripts.TargetImages(ctx, conn, target, ownerID)
	if err != nil {
		return "", err
	}
	var annotated int
	for _, img := range images {
		kvs, found := mapping[img.Name]
		if !found {
			continue
		}
		// a client map annotation is linked to a single object
		if _, err := conn.CreateMapAnnotation(ctx, omero.NSClientMapAnnotation, kvs, scripts.ImageRef(img.ID)); err != nil {
			return "", fmt.Errorf("image %d: %w", img.ID, err)
		}
		omero.Debugf("linked %d pairs to image %s\n", len(kvs), img.Name)
		annotated++
	}
	return fmt.Sprintf("annotated %d images in dataset %d", annotated, ds.ID), nil
}

func pairs(kv ...string) []omero.KeyValue {
	kvs := make([]omero.KeyValue, len(kv)/2)
	for i := range kvs {
		kvs[i] = omero.KeyValue{Key: kv[2*i], Value: kv[2*i+1]}
	}
	return kvs
}

// DefaultMapping returns the experimental conditions of the training images.
func DefaultMapping() Mapping {
	set1 := pairs("mitomycin-A", "0mM", "PBS", "10mM", "incubation", "10min", "temperature", "37", "Organism", "Homo sapiens")
	set2 := pairs("mitomycin-A", "20mM", "PBS", "10mM", "incubation", "10min", "temperature", "37", "Organism", "Homo sapiens")
	set3 := pairs("mitomycin-A", "10microM", "PBS", "10mM", "incubation", "5min", "temperature", "37", "Organism", "Homo sapiens")
	set4 := pairs("mitomycin-A", "0mM", "PBS", "10mM", "incubation", "5min", "temperature", "68", "Organism", "Homo sapiens")
	return Mapping{
		"A10.pattern1.tif": set1,
		"A10.pattern2.tif": set2,
		"A10.pattern5.tif": set2,
		"A1.pattern1.tif":  set4,
		"A1.pattern2.tif":  set1,
		"A5.pattern1.tif":  set3,
		"A5.pattern2.tif":  set2,
		"A5.pattern3.tif":  set2,
		"A5.pattern4.tif":  set2,
		"A6.pattern1.tif":  set3,
		"A6.pattern2.tif":  set2,
		"A6.pattern3.tif":  set2,
		"B12.pattern1.tif": set1,
		"B12.pattern2.tif": set1,
		"B12.pattern3.tif": set1,
		"B12.pattern4.tif": set3,
		"B12.pattern5.tif": set3,
		"C4.pattern1.tif":  set2,
		"C4.pattern2.tif":  set2,
		"C4.pattern3.tif":  set2,
		"C4.pattern4.tif":  set2,
		"C4.pattern5.tif":  set2,
		"C4.pattern6.tif":  set2,
		"C4.pattern7.tif":  set3,
		"C4.pattern8.tif":  set3,
		"C4.pattern9.tif":  set1,
		"C4.pattern.tif":   set1,
		"E4.pattern5.tif":  set3,
		"E4.pattern6.tif":  set1,
		"E4.pattern7.tif":  set3,
		"E4.pattern8.tif":  set3,
		"E4.pattern9.tif":  set1,
	}
}
