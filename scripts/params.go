package scripts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/janelia-flyem/omerotools/omero"
)

// KeyParamsFile is the command setting naming a YAML or JSON parameter file.
const KeyParamsFile = "params"

// Params are script parameters with JSON-compatible values: string, bool,
// float64, []interface{} and map[string]interface{}.
type Params map[string]interface{}

type schemaProperty struct {
	Type  string `json:"type"`
	Items *struct {
		Type string `json:"type"`
	} `json:"items"`
}

type schemaDoc struct {
	Properties map[string]schemaProperty `json:"properties"`
}

// FromCommand builds parameters from the "key=value" settings of a command,
// converting each value to the type its schema property declares.  Settings
// from a params=<file> are read first and overridden by the command line.
func FromCommand(cmd omero.Command, info Info) (Params, error) {
	p := Params{}
	if filename, found := cmd.Parameter(KeyParamsFile); found {
		fp, err := ReadParamsFile(filename)
		if err != nil {
			return nil, err
		}
		p = fp
	}
	var doc schemaDoc
	if info.ParamSchema != "" {
		if err := json.Unmarshal([]byte(info.ParamSchema), &doc); err != nil {
			return nil, fmt.Errorf("bad parameter schema for %s: %v", info.Name, err)
		}
	}
	for key, value := range cmd.Settings() {
		if key == KeyParamsFile {
			continue
		}
		prop, found := doc.Properties[key]
		if !found {
			p[key] = value
			continue
		}
		v, err := coerce(value, prop)
		if err != nil {
			return nil, fmt.Errorf("setting %s: %v: %w", key, err, omero.ErrInvalidArgument)
		}
		p[key] = v
	}
	return p, nil
}

func coerce(value string, prop schemaProperty) (interface{}, error) {
	switch prop.Type {
	case "boolean":
		return strconv.ParseBool(value)
	case "integer", "number":
		return strconv.ParseFloat(value, 64)
	case "array":
		var items []interface{}
		if strings.TrimSpace(value) == "" {
			return items, nil
		}
		for _, s := range strings.Split(value, ",") {
			s = strings.TrimSpace(s)
			if prop.Items != nil && (prop.Items.Type == "integer" || prop.Items.Type == "number") {
				f, err := strconv.ParseFloat(s, 64)
				if err != nil {
					return nil, err
				}
				items = append(items, f)
			} else {
				items = append(items, s)
			}
		}
		return items, nil
	default:
		return value, nil
	}
}

// ReadParamsFile reads parameters from a .json, .yaml or .yml file.
func ReadParamsFile(filename string) (Params, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read parameter file: %v", err)
	}
	var raw map[string]interface{}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		err = json.Unmarshal(data, &raw)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("parameter file %q must be .json, .yaml or .yml", filename)
	}
	if err != nil {
		return nil, fmt.Errorf("could not parse parameter file %q: %v", filename, err)
	}
	p := Params{}
	for k, v := range raw {
		p[k] = normalize(v)
	}
	return p, nil
}

// normalize converts YAML decoded values to the types encoding/json produces.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	case float32:
		return float64(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	default:
		return v
	}
}

// Validate checks the parameters against the script schema.
func (p Params) Validate(info Info) error {
	if info.ParamSchema == "" {
		return nil
	}
	sch, err := jsonschema.CompileString(info.Name+".json", info.ParamSchema)
	if err != nil {
		return fmt.Errorf("could not compile parameter schema of %s: %v", info.Name, err)
	}
	if err := sch.Validate(map[string]interface{}(p)); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("bad parameters for %s: %s: %w", info.Name, ve.Error(), omero.ErrInvalidArgument)
		}
		return fmt.Errorf("bad parameters for %s: %v: %w", info.Name, err, omero.ErrInvalidArgument)
	}
	return nil
}

func (p Params) String(key, def string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case nil:
		return def
	default:
		return fmt.Sprint(v)
	}
}

func (p Params) Bool(key string, def bool) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func (p Params) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func (p Params) Int(key string, def int) int {
	return int(p.Float(key, float64(def)))
}

func (p Params) Ints(key string, def []int) []int {
	switch v := p[key].(type) {
	case []interface{}:
		ints := make([]int, 0, len(v))
		for _, e := range v {
			switch n := e.(type) {
			case float64:
				ints = append(ints, int(n))
			case int:
				ints = append(ints, n)
			case string:
				if i, err := strconv.Atoi(n); err == nil {
					ints = append(ints, i)
				}
			}
		}
		return ints
	case string:
		if ints, err := omero.ParseInts(v); err == nil {
			return ints
		}
	case float64:
		return []int{int(v)}
	}
	return def
}

func (p Params) IDs(key string) []int64 {
	ints := p.Ints(key, nil)
	ids := make([]int64, len(ints))
	for i, n := range ints {
		ids[i] = int64(n)
	}
	return ids
}

func (p Params) Strings(key string, def []string) []string {
	switch v := p[key].(type) {
	case []interface{}:
		strs := make([]string, len(v))
		for i, e := range v {
			strs[i] = fmt.Sprint(e)
		}
		return strs
	case string:
		var strs []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				strs = append(strs, s)
			}
		}
		return strs
	}
	return def
}

// Range reads a "first-last" setting.
func (p Params) Range(key string, def omero.Range) (omero.Range, error) {
	s := p.String(key, "")
	if s == "" {
		return def, nil
	}
	return omero.ParseRange(s)
}

// ReadDataFile decodes a .json, .yaml or .yml file into v.  JSON is decoded
// with the YAML decoder, which accepts it.
func ReadDataFile(filename string, v interface{}) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json", ".yaml", ".yml":
	default:
		return fmt.Errorf("data file %q must be .json, .yaml or .yml: %w", filename, omero.ErrInvalidArgument)
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("could not read data file: %v", err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("could not parse data file %q: %v", filename, err)
	}
	return nil
}
