package scripts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/janelia-flyem/omerotools/gateway"
	"github.com/janelia-flyem/omerotools/gateway/gatewaytest"
	"github.com/janelia-flyem/omerotools/omero"
)

const testSchema = `{
	"type": "object",
	"properties": {
		"IDs": {"type": "array", "items": {"type": "integer", "minimum": 1}, "minItems": 1},
		"Export_CSV": {"type": "boolean"},
		"size": {"type": "number", "exclusiveMinimum": 0},
		"File_Name": {"type": "string"}
	},
	"required": ["IDs"],
	"additionalProperties": false
}`

type testScript struct {
	Base
	ran bool
}

func (s *testScript) Help() string { return s.FullHelp("test help") }

func (s *testScript) Run(ctx context.Context, env *Env) (*omero.Report, error) {
	s.ran = true
	r := omero.NewReport(s.Info().Name)
	r.Succeed("all", "%d ids", len(env.Params.IDs("IDs")))
	return r, nil
}

func TestRegistry(t *testing.T) {
	s := &testScript{Base: NewBase(Info{Name: "test-script", URL: "example.com/test-script", ParamSchema: testSchema})}
	Register(s)
	defer delete(Compiled, s.Info().URL)

	got, err := Get("test-script")
	if err != nil || got != s {
		t.Fatalf("Get: %v", err)
	}
	if _, err := Get("nope"); err == nil || !strings.Contains(err.Error(), "test-script") {
		t.Errorf("expected unsupported error listing compiled scripts, got %v", err)
	}
	if !strings.Contains(s.Help(), "example.com/test-script") || !strings.Contains(s.Help(), "test help") {
		t.Errorf("bad help:\n%s", s.Help())
	}
	if !strings.Contains(Chart(), "test-script") {
		t.Errorf("chart missing script")
	}

	dup := &testScript{Base: NewBase(Info{Name: "test-script", URL: "example.com/other"})}
	Register(dup)
	defer delete(Compiled, dup.Info().URL)
	if _, err := Get("test-script"); err == nil {
		t.Errorf("expected ambiguity error")
	}
}

func TestFromCommand(t *testing.T) {
	info := Info{Name: "test", ParamSchema: testSchema}
	cmd := omero.Command{"test", "IDs=3, 4", "Export_CSV=false", "size=0.33", "File_Name=out"}
	p, err := FromCommand(cmd, info)
	if err != nil {
		t.Fatalf("FromCommand: %v", err)
	}
	if err := p.Validate(info); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if ids := p.IDs("IDs"); !reflect.DeepEqual(ids, []int64{3, 4}) {
		t.Errorf("bad ids: %v", ids)
	}
	if p.Bool("Export_CSV", true) {
		t.Errorf("Export_CSV should be false")
	}
	if p.Float("size", 0) != 0.33 {
		t.Errorf("bad size %v", p["size"])
	}
	if p.String("File_Name", "") != "out" {
		t.Errorf("bad file name")
	}

	if _, err := FromCommand(omero.Command{"test", "Export_CSV=maybe"}, info); !errors.Is(err, omero.ErrInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	info := Info{Name: "test", ParamSchema: testSchema}
	bad := []Params{
		{},
		{"IDs": []interface{}{}},
		{"IDs": []interface{}{float64(0)}},
		{"IDs": []interface{}{float64(1)}, "unknown": "x"},
		{"IDs": []interface{}{float64(1)}, "size": float64(-1)},
	}
	for i, p := range bad {
		if err := p.Validate(info); !errors.Is(err, omero.ErrInvalidArgument) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestReadParamsFile(t *testing.T) {
	dir := t.TempDir()
	yamlFile := filepath.Join(dir, "p.yaml")
	if err := os.WriteFile(yamlFile, []byte("IDs: [5, 6]\nExport_CSV: true\n"), 0644); err != nil {
		t.Fatal(err)
	}
	info := Info{Name: "test", ParamSchema: testSchema}
	p, err := FromCommand(omero.Command{"test", "params=" + yamlFile, "Export_CSV=false"}, info)
	if err != nil {
		t.Fatalf("FromCommand: %v", err)
	}
	if err := p.Validate(info); err != nil {
		t.Fatalf("yaml params should validate: %v", err)
	}
	if ids := p.IDs("IDs"); !reflect.DeepEqual(ids, []int64{5, 6}) {
		t.Errorf("bad ids from yaml: %v", ids)
	}
	if p.Bool("Export_CSV", true) {
		t.Errorf("command line should override file")
	}

	jsonFile := filepath.Join(dir, "p.json")
	os.WriteFile(jsonFile, []byte(`{"IDs": [7]}`), 0644)
	p, err = ReadParamsFile(jsonFile)
	if err != nil || !reflect.DeepEqual(p.IDs("IDs"), []int64{7}) {
		t.Errorf("bad json params %v: %v", p, err)
	}
	if _, err := ReadParamsFile(filepath.Join(dir, "p.txt")); err == nil {
		t.Errorf("expected error for unknown extension")
	}
}

func TestForEachUser(t *testing.T) {
	omero.SetLogMode(omero.SilentMode)
	defer omero.SetLogMode(omero.InfoMode)

	srv := gatewaytest.NewServer()
	srv.AddUser("user-1", "pw", false)
	srv.AddUser("user-3", "pw", false)
	srv.AddUser("user-4", "pw", false)
	env := &Env{Dialer: srv, Password: "pw", Params: Params{}}

	report := omero.NewReport("loop")
	var seen []string
	err := ForEachUser(context.Background(), env, omero.Range{First: 1, Last: 4}, report,
		func(ctx context.Context, conn gateway.Conn, user omero.Experimenter) (string, error) {
			seen = append(seen, user.UserName)
			if user.UserName == "user-4" {
				return "", errors.New("boom")
			}
			return "done", nil
		})
	if err != nil {
		t.Fatalf("ForEachUser: %v", err)
	}
	if !reflect.DeepEqual(seen, []string{"user-1", "user-3", "user-4"}) {
		t.Errorf("bad users visited: %v", seen)
	}
	succeeded, skipped, failed := report.Counts()
	if succeeded != 2 || skipped != 0 || failed != 2 {
		t.Errorf("expected 2 succeeded (1,3) and 2 failed (2 login, 4 boom), got %d %d %d", succeeded, skipped, failed)
	}
}
