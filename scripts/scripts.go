/*
	Package scripts holds the registry of compiled-in scripts and the helpers they
	share: parameter decoding and validation, session handling and the per-user loop
	used by the training-server administration scripts.
*/
package scripts

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/janelia-flyem/omerotools/gateway"
	"github.com/janelia-flyem/omerotools/omero"
)

// This message is appended to the help of every script.
const helpMessage = `
    omerotools script information

    name: %s
    url: %s

    Settings are given on the command line as key=value, e.g. IDs=1,2,3, or read
    from a YAML or JSON file with params=<file>.
`

// Info identifies a script.
type Info struct {
	// Name is what users type on the command line, e.g. "roi-export".
	Name string

	// URL is the package that implements the script.
	URL string

	Version string

	// Description is a one line summary.
	Description string

	// ParamSchema is a JSON schema the script's parameters must satisfy.
	ParamSchema string
}

// Exporter saves a copy of a generated file outside the server.
type Exporter interface {
	Export(ctx context.Context, name string, data []byte) (location string, err error)
}

// Env is everything a script run needs.
type Env struct {
	Dialer gateway.Dialer

	// User and Password open the main session.  Per-user scripts log in to
	// each training account with Password.
	User     string
	Password string

	Params Params

	// Exporter receives local copies of generated files.  May be nil.
	Exporter Exporter
}

// Script is a compiled-in script.
type Script interface {
	Info() Info

	// Help returns a string explaining how to use the script.
	Help() string

	// Run executes the script.  Failures of individual units of work are
	// recorded in the report; a returned error means the run could not start
	// or could not continue.
	Run(ctx context.Context, env *Env) (*omero.Report, error)
}

// Base is embedded by scripts to get Info and Help for free.
type Base struct {
	info Info
}

// NewBase returns a Base for the given Info.
func NewBase(info Info) Base {
	return Base{info}
}

func (b Base) Info() Info {
	return b.info
}

// FullHelp prefixes the script specific help with the common help.
func (b Base) FullHelp(scriptHelp string) string {
	return fmt.Sprintf(helpMessage, b.info.Name, b.info.URL) + scriptHelp
}

// Compiled is the set of registered scripts keyed by URL.
var Compiled map[string]Script

// Register registers a script.  It is called from the init() of each script package.
func Register(s Script) {
	if Compiled == nil {
		Compiled = make(map[string]Script)
	}
	Compiled[s.Info().URL] = s
}

// Names returns the sorted names of compiled scripts.
func Names() []string {
	var names []string
	for _, s := range Compiled {
		names = append(names, s.Info().Name)
	}
	sort.Strings(names)
	return names
}

// Get returns a script by name or an error if name is not supported or ambiguous.
func Get(name string) (Script, error) {
	var found Script
	for _, s := range Compiled {
		if s.Info().Name != name {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("script name %q is ambiguous: %s and %s", name, found.Info().URL, s.Info().URL)
		}
		found = s
	}
	if found == nil {
		return nil, fmt.Errorf("script %q is unsupported.  Compiled scripts: %s", name, strings.Join(Names(), ", "))
	}
	return found, nil
}

// Chart returns a table of compiled scripts.
func Chart() string {
	var sb strings.Builder
	sb.WriteString("\nScripts compiled into omerotools\n\n")
	fmt.Fprintf(&sb, "%-26s %-8s %s\n", "Name", "Version", "Description")
	for _, name := range Names() {
		s, _ := Get(name)
		info := s.Info()
		fmt.Fprintf(&sb, "%-26s %-8s %s\n", info.Name, info.Version, info.Description)
	}
	return sb.String() + "\n"
}

// Run validates the parameters against the script schema and runs it.
func Run(ctx context.Context, s Script, env *Env) (*omero.Report, error) {
	if env.Params == nil {
		env.Params = Params{}
	}
	if err := env.Params.Validate(s.Info()); err != nil {
		return nil, err
	}
	timedLog := omero.NewTimeLog()
	report, err := s.Run(ctx, env)
	if err != nil {
		return report, fmt.Errorf("%s: %w", s.Info().Name, err)
	}
	if report.Finished.IsZero() {
		report.Finish("")
	}
	succeeded, skipped, failed := report.Counts()
	timedLog.Infof("Script %s finished with %d succeeded, %d skipped, %d failed", s.Info().Name, succeeded, skipped, failed)
	return report, nil
}
