// Command-line code generation for git-derived version information.

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/blang/semver"
)

var (
	// Name of file to output with Go version code
	outputfile = flag.String("o", "", "")

	// Package of the generated code.
	pkgName = flag.String("pkg", "server", "")

	// Display usage if true.
	showHelp = flag.Bool("help", false, "")
)

const helpMessage = `
gen-version calls git to generate Go code with source code version info.

Usage: gen-version [-pkg server] -o gitversion.go

      -pkg        =string   Package of the generated file (default "server").
      -h, -help   (flag)    Show help message

`

const code = `// Code generated by gen-version. DO NOT EDIT.

package %s

func init() {
	gitVersion = %q
	gitRelease = %t
}
`

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = func() {
		fmt.Print(helpMessage)
	}
	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if len(*outputfile) < 4 {
		fmt.Printf("The %q is required for this program\n", "-o foo.go")
		os.Exit(1)
	}

	gitPath, err := exec.LookPath("git")
	if err != nil {
		fmt.Printf("Unable to find git command; alter PATH?\nError: %v\n", err)
		os.Exit(1)
	}

	cmd := exec.Command(gitPath, "describe", "--abbrev=5", "--tags", "--dirty")
	out, err := cmd.Output()
	if err != nil {
		out = []byte("notag")
	}
	versionID := strings.TrimSpace(string(out))

	// A release is an exact, clean semantic version tag like "v1.2.0".
	release := false
	if v, err := semver.ParseTolerant(versionID); err == nil {
		release = len(v.Pre) == 0 && len(v.Build) == 0 && !strings.Contains(versionID, "-")
	}

	goCode := fmt.Sprintf(code, *pkgName, versionID, release)
	if err := os.WriteFile(*outputfile, []byte(goCode), 0644); err != nil {
		fmt.Printf("Error saving go code: %v\n", err)
		os.Exit(1)
	}
}
