// Command-line interface to the omerotools scripts.
// Scripts run locally against an OMERO server or are sent to a running omerotools service.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/pprof"
	"strings"
	"syscall"

	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
	"github.com/janelia-flyem/omerotools/server"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Run in verbose mode if true.
	runVerbose = flag.Bool("verbose", false, "")

	// TOML configuration of the OMERO server, exports and the service.
	configFile = flag.String("config", "", "")

	// OMERO server and web front end.  These override the configuration.
	omeroServer = flag.String("server", "", "")
	omeroPort   = flag.Int("port", 0, "")
	webURL      = flag.String("web", "", "")

	// Session credentials.  If not given, OMERO_USER and OMERO_PASSWORD are used.
	user     = flag.String("user", "", "")
	password = flag.String("password", "", "")

	// Address of a running omerotools service.  If set, commands are sent there.
	rpcAddress = flag.String("rpc", "", "")

	// Profile CPU usage using standard gotest system.
	cpuprofile = flag.String("cpuprofile", "", "")
)

const helpMessage = `
omerotools runs administration and analysis scripts against an OMERO server

Usage: omerotools [options] <command>

      -config     =string   TOML configuration file.
      -server     =string   OMERO server (default %s).
      -port       =number   OMERO server port (default %d).
      -web        =string   URL of the OMERO web front end (default https://<server>).
      -user       =string   User name for the session (or $OMERO_USER).
      -password   =string   Password for the session (or $OMERO_PASSWORD).
      -rpc        =string   Send the command to an omerotools service at this address.
      -cpuprofile =string   Write CPU profile to this file.
      -verbose    (flag)    Run in verbose mode.
  -h, -help       (flag)    Show help message

Commands:

	about
	help [script]
	scripts
	serve                       Start the service; requires -config
	token <user>                Print a JSON Web Token signed with the configured secret key
	<script> [key=value ...]    Run a script, e.g.

	    omerotools -user=trainer-1 roi-export Data_Type=Dataset IDs=101 Channels=1,2

Script parameters may also be read from a YAML or JSON file with params=<file>.
`

var usage = func() {
	fmt.Printf(helpMessage, server.DefaultConfig().Dialer().Server, server.DefaultConfig().Dialer().Port)
	fmt.Print(scripts.Chart())
}

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 1 && strings.ToLower(flag.Args()[0]) == "help" {
		*showHelp = true
	}
	if *runVerbose {
		omero.Verbose = true
		omero.SetLogMode(omero.DebugMode)
	}
	if *showHelp || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	// Capture ctrl+c and other interrupts.  Running scripts are canceled.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	failed, err := DoCommand(ctx, omero.Command(flag.Args()))
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
	}
	if err != nil || failed {
		stop()
		pprof.StopCPUProfile()
		os.Exit(1)
	}
}

// loadConfig returns the configuration file, if any, with the command-line
// overrides applied.
func loadConfig() (*server.Config, error) {
	cfg := server.DefaultConfig()
	if *configFile != "" {
		var err error
		if cfg, err = server.LoadConfig(*configFile); err != nil {
			return nil, err
		}
	}
	if *omeroServer != "" {
		cfg.Omero.Server = *omeroServer
	}
	if *omeroPort != 0 {
		cfg.Omero.Port = *omeroPort
	}
	if *webURL != "" {
		cfg.Omero.WebURL = *webURL
	}
	if *user != "" {
		cfg.Omero.User = *user
	} else if cfg.Omero.User == "" {
		cfg.Omero.User = os.Getenv("OMERO_USER")
	}
	if *password != "" {
		cfg.Omero.Password = *password
	} else if cfg.Omero.Password == "" {
		cfg.Omero.Password = os.Getenv("OMERO_PASSWORD")
	}
	return cfg, nil
}

// DoCommand serves as a switchboard for commands, handling local ones and
// sending via rpc those commands that need a running service.  It returns
// true if a script ran but some of its units failed.
func DoCommand(ctx context.Context, cmd omero.Command) (failed bool, err error) {
	if len(cmd) == 0 {
		return false, fmt.Errorf("blank command")
	}

	switch cmd.Name() {
	case "about":
		git, release := server.GitVersion()
		if release {
			fmt.Printf("omerotools %s (release %s)\n", server.Version, git)
		} else {
			fmt.Printf("omerotools %s (git %s)\n", server.Version, git)
		}
		fmt.Print(scripts.Chart())
		return false, nil
	case "scripts":
		fmt.Print(scripts.Chart())
		return false, nil
	case "help":
		var name string
		cmd.CommandArgs(&name)
		script, err := scripts.Get(name)
		if err != nil {
			return false, err
		}
		fmt.Println(script.Help())
		return false, nil
	case "serve":
		return false, DoServe(ctx)
	case "token":
		return false, DoToken(cmd)
	}

	if *rpcAddress != "" {
		return DoRemote(cmd)
	}
	return DoRun(ctx, cmd)
}

// DoServe starts the web and RPC servers of the configured service.
func DoServe(ctx context.Context) error {
	if *configFile == "" {
		return fmt.Errorf("serve requires a TOML configuration given with -config")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Logging.SetLogger()
	defer omero.Shutdown()

	service, err := server.NewService(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer service.Close()
	return service.Serve(ctx)
}

// DoToken prints a JSON Web Token for a user of the service.
func DoToken(cmd omero.Command) error {
	var name string
	cmd.CommandArgs(&name)
	if name == "" {
		return fmt.Errorf("token command must be followed by a user name")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.SecretKey == "" {
		return fmt.Errorf("no secret_key in the [auth] section of the configuration")
	}
	token, err := server.GenerateJWT(cfg.Auth.SecretKey, name)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// DoRun runs a script in this process and prints its report.
func DoRun(ctx context.Context, cmd omero.Command) (bool, error) {
	cfg, err := loadConfig()
	if err != nil {
		return false, err
	}
	if cfg.Omero.User == "" {
		return false, fmt.Errorf("no user given; use -user or set OMERO_USER")
	}
	service, err := server.NewService(ctx, cfg, nil)
	if err != nil {
		return false, err
	}
	defer service.Close()

	report, err := service.RunCommand(ctx, cmd, "", "")
	if report != nil {
		fmt.Print(report.String())
		return report.Failed(), err
	}
	return false, err
}

// DoRemote sends a command to a running service and prints its response.
func DoRemote(cmd omero.Command) (bool, error) {
	client := server.NewClient(*rpcAddress)
	defer client.Close()
	resp, err := client.Do(cmd, *user, *password)
	if err != nil {
		return false, fmt.Errorf("unable to reach omerotools service at %s: %v", *rpcAddress, err)
	}
	fmt.Print(resp.Text)
	return resp.Failed, nil
}
