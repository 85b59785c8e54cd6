// Periodically ping an omerotools service or OMERO web server

package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Number of failed pings tolerated before exiting.
	maxFailures = flag.Int("failures", 1, "")
)

const helpMessage = `

omeroping periodically calls a URL as a heartbeat.

Usage: omeroping [options] <delay in seconds> <url to ping>

  Example URLs: http://localhost:8000/api/server/info
                https://outreach.openmicroscopy.org/api/

  -failures   =number   Exit after this many consecutive failures (default 1).
  -h, -help   (flag)    Show help message
`

var usage = func() {
	fmt.Print(helpMessage)
}

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = usage
	flag.Parse()

	if *showHelp || flag.NArg() != 2 {
		flag.Usage()
		os.Exit(0)
	}
	args := flag.Args()

	pause, err := strconv.Atoi(args[0])
	if err != nil || pause <= 0 {
		fmt.Printf("error parsing pause time %q: %v\n", args[0], err)
		os.Exit(1)
	}
	pingURL := args[1]

	client := &http.Client{Timeout: time.Duration(pause) * time.Second}
	var failures int
	for t := range time.Tick(time.Duration(pause) * time.Second) {
		if err := ping(client, pingURL); err != nil {
			failures++
			fmt.Printf("%s: %v\n", t.Format(time.RFC3339), err)
			if failures >= *maxFailures {
				os.Exit(1)
			}
			continue
		}
		failures = 0
	}
}

func ping(client *http.Client, pingURL string) error {
	start := time.Now()
	resp, err := client.Get(pingURL)
	if err != nil {
		return fmt.Errorf("error on GET of %q: %v", pingURL, err)
	}
	defer resp.Body.Close()
	n, _ := io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad response from %q: %s", pingURL, resp.Status)
	}
	fmt.Printf("%s: %s in %s\n", pingURL, humanize.Bytes(uint64(n)), time.Since(start).Round(time.Millisecond))
	return nil
}
