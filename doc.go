/*
omerotools runs administration and analysis scripts against an OMERO server,
either from the command line or as a long-lived service with a web and RPC API.

Documentation can be found nicely formatted at http://godoc.org/github.com/janelia-flyem/omerotools

Packages

	omero       Core types: containers, ROI shapes, annotations, run reports, logging.
	gateway     Sessions with an OMERO server through its JSON web API, plus caches.
	tables      Column tables attached to OMERO objects as Arrow IPC files.
	scripts     The script registry and the helpers scripts share.
	scripts/*   One package per script family, e.g. scripts/roiexport.
	storage     Exported files, the report store and the Kafka activity log.
	server      TOML configuration, JWT authorization, web and RPC servers.

The main script is roi-export, which measures every ROI of a selection of
images per channel and writes the summaries to CSV files, OMERO tables and
key-value annotations.

Commands

In the following documentation, the type of brackets designate
<required parameter> and [optional parameter].

	omerotools about
	omerotools help [script]
	omerotools -user=<name> -password=<pw> <script> [key=value ...]
	omerotools -config=<config.toml> serve
	omerotools -rpc=<address> <script> [key=value ...]

A running service can be checked with

	omeroping 30 http://localhost:8000/api/server/info
*/
package omerotools
