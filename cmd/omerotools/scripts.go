package main

// Declare the scripts this omerotools executable will support.
import (
	_ "github.com/janelia-flyem/omerotools/scripts/calibrate"
	_ "github.com/janelia-flyem/omerotools/scripts/channelnames"
	_ "github.com/janelia-flyem/omerotools/scripts/cleanup"
	_ "github.com/janelia-flyem/omerotools/scripts/copytags"
	_ "github.com/janelia-flyem/omerotools/scripts/frap"
	_ "github.com/janelia-flyem/omerotools/scripts/hello"
	_ "github.com/janelia-flyem/omerotools/scripts/idrmaps"
	_ "github.com/janelia-flyem/omerotools/scripts/keyvalues"
	_ "github.com/janelia-flyem/omerotools/scripts/linkdataset"
	_ "github.com/janelia-flyem/omerotools/scripts/linkimages"
	_ "github.com/janelia-flyem/omerotools/scripts/minmax"
	_ "github.com/janelia-flyem/omerotools/scripts/roiexport"
	_ "github.com/janelia-flyem/omerotools/scripts/tagimages"
	_ "github.com/janelia-flyem/omerotools/scripts/timestamps"
	_ "github.com/janelia-flyem/omerotools/scripts/users"
)
