/*
	Package omero holds the core types shared by all scripts: remote containers,
	ROI shapes and their statistics, annotations, per-unit results and run reports,
	together with logging, command parsing and serialization helpers.
*/
package omero
