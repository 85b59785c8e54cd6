/*
	Package storage holds what omerotools keeps outside the OMERO server: local or
	cloud copies of generated files, a store of run reports, and an optional
	activity log published to Kafka.
*/
package storage

// ExportConfig describes where local copies of generated files are kept.
type ExportConfig struct {
	// Location is a local directory or a bucket URL like "file:///data/exports",
	// "gs://bucket" or "s3://bucket?region=us-east-1".
	Location string

	// Prefix is prepended to every exported object name.
	Prefix string

	// Compression is "none" or "gzip".
	Compression string
}

// ReportsConfig describes the report store.
type ReportsConfig struct {
	// Path of the badger directory.  If empty, reports are kept in memory.
	Path string

	// Compression of stored reports: "none", "snappy" or "gzip".
	Compression string
}

// KafkaConfig describes kafka servers receiving one activity message per run.
type KafkaConfig struct {
	TopicActivity string // if supplied, overrides the default omerotools-<host> topic
	Servers       []string
	BufferSize    int
}
