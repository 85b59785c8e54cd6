package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/janelia-flyem/omerotools/omero"
)

// BlobExporter writes local copies of generated files into a bucket.
type BlobExporter struct {
	bucket   *blob.Bucket
	location string
	compress omero.Compression
}

// IsLocalLocation returns true if an export location is a plain directory.
func IsLocalLocation(location string) bool {
	return location != "" && !strings.Contains(location, "://")
}

// OpenExporter opens the bucket of the given configuration.  A location
// without a scheme is a local directory, created if needed.
func OpenExporter(ctx context.Context, cfg ExportConfig) (*BlobExporter, error) {
	compress, err := omero.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	if compress == omero.Snappy {
		return nil, fmt.Errorf("exported files can only be gzip compressed")
	}
	if cfg.Location == "" {
		return nil, fmt.Errorf("no export location given")
	}

	var bucket *blob.Bucket
	location := cfg.Location
	if IsLocalLocation(location) {
		dir, err := filepath.Abs(location)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("can't make export directory %s: %v", dir, err)
		}
		if bucket, err = fileblob.OpenBucket(dir, nil); err != nil {
			return nil, err
		}
		location = dir
	} else {
		if bucket, err = blob.OpenBucket(ctx, location); err != nil {
			omero.Errorf("Can't open bucket reference @ %q: %v\n", location, err)
			return nil, err
		}
	}
	if cfg.Prefix != "" {
		prefix := strings.Trim(cfg.Prefix, "/") + "/"
		bucket = blob.PrefixedBucket(bucket, prefix)
		location = strings.TrimRight(location, "/") + "/" + strings.TrimRight(prefix, "/")
	}
	return &BlobExporter{bucket: bucket, location: location, compress: compress}, nil
}

// Location returns the directory or bucket URL files are exported to.
func (e *BlobExporter) Location() string {
	return e.location
}

// Key returns the object key a file name is stored under.
func (e *BlobExporter) Key(name string) string {
	key := strings.TrimLeft(filepath.ToSlash(name), "/")
	if e.compress == omero.Gzip {
		key += ".gz"
	}
	return key
}

// Export stores data under the file name and returns its location.
func (e *BlobExporter) Export(ctx context.Context, name string, data []byte) (string, error) {
	key := e.Key(name)
	opts := &blob.WriterOptions{}
	if e.compress == omero.Gzip {
		var err error
		if data, err = omero.Compress(data, omero.Gzip); err != nil {
			return "", err
		}
		opts.ContentType = "application/gzip"
	}
	if err := e.bucket.WriteAll(ctx, key, data, opts); err != nil {
		return "", fmt.Errorf("could not write %s to %s: %v", key, e.location, err)
	}
	return strings.TrimRight(e.location, "/") + "/" + key, nil
}

// Read returns the uncompressed contents of an exported file.
func (e *BlobExporter) Read(ctx context.Context, name string) ([]byte, error) {
	data, err := e.bucket.ReadAll(ctx, e.Key(name))
	if err != nil {
		return nil, err
	}
	return omero.Uncompress(data, e.compress)
}

// Close releases the bucket.
func (e *BlobExporter) Close() error {
	return e.bucket.Close()
}
