package omero

// Namespaces used by the scripts.
const (
	NSBulkAnnotations     = "openmicroscopy.org/omero/bulk_annotations"
	NSClientMapAnnotation = "openmicroscopy.org/omero/client/mapAnnotation"
	NSInsightRating       = "openmicroscopy.org/omero/insight/rating"
	NSROIExport           = "omero.batch_roi_export.map_ann"
	NSFRAP                = "demo.simple_frap_data"
)

// AnnotationKind distinguishes the annotation classes scripts handle.
type AnnotationKind string

const (
	MapKind  AnnotationKind = "MapAnnotation"
	FileKind AnnotationKind = "FileAnnotation"
	TagKind  AnnotationKind = "TagAnnotation"
	LongKind AnnotationKind = "LongAnnotation"
)

// KeyValue is one ordered entry of a map annotation.
type KeyValue struct {
	Key   string
	Value string
}

// MapAnnotation is an ordered list of key-value pairs under a namespace.
type MapAnnotation struct {
	ID        int64
	Namespace string
	Values    []KeyValue
}

// Get returns the first value stored under key.
func (m MapAnnotation) Get(key string) (string, bool) {
	for _, kv := range m.Values {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// FileAnnotation is an uploaded file attached to objects.
type FileAnnotation struct {
	ID        int64
	Namespace string
	Name      string
	MimeType  string
	Size      int64
}

// TagAnnotation is a text tag.
type TagAnnotation struct {
	ID          int64
	Text        string
	Description string
	OwnerID     int64
}

// LongAnnotation holds an integer such as a 1-5 rating.
type LongAnnotation struct {
	ID        int64
	Namespace string
	Value     int64
}

// AnnotationLink ties an annotation to a parent object.
type AnnotationLink struct {
	ID           int64
	Parent       ObjectRef
	AnnotationID int64
	Kind         AnnotationKind
	Namespace    string
	OwnerID      int64

	// Text is the tag text for tag links and LongValue the value of long annotations.
	Text      string
	LongValue int64
}
