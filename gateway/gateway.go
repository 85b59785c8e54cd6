/*
	Package gateway is the client side of a remote OMERO server.  Scripts depend on
	the small interfaces below; Dialer.Connect opens a session as a given user and
	returns a Conn implementing all of them.
*/
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/janelia-flyem/omerotools/omero"
)

// ErrUnauthorized is returned when the server rejects the session credentials.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is a non-2xx reply from the server.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Browser reads the container hierarchy.
type Browser interface {
	GetProject(ctx context.Context, id int64) (*omero.Project, error)
	GetDataset(ctx context.Context, id int64) (*omero.Dataset, error)
	GetImage(ctx context.Context, id int64) (*omero.Image, error)
	GetPlate(ctx context.Context, id int64) (*omero.Plate, error)

	// ListDatasets returns the datasets of a project.
	ListDatasets(ctx context.Context, projectID int64) ([]omero.Dataset, error)

	// ListImages returns the images of a dataset.  Parents of the returned
	// images are not set.
	ListImages(ctx context.Context, datasetID int64) ([]omero.Image, error)

	// ListWells returns the wells of a plate with their image ids.
	ListWells(ctx context.Context, plateID int64) ([]omero.Well, error)

	// ImageDatasets returns the datasets containing an image.
	ImageDatasets(ctx context.Context, imageID int64) ([]omero.Dataset, error)

	// DatasetProjects returns the projects containing a dataset.
	DatasetProjects(ctx context.Context, datasetID int64) ([]omero.Project, error)

	// FindDatasets returns datasets with the given name, newest first.  An
	// ownerID of 0 matches any owner.
	FindDatasets(ctx context.Context, name string, ownerID int64) ([]omero.Dataset, error)

	// FindProjects is like FindDatasets for projects.
	FindProjects(ctx context.Context, name string, ownerID int64) ([]omero.Project, error)

	// FindImages is like FindDatasets for images.  Parents are not set.
	FindImages(ctx context.Context, name string, ownerID int64) ([]omero.Image, error)
}

// ROIService reads ROIs and asks the server for shape statistics.
type ROIService interface {
	ListROIs(ctx context.Context, imageID int64) ([]omero.ROI, error)

	// ShapeStats computes intensity statistics of a shape on plane (z, t) for
	// each of the given 0-based channels.
	ShapeStats(ctx context.Context, shapeID int64, z, t int, channels []int) (omero.ShapeStats, error)

	DeleteROIs(ctx context.Context, roiIDs []int64) error
}

// Annotator reads and writes annotations.
type Annotator interface {
	// ListAnnotations returns annotation links on a parent, filtered by kind
	// and namespace when those are non-empty.
	ListAnnotations(ctx context.Context, parent omero.ObjectRef, kind omero.AnnotationKind, ns string) ([]omero.AnnotationLink, error)

	// MapAnnotations returns map annotations on a parent in a namespace.
	MapAnnotations(ctx context.Context, parent omero.ObjectRef, ns string) ([]omero.MapAnnotation, error)

	CreateMapAnnotation(ctx context.Context, ns string, values []omero.KeyValue, parents ...omero.ObjectRef) (int64, error)
	CreateLongAnnotation(ctx context.Context, ns string, value int64, parents ...omero.ObjectRef) (int64, error)
	CreateTag(ctx context.Context, text, description string) (*omero.TagAnnotation, error)

	// FindTags returns tags with the given text.  An ownerID of 0 matches any owner.
	FindTags(ctx context.Context, text string, ownerID int64) ([]omero.TagAnnotation, error)

	// UploadFile stores data as an original file and returns the file
	// annotation linked to every parent.
	UploadFile(ctx context.Context, name, mimeType, ns string, data []byte, parents ...omero.ObjectRef) (*omero.FileAnnotation, error)

	LinkAnnotation(ctx context.Context, annotationID int64, parents ...omero.ObjectRef) error
	DeleteAnnotationLinks(ctx context.Context, linkIDs []int64) error
	DeleteAnnotations(ctx context.Context, annotationIDs []int64) error
}

// Updater changes image and container metadata.
type Updater interface {
	SetPhysicalSizes(ctx context.Context, imageIDs []int64, x, y omero.Length) error

	// SetChannelLabels renames channels; keys are 0-based channel indices.
	SetChannelLabels(ctx context.Context, imageID int64, labels map[int]string) error

	PlaneInfos(ctx context.Context, imageID int64) ([]omero.PlaneInfo, error)
	SavePlaneInfos(ctx context.Context, imageID int64, infos []omero.PlaneInfo) error

	CreateProject(ctx context.Context, name string) (*omero.Project, error)
	CreateDataset(ctx context.Context, name string) (*omero.Dataset, error)
	LinkImages(ctx context.Context, datasetID int64, imageIDs []int64) error
	LinkDatasetToProject(ctx context.Context, datasetID, projectID int64) error
	UnlinkImage(ctx context.Context, imageID, datasetID int64) error
}

// Admin manages experimenters.  Most calls need an administrator session.
type Admin interface {
	CurrentUser(ctx context.Context) (omero.Experimenter, error)
	LookupExperimenter(ctx context.Context, userName string) (omero.Experimenter, error)
	UpdateExperimenter(ctx context.Context, e omero.Experimenter) error
	SetPassword(ctx context.Context, userName, password string) error
}

// Conn is an open session with the server.
type Conn interface {
	Browser
	ROIService
	Annotator
	Updater
	Admin

	// Close ends the session.
	Close() error
}

// Dialer opens sessions.
type Dialer interface {
	Connect(ctx context.Context, user, password string) (Conn, error)
}
