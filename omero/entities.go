package omero

import (
	"fmt"
	"strconv"
	"strings"
)

// Index is a 0-based Z, T or C plane index that may be unset.  Unset is
// distinct from 0 so a shape on the first plane is never confused with a
// shape spanning all planes.
type Index int32

// Unset marks a coordinate that was not given.
const Unset Index = -1

// NewIndex returns a set Index for a 0-based position.
func NewIndex(i int) Index {
	return Index(i)
}

// IsSet returns true if the index holds a plane position.
func (i Index) IsSet() bool {
	return i >= 0
}

// Int returns the 0-based value and whether it is set.
func (i Index) Int() (int, bool) {
	return int(i), i >= 0
}

// String returns the 1-based value used in exports, or "" when unset.
func (i Index) String() string {
	if i < 0 {
		return ""
	}
	return strconv.Itoa(int(i) + 1)
}

// DataType names a kind of container that scripts can be pointed at.
type DataType string

const (
	ProjectType DataType = "Project"
	DatasetType DataType = "Dataset"
	ImageType   DataType = "Image"
	PlateType   DataType = "Plate"
	WellType    DataType = "Well"
	ROIType     DataType = "Roi"
)

// ParseDataType accepts a case-insensitive data type name.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "project":
		return ProjectType, nil
	case "dataset":
		return DatasetType, nil
	case "image":
		return ImageType, nil
	case "plate":
		return PlateType, nil
	case "well":
		return WellType, nil
	}
	return "", fmt.Errorf("unknown data type %q: %w", s, ErrInvalidArgument)
}

// ObjectRef identifies a remote object.
type ObjectRef struct {
	Type DataType
	ID   int64
}

func (r ObjectRef) String() string {
	return fmt.Sprintf("%s:%d", r.Type, r.ID)
}

// Experimenter is a user account on the server.
type Experimenter struct {
	ID        int64
	UserName  string
	FirstName string
	LastName  string
}

// FullName returns "First Last".
func (e Experimenter) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

type Project struct {
	ID      int64
	Name    string
	OwnerID int64
}

type Dataset struct {
	ID      int64
	Name    string
	OwnerID int64
}

// Length is a physical size with its unit, e.g. 0.33 MICROMETER.  A zero
// Unit means the size is not set.
type Length struct {
	Value float64
	Unit  string
}

// Channel holds per-channel metadata of an image.
type Channel struct {
	ID        int64
	Index     int
	Label     string
	GlobalMin float64
	GlobalMax float64
}

// Image is an image with the metadata scripts need.  Dataset and Project are the
// containers through which the image was reached and may be nil.
type Image struct {
	ID       int64
	Name     string
	OwnerID  int64
	PixelsID int64

	SizeX, SizeY, SizeZ, SizeC, SizeT int

	PhysicalSizeX Length
	PhysicalSizeY Length

	Channels []Channel

	Dataset *Dataset
	Project *Project
}

// ChannelLabels returns the channel names in index order.
func (img *Image) ChannelLabels() []string {
	labels := make([]string, len(img.Channels))
	for i, c := range img.Channels {
		labels[i] = c.Label
	}
	return labels
}

// DatasetName returns the name of the parent dataset or "".
func (img *Image) DatasetName() string {
	if img.Dataset == nil {
		return ""
	}
	return img.Dataset.Name
}

// WithParents returns a copy of the image carrying the given containers.
func (img Image) WithParents(ds *Dataset, proj *Project) *Image {
	img.Dataset = ds
	img.Project = proj
	return &img
}

type Plate struct {
	ID      int64
	Name    string
	OwnerID int64
}

// Well is a plate well and the ids of the images in its well samples.
type Well struct {
	ID       int64
	Row      int
	Column   int
	ImageIDs []int64
}

// Label returns the conventional well label like "B3".
func (w Well) Label() string {
	return fmt.Sprintf("%c%d", 'A'+rune(w.Row), w.Column+1)
}

// PlaneInfo holds acquisition metadata of one plane.  DeltaT is in seconds.
type PlaneInfo struct {
	ID     int64
	Z, C   int
	T      int
	DeltaT float64
}
