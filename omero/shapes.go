package omero

// ShapeType is the kind of a ROI shape.
type ShapeType string

const (
	Ellipse   ShapeType = "Ellipse"
	Rectangle ShapeType = "Rectangle"
	Polygon   ShapeType = "Polygon"
	Polyline  ShapeType = "Polyline"
	Line      ShapeType = "Line"
	Point     ShapeType = "Point"
	Label     ShapeType = "Label"
	Mask      ShapeType = "Mask"
)

// Shape is one geometric primitive within a ROI.  Z, T and C are Unset when
// the shape applies to every plane along that dimension.
type Shape struct {
	ID   int64
	Type ShapeType
	Text string

	Z, T, C Index

	// Geometry as stored on the server.  Only the fields of the shape type are used.
	X, Y             float64
	RadiusX, RadiusY float64
	Width, Height    float64
	X2, Y2           float64
	Points           string
}

// ROI is a region of interest on an image holding one or more shapes.
type ROI struct {
	ID      int64
	ImageID int64
	Name    string
	Shapes  []Shape
}

// ChannelStats are intensity statistics for one shape on one channel.
type ChannelStats struct {
	Channel int
	Points  int64
	Min     float64
	Max     float64
	Sum     float64
	Mean    float64
	StdDev  float64
}

// ShapeStats are the statistics the server computed for a shape on one
// (z, t) plane across the requested channels, in request order.
type ShapeStats struct {
	ShapeID  int64
	Z, T     int
	Channels []ChannelStats
}

// ForChannel returns the statistics of a 0-based channel.
func (s ShapeStats) ForChannel(c int) (ChannelStats, bool) {
	for _, cs := range s.Channels {
		if cs.Channel == c {
			return cs, true
		}
	}
	return ChannelStats{}, false
}
