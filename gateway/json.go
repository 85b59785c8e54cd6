package gateway

import (
	"encoding/json"
	"strings"

	"github.com/janelia-flyem/omerotools/omero"
)

// Replies wrap their payload in a "data" member and errors in "message".
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
}

type jsonOwner struct {
	ID int64 `json:"@id"`
}

type jsonDetails struct {
	Owner jsonOwner `json:"owner"`
}

type jsonObject struct {
	ID      int64        `json:"@id"`
	Type    string       `json:"@type,omitempty"`
	Name    string       `json:"Name"`
	Details *jsonDetails `json:"omero:details,omitempty"`
}

func (o jsonObject) owner() int64 {
	if o.Details == nil {
		return 0
	}
	return o.Details.Owner.ID
}

func (o jsonObject) project() omero.Project {
	return omero.Project{ID: o.ID, Name: o.Name, OwnerID: o.owner()}
}

func (o jsonObject) dataset() omero.Dataset {
	return omero.Dataset{ID: o.ID, Name: o.Name, OwnerID: o.owner()}
}

func (o jsonObject) plate() omero.Plate {
	return omero.Plate{ID: o.ID, Name: o.Name, OwnerID: o.owner()}
}

type jsonLength struct {
	Value float64 `json:"Value"`
	Unit  string  `json:"Unit"`
}

type jsonStatsInfo struct {
	GlobalMin float64 `json:"GlobalMin"`
	GlobalMax float64 `json:"GlobalMax"`
}

type jsonChannel struct {
	ID        int64          `json:"@id"`
	Name      string         `json:"Name"`
	StatsInfo *jsonStatsInfo `json:"StatsInfo,omitempty"`
}

type jsonPixels struct {
	ID            int64         `json:"@id"`
	SizeX         int           `json:"SizeX"`
	SizeY         int           `json:"SizeY"`
	SizeZ         int           `json:"SizeZ"`
	SizeC         int           `json:"SizeC"`
	SizeT         int           `json:"SizeT"`
	PhysicalSizeX *jsonLength   `json:"PhysicalSizeX,omitempty"`
	PhysicalSizeY *jsonLength   `json:"PhysicalSizeY,omitempty"`
	Channels      []jsonChannel `json:"Channels"`
}

type jsonImage struct {
	jsonObject
	Pixels jsonPixels `json:"Pixels"`
}

func (ji jsonImage) image() *omero.Image {
	img := &omero.Image{
		ID:       ji.ID,
		Name:     ji.Name,
		OwnerID:  ji.owner(),
		PixelsID: ji.Pixels.ID,
		SizeX:    ji.Pixels.SizeX,
		SizeY:    ji.Pixels.SizeY,
		SizeZ:    ji.Pixels.SizeZ,
		SizeC:    ji.Pixels.SizeC,
		SizeT:    ji.Pixels.SizeT,
	}
	if l := ji.Pixels.PhysicalSizeX; l != nil {
		img.PhysicalSizeX = omero.Length{Value: l.Value, Unit: l.Unit}
	}
	if l := ji.Pixels.PhysicalSizeY; l != nil {
		img.PhysicalSizeY = omero.Length{Value: l.Value, Unit: l.Unit}
	}
	for i, jc := range ji.Pixels.Channels {
		c := omero.Channel{ID: jc.ID, Index: i, Label: jc.Name}
		if jc.StatsInfo != nil {
			c.GlobalMin = jc.StatsInfo.GlobalMin
			c.GlobalMax = jc.StatsInfo.GlobalMax
		}
		img.Channels = append(img.Channels, c)
	}
	if img.SizeC == 0 {
		img.SizeC = len(img.Channels)
	}
	return img
}

type jsonWell struct {
	ID          int64 `json:"@id"`
	Row         int   `json:"Row"`
	Column      int   `json:"Column"`
	WellSamples []struct {
		Image jsonObject `json:"Image"`
	} `json:"WellSamples"`
}

type jsonShape struct {
	ID      int64   `json:"@id"`
	Type    string  `json:"@type"`
	Text    string  `json:"Text,omitempty"`
	TheZ    *int    `json:"TheZ,omitempty"`
	TheT    *int    `json:"TheT,omitempty"`
	TheC    *int    `json:"TheC,omitempty"`
	X       float64 `json:"X,omitempty"`
	Y       float64 `json:"Y,omitempty"`
	RadiusX float64 `json:"RadiusX,omitempty"`
	RadiusY float64 `json:"RadiusY,omitempty"`
	Width   float64 `json:"Width,omitempty"`
	Height  float64 `json:"Height,omitempty"`
	X1      float64 `json:"X1,omitempty"`
	Y1      float64 `json:"Y1,omitempty"`
	X2      float64 `json:"X2,omitempty"`
	Y2      float64 `json:"Y2,omitempty"`
	Points  string  `json:"Points,omitempty"`
}

func toIndex(p *int) omero.Index {
	if p == nil || *p < 0 {
		return omero.Unset
	}
	return omero.NewIndex(*p)
}

// shapeType strips the schema prefix, e.g. "http://www.openmicroscopy.org/Schemas/OME/2016-06#Ellipse".
func shapeType(t string) omero.ShapeType {
	if pos := strings.LastIndex(t, "#"); pos >= 0 {
		t = t[pos+1:]
	}
	return omero.ShapeType(t)
}

func (js jsonShape) shape() omero.Shape {
	s := omero.Shape{
		ID:      js.ID,
		Type:    shapeType(js.Type),
		Text:    js.Text,
		Z:       toIndex(js.TheZ),
		T:       toIndex(js.TheT),
		C:       toIndex(js.TheC),
		X:       js.X,
		Y:       js.Y,
		RadiusX: js.RadiusX,
		RadiusY: js.RadiusY,
		Width:   js.Width,
		Height:  js.Height,
		X2:      js.X2,
		Y2:      js.Y2,
		Points:  js.Points,
	}
	if s.Type == omero.Line {
		s.X, s.Y = js.X1, js.Y1
	}
	return s
}

type jsonROI struct {
	ID     int64       `json:"@id"`
	Name   string      `json:"Name,omitempty"`
	Shapes []jsonShape `json:"shapes"`
}

type jsonChannelStats struct {
	Channel int     `json:"channel"`
	Points  int64   `json:"points"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Sum     float64 `json:"sum"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
}

type jsonRef struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

func toRefs(parents []omero.ObjectRef) []jsonRef {
	refs := make([]jsonRef, len(parents))
	for i, p := range parents {
		refs[i] = jsonRef{Type: string(p.Type), ID: p.ID}
	}
	return refs
}

type jsonAnnotation struct {
	ID        int64        `json:"@id"`
	Type      string       `json:"@type"`
	Namespace string       `json:"ns,omitempty"`
	TextValue string       `json:"TextValue,omitempty"`
	LongValue int64        `json:"LongValue,omitempty"`
	Values    [][2]string  `json:"Values,omitempty"`
	File      *jsonFile    `json:"File,omitempty"`
	Details   *jsonDetails `json:"omero:details,omitempty"`
}

type jsonFile struct {
	Name     string `json:"Name"`
	MimeType string `json:"Mimetype"`
	Size     int64  `json:"Size"`
}

type jsonLink struct {
	ID         int64          `json:"@id"`
	Parent     jsonRef        `json:"parent"`
	Annotation jsonAnnotation `json:"annotation"`
}

func (jl jsonLink) link() omero.AnnotationLink {
	l := omero.AnnotationLink{
		ID:           jl.ID,
		Parent:       omero.ObjectRef{Type: omero.DataType(jl.Parent.Type), ID: jl.Parent.ID},
		AnnotationID: jl.Annotation.ID,
		Kind:         omero.AnnotationKind(jl.Annotation.Type),
		Namespace:    jl.Annotation.Namespace,
		Text:         jl.Annotation.TextValue,
		LongValue:    jl.Annotation.LongValue,
	}
	if jl.Annotation.Details != nil {
		l.OwnerID = jl.Annotation.Details.Owner.ID
	}
	return l
}

func fromKeyValues(values []omero.KeyValue) [][2]string {
	pairs := make([][2]string, len(values))
	for i, kv := range values {
		pairs[i] = [2]string{kv.Key, kv.Value}
	}
	return pairs
}

func toKeyValues(pairs [][2]string) []omero.KeyValue {
	values := make([]omero.KeyValue, len(pairs))
	for i, p := range pairs {
		values[i] = omero.KeyValue{Key: p[0], Value: p[1]}
	}
	return values
}

type jsonExperimenter struct {
	ID        int64  `json:"@id"`
	UserName  string `json:"UserName"`
	FirstName string `json:"FirstName"`
	LastName  string `json:"LastName"`
}

func (je jsonExperimenter) experimenter() omero.Experimenter {
	return omero.Experimenter{ID: je.ID, UserName: je.UserName, FirstName: je.FirstName, LastName: je.LastName}
}

type jsonPlaneInfo struct {
	ID     int64       `json:"@id,omitempty"`
	TheZ   int         `json:"TheZ"`
	TheC   int         `json:"TheC"`
	TheT   int         `json:"TheT"`
	DeltaT *jsonLength `json:"DeltaT,omitempty"`
}
