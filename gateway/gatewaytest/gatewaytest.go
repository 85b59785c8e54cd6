/*
	Package gatewaytest provides an in-memory server implementing the gateway
	interfaces so scripts can be tested without a remote installation.
*/
package gatewaytest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/janelia-flyem/omerotools/gateway"
	"github.com/janelia-flyem/omerotools/omero"
)

// Annotation is a stored annotation of any kind.
type Annotation struct {
	ID        int64
	Kind      omero.AnnotationKind
	Namespace string
	Text      string
	Long      int64
	Values    []omero.KeyValue
	File      *omero.FileAnnotation
	Data      []byte
	OwnerID   int64
}

// Link ties an annotation to a parent.
type Link struct {
	ID           int64
	Parent       omero.ObjectRef
	AnnotationID int64
	OwnerID      int64
}

type user struct {
	omero.Experimenter
	password string
	admin    bool
}

type statsKey struct {
	shapeID int64
	z, t, c int
}

// Server is the in-memory state.  Build it with the Add methods, connect
// through Connect, then inspect it after the code under test has run.
type Server struct {
	mu     sync.Mutex
	nextID int64

	users    map[string]*user
	projects map[int64]*omero.Project
	datasets map[int64]*omero.Dataset
	images   map[int64]*omero.Image
	plates   map[int64]*omero.Plate
	wells    map[int64][]omero.Well

	projectDatasets map[int64][]int64
	datasetImages   map[int64][]int64

	rois       map[int64][]omero.ROI
	stats      map[statsKey]omero.ChannelStats
	statsErr   map[int64]error
	planeInfos map[int64][]omero.PlaneInfo

	annotations map[int64]*Annotation
	links       []Link

	// StatsCalls counts ShapeStats requests.
	StatsCalls int

	// Version is reported by ServerVersion.
	Version string
}

// NewServer returns an empty server.
func NewServer() *Server {
	return &Server{
		nextID:          100,
		users:           make(map[string]*user),
		projects:        make(map[int64]*omero.Project),
		datasets:        make(map[int64]*omero.Dataset),
		images:          make(map[int64]*omero.Image),
		plates:          make(map[int64]*omero.Plate),
		wells:           make(map[int64][]omero.Well),
		projectDatasets: make(map[int64][]int64),
		datasetImages:   make(map[int64][]int64),
		rois:            make(map[int64][]omero.ROI),
		stats:           make(map[statsKey]omero.ChannelStats),
		statsErr:        make(map[int64]error),
		planeInfos:      make(map[int64][]omero.PlaneInfo),
		annotations:     make(map[int64]*Annotation),
		Version:         "5.6.3",
	}
}

func (s *Server) newID() int64 {
	s.nextID++
	return s.nextID
}

// AddUser creates an account.
func (s *Server) AddUser(userName, password string, admin bool) omero.Experimenter {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &user{Experimenter: omero.Experimenter{ID: s.newID(), UserName: userName}, password: password, admin: admin}
	s.users[userName] = u
	return u.Experimenter
}

// User returns an account by name.
func (s *Server) User(userName string) (omero.Experimenter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, found := s.users[userName]
	if !found {
		return omero.Experimenter{}, false
	}
	return u.Experimenter, true
}

// Password returns the current password of an account.
func (s *Server) Password(userName string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, found := s.users[userName]; found {
		return u.password
	}
	return ""
}

func (s *Server) AddProject(name string, ownerID int64) *omero.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &omero.Project{ID: s.newID(), Name: name, OwnerID: ownerID}
	s.projects[p.ID] = p
	return p
}

// AddDataset creates a dataset inside the given projects.
func (s *Server) AddDataset(name string, ownerID int64, projectIDs ...int64) *omero.Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := &omero.Dataset{ID: s.newID(), Name: name, OwnerID: ownerID}
	s.datasets[d.ID] = d
	for _, pid := range projectIDs {
		s.projectDatasets[pid] = append(s.projectDatasets[pid], d.ID)
	}
	return d
}

// AddImage stores a copy of img with a fresh id inside the given datasets.
// Channels are numbered and SizeC defaults to the number of channels.
func (s *Server) AddImage(img omero.Image, datasetIDs ...int64) *omero.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := img
	stored.ID = s.newID()
	stored.PixelsID = s.newID()
	stored.Dataset, stored.Project = nil, nil
	stored.Channels = append([]omero.Channel(nil), img.Channels...)
	for i := range stored.Channels {
		stored.Channels[i].Index = i
	}
	if stored.SizeC == 0 {
		stored.SizeC = len(stored.Channels)
	}
	if stored.SizeZ == 0 {
		stored.SizeZ = 1
	}
	if stored.SizeT == 0 {
		stored.SizeT = 1
	}
	s.images[stored.ID] = &stored
	for _, did := range datasetIDs {
		s.datasetImages[did] = append(s.datasetImages[did], stored.ID)
	}
	return &stored
}

// LinkImage adds an existing image to another dataset.
func (s *Server) LinkImage(imageID, datasetID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasetImages[datasetID] = append(s.datasetImages[datasetID], imageID)
}

// AddPlate creates a plate with one image per well.
func (s *Server) AddPlate(name string, ownerID int64, wellImages map[[2]int]int64) *omero.Plate {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &omero.Plate{ID: s.newID(), Name: name, OwnerID: ownerID}
	s.plates[p.ID] = p
	var wells []omero.Well
	for rc, imageID := range wellImages {
		wells = append(wells, omero.Well{ID: s.newID(), Row: rc[0], Column: rc[1], ImageIDs: []int64{imageID}})
	}
	sort.Slice(wells, func(i, j int) bool {
		if wells[i].Row != wells[j].Row {
			return wells[i].Row < wells[j].Row
		}
		return wells[i].Column < wells[j].Column
	})
	s.wells[p.ID] = wells
	return p
}

// AddROI stores a ROI with the given shapes, assigning ids to both.
func (s *Server) AddROI(imageID int64, shapes ...omero.Shape) omero.ROI {
	s.mu.Lock()
	defer s.mu.Unlock()
	roi := omero.ROI{ID: s.newID(), ImageID: imageID}
	for _, sh := range shapes {
		sh.ID = s.newID()
		roi.Shapes = append(roi.Shapes, sh)
	}
	s.rois[imageID] = append(s.rois[imageID], roi)
	return roi
}

// SetStats sets the statistics returned for a shape on one plane and channel.
func (s *Server) SetStats(shapeID int64, z, t, c int, stats omero.ChannelStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats.Channel = c
	s.stats[statsKey{shapeID, z, t, c}] = stats
}

// FailStats makes ShapeStats of a shape return err.
func (s *Server) FailStats(shapeID int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statsErr[shapeID] = err
}

// AddAnnotation stores an annotation linked to the given parents.
func (s *Server) AddAnnotation(a Annotation, parents ...omero.ObjectRef) *Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addAnnotation(a, parents...)
}

func (s *Server) addAnnotation(a Annotation, parents ...omero.ObjectRef) *Annotation {
	stored := a
	stored.ID = s.newID()
	s.annotations[stored.ID] = &stored
	for _, p := range parents {
		s.links = append(s.links, Link{ID: s.newID(), Parent: p, AnnotationID: stored.ID, OwnerID: a.OwnerID})
	}
	return &stored
}

// Annotations returns the annotations of a kind linked to parent, in link order.
func (s *Server) Annotations(parent omero.ObjectRef, kind omero.AnnotationKind) []Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var anns []Annotation
	for _, l := range s.links {
		if l.Parent != parent {
			continue
		}
		if a, found := s.annotations[l.AnnotationID]; found && (kind == "" || a.Kind == kind) {
			anns = append(anns, *a)
		}
	}
	return anns
}

// Annotation returns a stored annotation.
func (s *Server) Annotation(id int64) (Annotation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, found := s.annotations[id]
	if !found {
		return Annotation{}, false
	}
	return *a, true
}

// Parents returns the objects an annotation is linked to.
func (s *Server) Parents(annotationID int64) []omero.ObjectRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	var refs []omero.ObjectRef
	for _, l := range s.links {
		if l.AnnotationID == annotationID {
			refs = append(refs, l.Parent)
		}
	}
	return refs
}

// ROIs returns the ROIs currently on an image.
func (s *Server) ROIs(imageID int64) []omero.ROI {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]omero.ROI(nil), s.rois[imageID]...)
}

// Image returns the stored image.
func (s *Server) Image(id int64) (omero.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, found := s.images[id]
	if !found {
		return omero.Image{}, false
	}
	return *img, true
}

// DatasetImageIDs returns the ids of images in a dataset.
func (s *Server) DatasetImageIDs(datasetID int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.datasetImages[datasetID]...)
}

// ProjectDatasetIDs returns the ids of datasets in a project.
func (s *Server) ProjectDatasetIDs(projectID int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.projectDatasets[projectID]...)
}

// StoredPlaneInfos returns the plane infos of an image.
func (s *Server) StoredPlaneInfos(imageID int64) []omero.PlaneInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]omero.PlaneInfo(nil), s.planeInfos[imageID]...)
}

// Connect implements gateway.Dialer.
func (s *Server) Connect(ctx context.Context, userName, password string) (gateway.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, found := s.users[userName]
	if !found || u.password != password {
		return nil, fmt.Errorf("login as %s: %w", userName, gateway.ErrUnauthorized)
	}
	return &Conn{s: s, user: u.Experimenter, admin: u.admin}, nil
}

var _ gateway.Dialer = (*Server)(nil)
