package gatewaytest

import (
	"context"
	"fmt"
	"sort"

	"github.com/janelia-flyem/omerotools/gateway"
	"github.com/janelia-flyem/omerotools/omero"
)

// Conn is a session with a Server.
type Conn struct {
	s      *Server
	user   omero.Experimenter
	admin  bool
	closed bool
}

var _ gateway.Conn = (*Conn)(nil)

func notFound(what string, id int64) error {
	return fmt.Errorf("%s %d: %w", what, id, omero.ErrNotFound)
}

func (c *Conn) lock() (*Server, error) {
	c.s.mu.Lock()
	if c.closed {
		c.s.mu.Unlock()
		return nil, fmt.Errorf("session of %s is closed", c.user.UserName)
	}
	return c.s, nil
}

func (c *Conn) Close() error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.closed
}

func (c *Conn) GetProject(ctx context.Context, id int64) (*omero.Project, error) {
	s, err := c.lock()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	p, found := s.projects[id]
	if !found {
		return nil, notFound("project", id)
	}
	cp := *p
	return &cp, nil
}

func (c *Conn) GetDataset(ctx context.Context, id int64) (*omero.Dataset, error) {
	s, err := c.lock()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	d, found := s.datasets[id]
	if !found {
		return nil, notFound("dataset", id)
	}
	cp := *d
	return &cp, nil
}

func (c *Conn) GetImage(ctx context.Context, id int64) (*omero.Image, error) {
	s, err := c.lock()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	img, found := s.images[id]
	if !found {
		return nil, notFound("image", id)
	}
	cp := *img
	cp.Channels = append([]omero.Channel(nil), img.Channels...)
	return &cp, nil
}

func (c *Conn) GetPlate(ctx context.Context, id int64) (*omero.Plate, error) {
	s, err := c.lock()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	p, found := s.plates[id]
	if !found {
		return nil, notFound("plate", id)
	}
	cp := *p
	return &cp, nil
}

func (c *Conn) ListDatasets(ctx context.Context, projectID int64) ([]omero.Dataset, error) {
	s, err := c.lock()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	if _, found := s.projects[projectID]; !found {
		return nil, notFound("project", projectID)
	}
	var datasets []omero.Dataset
	for _, id := range s.projectDatasets[projectID] {
		datasets = append(datasets, *s.datasets[id])
	}
	return datasets, nil
}

func (c *Conn) ListImages(ctx context.Context, datasetID int64) ([]omero.Image, error) {
	s, err := c.lock()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	if _, found := s.datasets[datasetID]; !found {
		return nil, notFound("dataset", datasetID)
	}
	var images []omero.Image
	for _, id := range s.datasetImages[datasetID] {
		img := *s.images[id]
		img.Channels = append([]omero.Channel(nil), img.Channels...)
		images = append(images, img)
	}
	return images, nil
}

func (c *Conn) ListWells(ctx context.Context, plateID int64) ([]omero.Well, error) {
	s, err := c.lock()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	if _, found := s.plates[plateID]; !found {
		return nil, notFound("plate", plateID)
	}
	return append([]omero.Well(nil), s.wells[plateID]...), nil
}

func (c *Conn) ImageDatasets(ctx context.Context, imageID int64) ([]omero.Dataset, error) {
	s, err := c.lock()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	var ids []int64
	for did, imageIDs := range s.datasetImages {
		for _, id := range imageIDs {
			if id == imageID {
				ids = append(ids, did)
				break
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var datasets []omero.Dataset
	for _, id := range ids {
		datasets = append(datasets, *s.datasets[id])
	}
	return datasets, nil
}

func (c *Conn) DatasetProjects(ctx context.Context, datasetID int64) ([]omero.Project, error) {
	s, err := c.lock()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	var ids []int64
	for pid, datasetIDs := range s.projectDatasets {
		for _, id := range datasetIDs {
			if id == datasetID {
				ids = append(ids, pid)
				break
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var projects []omero.Project
	for _, id := range ids {
		projects = append(projects, *s.projects[id])
	}
	return projects, nil
}

func (c *Conn) FindDatasets(ctx context.Context, name string, ownerID int64) ([]omero.Dataset, error) {
	s, err := c.lock()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	var datasets []omero.Dataset
	for _, d := range s.datasets {
		if d.Name == name && (ownerID == 0 || d.OwnerID == ownerID) {
			datasets = append(datasets, *d)
		}
	}
	sort.Slice(datasets, func(i, j int) bool { return datasets[i].ID > datasets[j].ID })
	return datasets, nil
}

func (c *Conn) FindProjects(ctx context.Context, name string, ownerID int64) ([]omero.Project, error) {
	s, err := c.lock()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	var projects []omero.Project
	for _, p := range s.projects {
		if p.Name == name && (ownerID == 0 || p.OwnerID == ownerID) {
			projects = append(projects, *p)
		}
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID > projects[j].ID })
	return projects, nil
}

func (c *Conn) FindImages(ctx context.Context, name string, ownerID int64) ([]omero.Image, error) {
	s, err := c.lock()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	var images []omero.Image
	for _, img := range s.images {
		if img.Name == name && (ownerID == 0 || img.OwnerID == ownerID) {
			images = append(images, *img)
		}
	}
	sort.Slice(images, func(i, j int) bool { return images[i].ID > images[j].ID })
	return images, nil
}

func (c *Conn) ListROIs(ctx context.Context, imageID int64) ([]omero.ROI, error) {
	s, err := c.lock()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	if _, found := s.images[imageID]; !found {
		return nil, notFound("image", imageID)
	}
	return append([]omero.ROI(nil), s.rois[imageID]...), nil
}

func (c *Conn) ShapeStats(ctx context.Context, shapeID int64, z, t int, channels []int) (omero.ShapeStats, error) {
	s, err := c.lock()
	if err != nil {
		return omero.ShapeStats{}, err
	}
	defer s.mu.Unlock()
	s.StatsCalls++
	stats := omero.ShapeStats{ShapeID: shapeID, Z: z, T: t}
	if err := s.statsErr[shapeID]; err != nil {
		return stats, err
	}
	for _, ch := range channels {
		cs, found := s.stats[statsKey{shapeID, z, t, ch}]
		if !found {
			cs = omero.ChannelStats{Channel: ch}
		}
		stats.Channels = append(stats.Channels, cs)
	}
	return stats, nil
}

func (c *Conn) DeleteROIs(ctx context.Context, roiIDs []int64) error {
	s, err := c.lock()
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	doomed := make(map[int64]bool, len(roiIDs))
	for _, id := range roiIDs {
		doomed[id] = true
	}
	for imageID, rois := range s.rois {
		var kept []omero.ROI
		for _, roi := range rois {
			if !doomed[roi.ID] {
				kept = append(kept, roi)
			}
		}
		s.rois[imageID] = kept
	}
	return nil
}

func (c *Conn) ListAnnotations(ctx context.Context, parent omero.ObjectRef, kind omero.AnnotationKind, ns string) ([]omero.AnnotationLink, error) {
	s, err := c.lock()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	var links []omero.AnnotationLink
	for _, l := range s.links {
		if l.Parent != parent {
			continue
		}
		a := s.annotations[l.AnnotationID]
		if a == nil || (kind != "" && a.Kind != kind) || (ns != "" && a.Namespace != ns) {
			continue
		}
		links = append(links, omero.AnnotationLink{
			ID:           l.ID,
			Parent:       l.Parent,
			AnnotationID: a.ID,
			Kind:         a.Kind,
			Namespace:    a.Namespace,
			OwnerID:      a.OwnerID,
			Text:         a.Text,
			LongValue:    a.Long,
		})
	}
	return links, nil
}

func (c *Conn) MapAnnotations(ctx context.Context, parent omero.ObjectRef, ns string) ([]omero.MapAnnotation, error) {
	links, err := c.ListAnnotations(ctx, parent, omero.MapKind, ns)
	if err != nil {
		return nil, err
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	var anns []omero.MapAnnotation
	for _, l := range links {
		a := c.s.annotations[l.AnnotationID]
		anns = append(anns, omero.MapAnnotation{ID: a.ID, Namespace: a.Namespace, Values: append([]omero.KeyValue(nil), a.Values...)})
	}
	return anns, nil
}

func (c *Conn) CreateMapAnnotation(ctx context.Context, ns string, values []omero.KeyValue, parents ...omero.ObjectRef) (int64, error) {
	s, err := c.lock()
	if err != nil {
		return 0, err
	}
	defer s.mu.Unlock()
	a := s.addAnnotation(Annotation{Kind: omero.MapKind, Namespace: ns, Values: append([]omero.KeyValue(nil), values...), OwnerID: c.user.ID}, parents...)
	return a.ID, nil
}

func (c *Conn) CreateLongAnnotation(ctx context.Context, ns string, value int64, parents ...omero.ObjectRef) (int64, error) {
	s, err := c.lock()
	if err != nil {
		return 0, err
	}
	defer s.mu.Unlock()
	a := s.addAnnotation(Annotation{Kind: omero.LongKind, Namespace: ns, Long: value, OwnerID: c.user.ID}, parents...)
	return a.ID, nil
}

func (c *Conn) CreateTag(ctx context.Context, text, description string) (*omero.TagAnnotation, error) {
	s, err := c.lock()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	a := s.addAnnotation(Annotation{Kind: omero.TagKind, Text: text, OwnerID: c.user.ID})
	return &omero.TagAnnotation{ID: a.ID, Text: text, Description: description, OwnerID: c.user.ID}, nil
}

func (c *Conn) FindTags(ctx context.Context, text string, ownerID int64) ([]omero.TagAnnotation, error) {
	s, err := c.lock()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	var tags []omero.TagAnnotation
	for _, a := range s.annotations {
		if a.Kind == omero.TagKind && a.Text == text && (ownerID == 0 || a.OwnerID == ownerID) {
			tags = append(tags, omero.TagAnnotation{ID: a.ID, Text: a.Text, OwnerID: a.OwnerID})
		}
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].ID < tags[j].ID })
	return tags, nil
}

func (c *Conn) UploadFile(ctx context.Context, name, mimeType, ns string, data []byte, parents ...omero.ObjectRef) (*omero.FileAnnotation, error) {
	s, err := c.lock()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	fa := &omero.FileAnnotation{Namespace: ns, Name: name, MimeType: mimeType, Size: int64(len(data))}
	a := s.addAnnotation(Annotation{Kind: omero.FileKind, Namespace: ns, File: fa, Data: append([]byte(nil), data...), OwnerID: c.user.ID}, parents...)
	fa.ID = a.ID
	return fa, nil
}

func (c *Conn) LinkAnnotation(ctx context.Context, annotationID int64, parents ...omero.ObjectRef) error {
	s, err := c.lock()
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	if _, found := s.annotations[annotationID]; !found {
		return notFound("annotation", annotationID)
	}
	for _, p := range parents {
		s.links = append(s.links, Link{ID: s.newID(), Parent: p, AnnotationID: annotationID, OwnerID: c.user.ID})
	}
	return nil
}

func (c *Conn) DeleteAnnotationLinks(ctx context.Context, linkIDs []int64) error {
	s, err := c.lock()
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	doomed := make(map[int64]bool, len(linkIDs))
	for _, id := range linkIDs {
		doomed[id] = true
	}
	kept := s.links[:0]
	for _, l := range s.links {
		if !doomed[l.ID] {
			kept = append(kept, l)
		}
	}
	s.links = kept
	return nil
}

func (c *Conn) DeleteAnnotations(ctx context.Context, annotationIDs []int64) error {
	s, err := c.lock()
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	doomed := make(map[int64]bool, len(annotationIDs))
	for _, id := range annotationIDs {
		doomed[id] = true
		delete(s.annotations, id)
	}
	kept := s.links[:0]
	for _, l := range s.links {
		if !doomed[l.AnnotationID] {
			kept = append(kept, l)
		}
	}
	s.links = kept
	return nil
}

func (c *Conn) SetPhysicalSizes(ctx context.Context, imageIDs []int64, x, y omero.Length) error {
	s, err := c.lock()
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	for _, id := range imageIDs {
		img, found := s.images[id]
		if !found {
			return notFound("image", id)
		}
		img.PhysicalSizeX, img.PhysicalSizeY = x, y
	}
	return nil
}

func (c *Conn) SetChannelLabels(ctx context.Context, imageID int64, labels map[int]string) error {
	s, err := c.lock()
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	img, found := s.images[imageID]
	if !found {
		return notFound("image", imageID)
	}
	for i, label := range labels {
		if i < 0 || i >= len(img.Channels) {
			return fmt.Errorf("image %d has no channel %d", imageID, i)
		}
		img.Channels[i].Label = label
	}
	return nil
}

func (c *Conn) PlaneInfos(ctx context.Context, imageID int64) ([]omero.PlaneInfo, error) {
	s, err := c.lock()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	if _, found := s.images[imageID]; !found {
		return nil, notFound("image", imageID)
	}
	return append([]omero.PlaneInfo(nil), s.planeInfos[imageID]...), nil
}

func (c *Conn) SavePlaneInfos(ctx context.Context, imageID int64, infos []omero.PlaneInfo) error {
	s, err := c.lock()
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	stored := s.planeInfos[imageID]
	for _, info := range infos {
		replaced := false
		for i := range stored {
			if stored[i].Z == info.Z && stored[i].C == info.C && stored[i].T == info.T {
				stored[i].DeltaT = info.DeltaT
				replaced = true
			}
		}
		if !replaced {
			info.ID = s.newID()
			stored = append(stored, info)
		}
	}
	s.planeInfos[imageID] = stored
	return nil
}

func (c *Conn) CreateProject(ctx context.Context, name string) (*omero.Project, error) {
	s, err := c.lock()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	p := &omero.Project{ID: s.newID(), Name: name, OwnerID: c.user.ID}
	s.projects[p.ID] = p
	cp := *p
	return &cp, nil
}

func (c *Conn) CreateDataset(ctx context.Context, name string) (*omero.Dataset, error) {
	s, err := c.lock()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	d := &omero.Dataset{ID: s.newID(), Name: name, OwnerID: c.user.ID}
	s.datasets[d.ID] = d
	cp := *d
	return &cp, nil
}

func (c *Conn) LinkImages(ctx context.Context, datasetID int64, imageIDs []int64) error {
	s, err := c.lock()
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	if _, found := s.datasets[datasetID]; !found {
		return notFound("dataset", datasetID)
	}
	for _, id := range imageIDs {
		if _, found := s.images[id]; !found {
			return notFound("image", id)
		}
	}
	for _, id := range imageIDs {
		linked := false
		for _, have := range s.datasetImages[datasetID] {
			if have == id {
				linked = true
				break
			}
		}
		if !linked {
			s.datasetImages[datasetID] = append(s.datasetImages[datasetID], id)
		}
	}
	return nil
}

func (c *Conn) LinkDatasetToProject(ctx context.Context, datasetID, projectID int64) error {
	s, err := c.lock()
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	if _, found := s.projects[projectID]; !found {
		return notFound("project", projectID)
	}
	if _, found := s.datasets[datasetID]; !found {
		return notFound("dataset", datasetID)
	}
	s.projectDatasets[projectID] = append(s.projectDatasets[projectID], datasetID)
	return nil
}

func (c *Conn) UnlinkImage(ctx context.Context, imageID, datasetID int64) error {
	s, err := c.lock()
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	var kept []int64
	for _, id := range s.datasetImages[datasetID] {
		if id != imageID {
			kept = append(kept, id)
		}
	}
	s.datasetImages[datasetID] = kept
	return nil
}

func (c *Conn) CurrentUser(ctx context.Context) (omero.Experimenter, error) {
	return c.user, nil
}

func (c *Conn) LookupExperimenter(ctx context.Context, userName string) (omero.Experimenter, error) {
	s, err := c.lock()
	if err != nil {
		return omero.Experimenter{}, err
	}
	defer s.mu.Unlock()
	u, found := s.users[userName]
	if !found {
		return omero.Experimenter{}, fmt.Errorf("experimenter %q: %w", userName, omero.ErrNotFound)
	}
	return u.Experimenter, nil
}

func (c *Conn) UpdateExperimenter(ctx context.Context, e omero.Experimenter) error {
	s, err := c.lock()
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	if !c.admin && e.ID != c.user.ID {
		return fmt.Errorf("update experimenter %q: %w", e.UserName, gateway.ErrUnauthorized)
	}
	for _, u := range s.users {
		if u.ID == e.ID {
			u.FirstName, u.LastName = e.FirstName, e.LastName
			return nil
		}
	}
	return notFound("experimenter", e.ID)
}

func (c *Conn) SetPassword(ctx context.Context, userName, password string) error {
	s, err := c.lock()
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	if !c.admin && userName != c.user.UserName {
		return fmt.Errorf("set password of %q: %w", userName, gateway.ErrUnauthorized)
	}
	u, found := s.users[userName]
	if !found {
		return fmt.Errorf("experimenter %q: %w", userName, omero.ErrNotFound)
	}
	u.password = password
	return nil
}
