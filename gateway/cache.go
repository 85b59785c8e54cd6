package gateway

import (
	"encoding/json"
	"strconv"
	"sync"

	"github.com/coocood/freecache"
	"github.com/golang/groupcache/lru"

	"github.com/janelia-flyem/omerotools/omero"
)

// image metadata does not change during a script run except through this
// client, which invalidates what it changes.
const imageCacheExpiry = 600 // seconds

// lookupCache holds image metadata and container parents to avoid repeated
// round trips when many images share datasets.
type lookupCache struct {
	images *freecache.Cache

	mu      sync.Mutex
	parents *lru.Cache
}

func newLookupCache(imageBytes, parentEntries int) *lookupCache {
	lc := &lookupCache{}
	if imageBytes > 0 {
		lc.images = freecache.NewCache(imageBytes)
	}
	if parentEntries > 0 {
		lc.parents = lru.New(parentEntries)
	}
	return lc
}

func imageKey(id int64) []byte {
	return []byte("image:" + strconv.FormatInt(id, 10))
}

func (lc *lookupCache) image(id int64) (*omero.Image, bool) {
	if lc == nil || lc.images == nil {
		return nil, false
	}
	data, err := lc.images.Get(imageKey(id))
	if err != nil {
		return nil, false
	}
	var img omero.Image
	if err := json.Unmarshal(data, &img); err != nil {
		return nil, false
	}
	return &img, true
}

func (lc *lookupCache) putImage(img *omero.Image) {
	if lc == nil || lc.images == nil || img == nil {
		return
	}
	stripped := img.WithParents(nil, nil)
	data, err := json.Marshal(stripped)
	if err != nil {
		return
	}
	if err := lc.images.Set(imageKey(img.ID), data, imageCacheExpiry); err != nil {
		omero.Debugf("image %d not cached: %v\n", img.ID, err)
	}
}

func (lc *lookupCache) dropImage(id int64) {
	if lc == nil || lc.images == nil {
		return
	}
	lc.images.Del(imageKey(id))
}

type parentKey struct {
	kind string
	id   int64
}

func (lc *lookupCache) parent(kind string, id int64) (interface{}, bool) {
	if lc == nil || lc.parents == nil {
		return nil, false
	}
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.parents.Get(parentKey{kind, id})
}

func (lc *lookupCache) putParent(kind string, id int64, v interface{}) {
	if lc == nil || lc.parents == nil {
		return
	}
	lc.mu.Lock()
	lc.parents.Add(parentKey{kind, id}, v)
	lc.mu.Unlock()
}

func (lc *lookupCache) dropParent(kind string, id int64) {
	if lc == nil || lc.parents == nil {
		return
	}
	lc.mu.Lock()
	lc.parents.Remove(parentKey{kind, id})
	lc.mu.Unlock()
}
