package camera

import (
	"image"
	"sync"

	"github.com/corona10/goimagehash"
)

// SceneFilter decides whether a new frame differs enough from the last
// accepted one to replace the cached snapshot.
type SceneFilter struct {
	mu          sync.Mutex
	maxDistance int
	last        *goimagehash.ImageHash
}

// NewSceneFilter creates a filter. maxDistance 0 accepts every frame.
func NewSceneFilter(maxDistance int) *SceneFilter {
	return &SceneFilter{maxDistance: maxDistance}
}

// Changed reports whether img should replace the cached frame and, if so,
// remembers it as the new reference.
func (f *SceneFilter) Changed(img image.Image) bool {
	if f.maxDistance <= 0 {
		return true
	}

	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return true
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.last == nil {
		f.last = hash
		return true
	}

	dist, err := f.last.Distance(hash)
	if err != nil || dist > f.maxDistance {
		f.last = hash
		return true
	}
	return false
}

// Reset forgets the reference frame.
func (f *SceneFilter) Reset() {
	f.mu.Lock()
	f.last = nil
	f.mu.Unlock()
}
