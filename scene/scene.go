package scene

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Scene is a collection of geometries addressed by their id. Deleted ids
// are not reused.
type Scene struct {
	mutex      sync.RWMutex
	geometries []Geometry

	// Bumped on every commit; used to detect stale tessellation cache
	// entries.
	commitCounter atomic.Uint64
}

// Create a new empty scene.
func New() *Scene {
	return &Scene{}
}

// Add a geometry to the scene and return its id.
func (s *Scene) Add(g Geometry) (uint32, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, existing := range s.geometries {
		if existing == g {
			return 0, ErrAlreadyAdded
		}
	}
	s.geometries = append(s.geometries, g)
	return uint32(len(s.geometries) - 1), nil
}

// Delete the geometry with the given id.
func (s *Scene) Delete(id uint32) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if int(id) >= len(s.geometries) || s.geometries[id] == nil {
		return errors.Wrapf(ErrUnknownGeometry, "delete geometry %d", id)
	}
	s.geometries[id] = nil
	return nil
}

// Geometry returns the geometry with the given id or nil if it was deleted.
func (s *Scene) Geometry(id uint32) Geometry {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if int(id) >= len(s.geometries) {
		return nil
	}
	return s.geometries[id]
}

// Size returns the number of geometry slots including deleted ones.
func (s *Scene) Size() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.geometries)
}

// NumPrimitives returns the primitive count over all live geometries.
func (s *Scene) NumPrimitives() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	total := 0
	for _, g := range s.geometries {
		if g != nil {
			total += g.NumPrimitives()
		}
	}
	return total
}

// Commit bumps the scene commit counter and returns its new value.
func (s *Scene) Commit() uint64 {
	return s.commitCounter.Add(1)
}

// CommitCounter returns the current commit counter.
func (s *Scene) CommitCounter() uint64 {
	return s.commitCounter.Load()
}
