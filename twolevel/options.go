package twolevel

import (
	"github.com/achilleasa/accel/builder"
	"github.com/achilleasa/accel/bvh"
	"github.com/achilleasa/accel/scene"
	"github.com/pkg/errors"
)

// Options for the two-level scene builder.
type Options struct {
	// The branching factor used for both the object and the scene level
	// hierarchies.
	BranchingFactor int

	// Records with more items are built in parallel.
	SingleThreadThreshold int

	// Control the capacity reserved for opening object hierarchies:
	// max(max(MinExtSpace, refs*ExtScale), primitives/ExtFactor).
	MinExtSpace int
	ExtScale    int
	ExtFactor   int

	// Open object hierarchy nodes before building the scene level.
	Open bool

	// Object level build settings indexed by scene.Quality. The branching
	// factor and single thread threshold are overridden by the values above.
	ObjectSettings [3]builder.Settings

	// The number of items processed by each task of parallel reductions.
	GrainSize int

	// An optional progress monitor. A non-nil error aborts the build. It is
	// called concurrently by the object and scene level builds and must be
	// safe for concurrent use.
	Progress func(n int) error
}

// DefaultOptions returns the default options for the given branching factor.
func DefaultOptions(branchingFactor int) Options {
	low := builder.DefaultSettings(branchingFactor)
	low.MaxLeafSize = 16
	low.TravCost = 1.5

	medium := builder.DefaultSettings(branchingFactor)

	high := builder.DefaultSettings(branchingFactor)
	high.MaxLeafSize = 4
	high.MaxDepth = 40

	return Options{
		BranchingFactor:       branchingFactor,
		SingleThreadThreshold: 1024,
		MinExtSpace:           1000,
		ExtScale:              2,
		ExtFactor:             1000,
		Open:                  true,
		ObjectSettings:        [3]builder.Settings{low, medium, high},
		GrainSize:             1024,
	}
}

// Validate the options.
func (o Options) Validate() error {
	switch {
	case o.BranchingFactor < 2:
		return errors.Wrapf(ErrInvalidOptions, "branching factor %d < 2", o.BranchingFactor)
	case o.MinExtSpace < 0 || o.ExtScale < 1 || o.ExtFactor < 1:
		return errors.Wrapf(ErrInvalidOptions, "bad opening reserve factors (min %d, scale %d, factor %d)", o.MinExtSpace, o.ExtScale, o.ExtFactor)
	case o.GrainSize < 1:
		return errors.Wrapf(ErrInvalidOptions, "grain size %d < 1", o.GrainSize)
	}

	for q := range o.ObjectSettings {
		settings := o.objectSettings(scene.Quality(q))
		if err := settings.Validate(); err != nil {
			return errors.Wrapf(ErrInvalidOptions, "%s quality settings: %v", scene.Quality(q), err)
		}
		if settings.MaxLeafSize > bvh.MaxLeafPrims {
			return errors.Wrapf(ErrInvalidOptions, "%s quality max leaf size %d exceeds %d", scene.Quality(q), settings.MaxLeafSize, bvh.MaxLeafPrims)
		}
	}
	return nil
}

func (o Options) objectSettings(q scene.Quality) builder.Settings {
	settings := o.ObjectSettings[q]
	settings.BranchingFactor = o.BranchingFactor
	settings.SingleThreadThreshold = o.SingleThreadThreshold
	return settings
}

// Settings for the scene level hierarchy: one reference per leaf.
func (o Options) topLevelSettings() builder.Settings {
	logBlockSize := uint(0)
	for 1<<(logBlockSize+1) <= o.BranchingFactor {
		logBlockSize++
	}

	return builder.Settings{
		BranchingFactor:       o.BranchingFactor,
		MaxDepth:              40,
		LogBlockSize:          logBlockSize,
		MinLeafSize:           1,
		MaxLeafSize:           1,
		TravCost:              1,
		IntCost:               1,
		SingleThreadThreshold: o.SingleThreadThreshold,
	}
}

// The capacity reserved for opened references.
func (o Options) extSize(numRefs, numPrimitives int) int {
	size := o.MinExtSpace
	if scaled := numRefs * o.ExtScale; scaled > size {
		size = scaled
	}
	if reserve := numPrimitives / o.ExtFactor; reserve > size {
		size = reserve
	}
	return size
}
