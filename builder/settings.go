package builder

import "github.com/pkg/errors"

// Settings controls the shape and cost model of a binned SAH build.
type Settings struct {
	// The max number of children per internal node.
	BranchingFactor int

	// Records at this depth are turned into leaves.
	MaxDepth int

	// Leaf cost is charged per block of 1<<LogBlockSize primitives.
	LogBlockSize uint

	// Records with at most MinLeafSize primitives always become leaves
	// while leaves never receive more than MaxLeafSize primitives.
	MinLeafSize int
	MaxLeafSize int

	// SAH cost factors for traversing a node and intersecting a primitive.
	TravCost float32
	IntCost  float32

	// Records with more primitives than this threshold have their
	// children built in parallel.
	SingleThreadThreshold int
}

// DefaultSettings returns the settings used for object level hierarchies.
// The builder itself never falls back to these values.
func DefaultSettings(branchingFactor int) Settings {
	return Settings{
		BranchingFactor:       branchingFactor,
		MaxDepth:              32,
		LogBlockSize:          0,
		MinLeafSize:           1,
		MaxLeafSize:           8,
		TravCost:              1.0,
		IntCost:               1.0,
		SingleThreadThreshold: 1024,
	}
}

// Validate rejects settings that cannot produce a tree.
func (s Settings) Validate() error {
	switch {
	case s.BranchingFactor < 2:
		return errors.Wrapf(ErrInvalidSettings, "branching factor %d < 2", s.BranchingFactor)
	case s.MaxDepth < 1:
		return errors.Wrapf(ErrInvalidSettings, "max depth %d < 1", s.MaxDepth)
	case s.MinLeafSize < 1:
		return errors.Wrapf(ErrInvalidSettings, "min leaf size %d < 1", s.MinLeafSize)
	case s.MaxLeafSize < s.MinLeafSize:
		return errors.Wrapf(ErrInvalidSettings, "max leaf size %d < min leaf size %d", s.MaxLeafSize, s.MinLeafSize)
	case s.TravCost < 0 || s.IntCost < 0:
		return errors.Wrapf(ErrInvalidSettings, "negative SAH costs (trav %f, int %f)", s.TravCost, s.IntCost)
	case s.SingleThreadThreshold < 0:
		return errors.Wrapf(ErrInvalidSettings, "negative single thread threshold %d", s.SingleThreadThreshold)
	}
	return nil
}

// Number of leaf blocks needed for count primitives.
func (s Settings) blocks(count int) float32 {
	return float32((count + (1 << s.LogBlockSize) - 1) >> s.LogBlockSize)
}
