package bvh

import "github.com/pkg/errors"

var (
	ErrArenaExhausted = errors.New("bvh: arena capacity exhausted")
	ErrUnknownSegment = errors.New("bvh: reference to unknown segment")
	ErrInvalidRef     = errors.New("bvh: invalid node reference")

	// SkipSubtree can be returned by a WalkFunc to skip the children of
	// the visited node. It is never returned by Walk.
	SkipSubtree = errors.New("bvh: skip subtree")
)
