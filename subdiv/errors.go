package subdiv

import "github.com/pkg/errors"

var (
	ErrGridTooSmall    = errors.New("subdiv: grid resolution must be at least 2x2")
	ErrBlockAccounting = errors.New("subdiv: subtree block count mismatch")
	ErrNotQuadLeaf     = errors.New("subdiv: reference is not a quad leaf")
)
