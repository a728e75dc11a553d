package tesscache

import "github.com/pkg/errors"

var (
	ErrInvalidOptions = errors.New("tesscache: invalid options")
	ErrNotSubdivPatch = errors.New("tesscache: geometry is not a subdivision mesh")
	ErrUnknownPatch   = errors.New("tesscache: patch index out of range")
	ErrWorkerMismatch = errors.New("tesscache: worker belongs to another cache")
)
