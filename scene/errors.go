package scene

import "github.com/pkg/errors"

var (
	ErrUnknownGeometry = errors.New("scene: unknown geometry id")
	ErrAlreadyAdded    = errors.New("scene: geometry already added")
	ErrUnknownQuality  = errors.New("scene: unknown quality level")
)
