package builder

import "github.com/pkg/errors"

var (
	ErrInvalidSettings = errors.New("builder: invalid settings")
	ErrMissingCallback = errors.New("builder: missing callback")
)
