package twolevel

import "github.com/pkg/errors"

var ErrInvalidOptions = errors.New("twolevel: invalid options")
