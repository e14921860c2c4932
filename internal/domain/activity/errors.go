package activity

import "errors"

// ErrInvalidInput indicates an unusable activity query.
var ErrInvalidInput = errors.New("invalid activity query")
