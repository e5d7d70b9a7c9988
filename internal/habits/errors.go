package habits

import "errors"

// ErrValidation marks input rejected before any mutation is applied.
var ErrValidation = errors.New("validation failed")
