package covar

import "errors"

// Errors returned by the estimators.
var (
	ErrDimension       = errors.New("covar: dimension mismatch")
	ErrEmptyGroup      = errors.New("covar: CTF group has no images")
	ErrGroupIndex      = errors.New("covar: filter group index out of range")
	ErrInvalidNoiseVar = errors.New("covar: noise variance must be non-negative")
	ErrNoImages        = errors.New("covar: coefficient batch is empty")
)
