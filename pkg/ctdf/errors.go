package ctdf

import "errors"

var (
	ErrNotFound             = errors.New("record not found")
	ErrDuplicateFingerprint = errors.New("journey with this fingerprint already exists")
)
