package entity

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("concurrent modification")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrInvalidJobState   = errors.New("invalid job state")
	ErrInvalidInput      = errors.New("invalid input")
)
