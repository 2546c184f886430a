package service

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidState        = errors.New("invalid state")
	ErrLocationUnavailable = errors.New("location unavailable")
	ErrNotOnManifest       = errors.New("not on manifest")
)
