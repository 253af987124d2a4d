package service

import "errors"

var (
	ErrIDRequired      = errors.New("id is required")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("access denied")
	ErrNotReady        = errors.New("video is still being processed")
	ErrReaderNil       = errors.New("reader is nil")
	ErrEmptyFile       = errors.New("file is empty")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrInvalidTenant   = errors.New("invalid tenant: user not found")
	ErrInvalidRole     = errors.New("invalid role")
	ErrInvalidFilter   = errors.New("invalid filter")
)
