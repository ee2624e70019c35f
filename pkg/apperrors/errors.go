package apperrors

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrDatabaseUnavailable = errors.New("database unavailable")
)
