package models

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrOperation  = errors.New("operation failed")
	ErrConflict   = errors.New("conflict")
)
