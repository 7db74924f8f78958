package models

import (
	"errors"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")

	ErrInvalidURL  = errors.New("invalid URL")
	ErrNoBookmarks = errors.New("no bookmarks to process")
)
