package store

import "errors"

var (
	ErrNotFound  = errors.New("store: resource not found")
	ErrDuplicate = errors.New("store: duplicate resource")
	ErrConflict  = errors.New("store: conflicting resource state")
	// ErrNotFolder is returned when a folder operation targets a bookmark.
	ErrNotFolder = errors.New("store: target is not a folder")
)
