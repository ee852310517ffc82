package store

import "errors"

var (
	ErrNotFound = errors.New("decision not found")
	ErrConflict = errors.New("decision was modified concurrently")
)
