package domain

import "errors"

var (
	// ErrShapeMismatch means texts and fragments disagree in length.
	ErrShapeMismatch = errors.New("texts and metadata length mismatch")
	// ErrDimensionMismatch means a vector width disagrees with the store.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrModelMismatch means a persisted store was built with another embedding model.
	ErrModelMismatch = errors.New("embedding model mismatch")
	// ErrCorruptStore means persisted artifacts are missing, unreadable or misaligned.
	ErrCorruptStore = errors.New("corrupt vector store")
	// ErrInvalidQuery means the query is empty or whitespace.
	ErrInvalidQuery = errors.New("query cannot be empty")
	// ErrStoreNotFound means no persisted store exists at the configured paths.
	ErrStoreNotFound = errors.New("vector store not found")
	// ErrStoreNotLoaded means an engine was used before a store was loaded.
	ErrStoreNotLoaded = errors.New("vector store not loaded")
	// ErrProfileNotFound means no profile state exists.
	ErrProfileNotFound = errors.New("profile not found")
)
