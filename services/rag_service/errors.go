package rag_service

import "fmt"

// ParseError indicates the extraction collaborator could not read a file's
// content (corrupted encoding, non-text bytes, unsupported structure).
type ParseError struct {
	Filename string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s: %v", e.Filename, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// EmbeddingError indicates the embedding provider failed (quota, transport,
// malformed response).
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding error: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// GenerationError indicates the answer-generation provider failed.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation error: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// StorageError indicates a failed read or write against the persistent
// store, including transaction failures. An inconclusive dedup lookup is a
// StorageError, never silently treated as "new document".
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ValidationError indicates input that was rejected before any pipeline work
// (oversized file, unsupported type, path traversal attempt).
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Reason)
}
