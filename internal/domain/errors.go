package domain

import "errors"

var (
	// ErrInvalidArgument signals bad client input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrSchema signals a missing or malformed ingestion column.
	ErrSchema = errors.New("schema error")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrGenerationProvider signals an LLM generation failure.
	ErrGenerationProvider = errors.New("generation provider error")
	// ErrModelMismatch signals embedding model drift between ingestion and query time.
	ErrModelMismatch = errors.New("embedding model mismatch")
	// ErrCorruptStore signals an unreadable or incompatible persisted store.
	ErrCorruptStore = errors.New("corrupt store")
	// ErrStoreNotReady signals that the store has not finished loading.
	ErrStoreNotReady = errors.New("store not ready")
)
