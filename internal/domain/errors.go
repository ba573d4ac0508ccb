package domain

import "errors"

// Ingestion and query failure taxonomy. Transient remote failures are retried
// inside the owning client; these sentinels are what the rest of the backend
// branches on once retries are exhausted or preconditions fail.
var (
	// ErrUnparsableDocument means both the primary and the permissive parser
	// rejected the upload. Fatal for the upload; document is marked failed.
	ErrUnparsableDocument = errors.New("unparsable document")

	// ErrEmbeddingUnavailable means the embedding provider kept failing past
	// the retry bound (or failed permanently).
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrIndexUnavailable means the vector index could not be reached or
	// rejected the operation past the retry bound.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrIngestionInProgress rejects a concurrent ingestion attempt for a
	// document that is already transitioning through processing.
	ErrIngestionInProgress = errors.New("ingestion already in progress")

	// ErrNoActiveDocument is the query-time precondition failure for an
	// unknown or deleted document.
	ErrNoActiveDocument = errors.New("no active document")

	// ErrDocumentNotReady means the document exists but has not finished
	// (or has failed) ingestion; queries must not be answered ungrounded.
	ErrDocumentNotReady = errors.New("document not ready")
)
