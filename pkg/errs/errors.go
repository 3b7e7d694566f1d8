package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks lookups for collections or documents that do not
	// exist. Surfaced to the caller, never retried.
	ErrNotFound = errors.New("not found")

	// ErrExternalService marks failures of the embedding, vector store or
	// completion collaborators, including context cancellation while
	// waiting on them.
	ErrExternalService = errors.New("external service failure")
)

// IndexingError reports a failed chunk insertion. Retryable at document
// granularity: re-running indexing appends the remaining chunks.
type IndexingError struct {
	DocumentID int64
	ChunkIndex int
	Err        error
}

func (e *IndexingError) Error() string {
	return fmt.Sprintf("indexing document %d failed at chunk %d: %v", e.DocumentID, e.ChunkIndex, e.Err)
}

func (e *IndexingError) Unwrap() error {
	return e.Err
}

// External wraps err so callers can match it with errors.Is(err,
// ErrExternalService). Context errors are folded in as well, so a timed-out
// collaborator call never surfaces as a bare context error.
func External(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrExternalService, err)
}
