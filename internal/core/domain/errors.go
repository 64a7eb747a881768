package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDocument marks a malformed or empty document: the item
	// is skipped and reported, never fatal to the batch.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrEmbedding marks a model inference failure on an item.
	ErrEmbedding = errors.New("embedding failure")

	// ErrIndexUnavailable marks index storage or generation-swap
	// failures. Surfaced to the caller; no partial results.
	ErrIndexUnavailable = errors.New("index unavailable")

	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
