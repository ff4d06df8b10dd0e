package repository

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"docsync/internal/model"
)

// ErrUnavailable marks infrastructure failures (I/O, timeouts, connectivity).
// Callers may retry operations that fail with it.
var ErrUnavailable = errors.New("document store unavailable")

// DefaultPageSize is used by Scan when the query does not set a limit.
const DefaultPageSize = 100

// Unavailable wraps err with ErrUnavailable, keeping the original for diagnostics.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

// MutateFunc changes a document in place during Update.
// Returning an error aborts the write; the error is returned to the caller unchanged.
type MutateFunc func(doc *model.Document) error

// DocumentRepository is the authoritative key-value store for documents.
// No business logic here — strictly persistence operations.
//
// Absent documents are reported as a nil document with a nil error, never as an error.
type DocumentRepository interface {
	// Put stores doc unconditionally. Last writer wins.
	Put(ctx context.Context, doc *model.Document) error

	// Get returns the document with the given ID, or nil if it does not exist.
	Get(ctx context.Context, id string) (*model.Document, error)

	// Delete removes the document and returns it as it was before removal, or nil if it did not exist.
	Delete(ctx context.Context, id string) (*model.Document, error)

	// Update applies fn to the current document and writes the result as one atomic step.
	// Concurrent updates of the same ID never interleave. Returns nil if the document does not exist.
	Update(ctx context.Context, id string, fn MutateFunc) (*model.Document, error)

	// Scan returns one page of stored documents. Order is unspecified.
	Scan(ctx context.Context, pq PageQuery) (*PageResult[model.Document], error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}

// PageQuery holds continuation-token pagination parameters.
// An empty Token starts a new scan; Limit <= 0 selects DefaultPageSize.
type PageQuery struct {
	Limit int
	Token string
}

// PageResult is a generic pagination result wrapper.
// NextToken is empty once the scan is complete.
type PageResult[T any] struct {
	Items     []T
	NextToken string
}

// EncodeToken turns a backend cursor into an opaque continuation token.
func EncodeToken(cursor string) string {
	if cursor == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(cursor))
}

// ErrInvalidToken is returned by Scan for tokens it did not issue.
var ErrInvalidToken = errors.New("invalid continuation token")

// DecodeToken reverses EncodeToken.
func DecodeToken(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrInvalidToken
	}
	return string(b), nil
}
