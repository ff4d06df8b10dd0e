// Package storage writes deleted-document snapshots to S3-compatible object storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"
)

// DeletedPrefix is the key prefix under which removed documents are archived.
const DeletedPrefix = "deleted/"

// DeletedKey names the archive object for a document removed at the given time.
// Keys sort by document, then by removal time.
func DeletedKey(id string, at time.Time) string {
	return fmt.Sprintf("%s%s/%d.json", DeletedPrefix, id, at.UnixNano())
}

// PutObjectOptions describe an upload. Size is -1 when unknown.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo is what the backend reports about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the write side of the archive bucket.
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
}
