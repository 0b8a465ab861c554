package objectstorage

import (
	"context"
	"errors"
	"time"
)

// ErrObjectNotFound indicates the referenced object no longer exists.
var ErrObjectNotFound = errors.New("storage object not found")

// Object describes a stored binary.
type Object struct {
	Ref         string // opaque storage key, write-once
	DisplayName string
	ByteSize    int64
}

// Storage is the object storage port for message attachments. Keys are
// random, so concurrent uploads never collide; objects are never overwritten.
type Storage interface {
	// Put stores content under a fresh random key and returns the object.
	Put(ctx context.Context, displayName string, content []byte) (Object, error)

	// Get returns the stored bytes, or ErrObjectNotFound.
	Get(ctx context.Context, ref string) ([]byte, error)

	// SignedURL returns a time-limited URL for retrieving ref. Returns
	// ErrObjectNotFound when the object is already gone. URLs are generated
	// on demand, never persisted.
	SignedURL(ctx context.Context, ref string, ttl time.Duration) (string, error)

	// VerifyToken checks a retrieval token produced by SignedURL and returns
	// the ref it grants access to.
	VerifyToken(token string) (string, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, ref string) error
}
