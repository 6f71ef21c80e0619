package storage

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSchemaUnsupported is returned when a read requires the feed schema
	// extension (visible_in_feed, canonical_of) and the underlying schema
	// does not have it. Callers recover by retrying without the extension.
	ErrSchemaUnsupported = errors.New("datastore schema missing feed extension columns")

	// ErrCollision is returned when an insert hits a uniqueness constraint.
	ErrCollision = errors.New("item already exists")

	// ErrCancelled is returned when the caller abandoned the request.
	ErrCancelled = errors.New("request has been cancelled")
)
