package record

import "errors"

var (
	// ErrStoreCorrupt indicates the store file exists but cannot be
	// parsed. A non-empty malformed file is never treated as empty.
	ErrStoreCorrupt = errors.New("store file is corrupt")

	// ErrStoreWrite indicates the store file could not be persisted.
	// The previously persisted version is left intact.
	ErrStoreWrite = errors.New("store write failed")

	// ErrRecordNotFound indicates an operation targeted a name with no
	// record in the store.
	ErrRecordNotFound = errors.New("record not found")

	// ErrDuplicateRecord indicates a create targeted a name that
	// already has a record.
	ErrDuplicateRecord = errors.New("record already exists")
)
