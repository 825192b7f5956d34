// Package errors provides centralized error definitions for mailcapture.
package errors

import "errors"

// Capture errors.
var (
	// ErrStorageWrite indicates a captured message could not be written to storage.
	ErrStorageWrite = errors.New("storage write failed")

	// ErrMessageIDMissing indicates a built message carries no Message-ID header.
	ErrMessageIDMissing = errors.New("message id missing")

	// ErrInvalidMessage indicates a raw message could not be parsed.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrNilMessage indicates Send was called without a message.
	ErrNilMessage = errors.New("nil message")
)

// Catalog errors.
var (
	// ErrNotFound indicates the requested capture does not exist.
	ErrNotFound = errors.New("capture not found")

	// ErrCorruptRecord indicates a capture exists but cannot be read or decoded.
	ErrCorruptRecord = errors.New("corrupt record")

	// ErrMalformedName indicates a file name does not follow the record layout.
	ErrMalformedName = errors.New("malformed record name")

	// ErrInvalidLimit indicates a negative List limit.
	ErrInvalidLimit = errors.New("invalid limit")
)

// Record encoding errors.
var (
	// ErrUnsupportedRecord indicates stored data is not in a record format this version reads.
	ErrUnsupportedRecord = errors.New("unsupported record format")

	// ErrSealKeyMissing indicates a sealed record cannot be processed without a key.
	ErrSealKeyMissing = errors.New("seal key missing")

	// ErrInvalidKeyFormat indicates a sealing key is malformed.
	ErrInvalidKeyFormat = errors.New("invalid key format")
)

// Store errors.
var (
	// ErrStoreNotRegistered indicates the requested store type is not registered.
	ErrStoreNotRegistered = errors.New("store type not registered")

	// ErrStoreConfigInvalid indicates the store configuration is invalid.
	ErrStoreConfigInvalid = errors.New("invalid store configuration")
)
