package files

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnknownMimeType = errors.New("unknown mime type")
)

// RecordStore persists encrypted records. Records are written once and never updated.
type RecordStore interface {
	// Insert stores the record and returns the identifier assigned to it.
	Insert(ctx context.Context, record *EncryptedRecord) (string, error)

	// FindByID returns ErrNotFound when no record carries the given identifier.
	FindByID(ctx context.Context, id string) (*EncryptedRecord, error)

	Close() error
}
