package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavel-fokin/files-vault/internal/files"
	"github.com/pavel-fokin/files-vault/internal/mongodb"
)

const recordExt = ".bson"

// Storage implements files.RecordStore on the filesystem, one BSON document per record
type Storage struct {
	dataDir string
}

// NewStorage creates a new filesystem storage
func NewStorage(dataDir string) (*Storage, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &Storage{
		dataDir: dataDir,
	}, nil
}

// Insert writes the record to a temporary file and renames it into place
func (s *Storage) Insert(ctx context.Context, record *files.EncryptedRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := primitive.NewObjectID()
	raw, err := bson.Marshal(mongodb.NewDocument(id, record))
	if err != nil {
		return "", fmt.Errorf("failed to encode record: %w", err)
	}

	tmp, err := os.CreateTemp(s.dataDir, "record-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to sync record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close record: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path(id)); err != nil {
		return "", fmt.Errorf("failed to store record: %w", err)
	}

	return id.Hex(), nil
}

// FindByID reads a record by ID
func (s *Storage) FindByID(ctx context.Context, id string) (*files.EncryptedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Only well-formed ObjectIDs ever become file names.
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, files.ErrNotFound
	}

	raw, err := os.ReadFile(s.path(oid))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, files.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	var doc mongodb.Document
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", id, err)
	}

	return doc.Record(), nil
}

// Close is a no-op; there is nothing to release.
func (s *Storage) Close() error {
	return nil
}

func (s *Storage) path(id primitive.ObjectID) string {
	return filepath.Join(s.dataDir, id.Hex()+recordExt)
}
