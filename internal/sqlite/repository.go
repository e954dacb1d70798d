package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	_ "modernc.org/sqlite"

	"github.com/pavel-fokin/files-vault/internal/files"
)

// Repository implements files.RecordStore using SQLite
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite repository
func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; parallel ingest workers share one connection.
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}

	if err := repo.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) initSchema() error {
	createTableQuery := `
	CREATE TABLE IF NOT EXISTS files (
		id TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		file_hash BLOB NOT NULL,
		mime_type BLOB NOT NULL,
		file_name BLOB NOT NULL,
		upload_date INTEGER NOT NULL,
		available_days INTEGER NOT NULL
	);`
	if _, err := r.db.Exec(createTableQuery); err != nil {
		return fmt.Errorf("failed to create files table: %w", err)
	}

	createIndexQuery := `CREATE INDEX IF NOT EXISTS idx_files_upload_date ON files(upload_date);`
	if _, err := r.db.Exec(createIndexQuery); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Insert stores an encrypted record under a fresh ObjectID
func (r *Repository) Insert(ctx context.Context, record *files.EncryptedRecord) (string, error) {
	query := `
	INSERT INTO files (id, data, file_hash, mime_type, file_name, upload_date, available_days)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	id := primitive.NewObjectID().Hex()
	_, err := r.db.ExecContext(ctx, query,
		id,
		record.Data,
		record.Details.FileHash,
		record.Details.MimeType,
		record.Details.FileName,
		record.Upload.Date,
		record.Upload.AvailableDays,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create file record: %w", err)
	}

	return id, nil
}

// FindByID retrieves an encrypted record by ID. The ID is matched case-insensitively.
func (r *Repository) FindByID(ctx context.Context, id string) (*files.EncryptedRecord, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, files.ErrNotFound
	}

	query := `
	SELECT id, data, file_hash, mime_type, file_name, upload_date, available_days
	FROM files
	WHERE id = ?
	`

	var record files.EncryptedRecord
	err = r.db.QueryRowContext(ctx, query, oid.Hex()).Scan(
		&record.ID,
		&record.Data,
		&record.Details.FileHash,
		&record.Details.MimeType,
		&record.Details.FileName,
		&record.Upload.Date,
		&record.Upload.AvailableDays,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, files.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find file: %w", err)
	}

	return &record, nil
}
