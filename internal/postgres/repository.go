// Package postgres stores encrypted records in PostgreSQL through the pgx
// database/sql driver. The schema is managed with embedded goose migrations.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavel-fokin/files-vault/internal/files"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Repository implements files.RecordStore on PostgreSQL.
type Repository struct {
	db *sql.DB
}

// NewRepository opens dsn and runs pending migrations.
func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return &Repository{db: db}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

// Close closes the connection pool.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Insert stores the record under a fresh ObjectID.
func (r *Repository) Insert(ctx context.Context, record *files.EncryptedRecord) (string, error) {
	query := `
		INSERT INTO files (id, data, file_hash, mime_type, file_name, upload_date, available_days)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
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
		return "", fmt.Errorf("failed to insert file: %w", err)
	}

	return id, nil
}

// FindByID returns files.ErrNotFound for unknown or malformed IDs. Hex case is ignored.
func (r *Repository) FindByID(ctx context.Context, id string) (*files.EncryptedRecord, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, files.ErrNotFound
	}

	query := `
		SELECT id, data, file_hash, mime_type, file_name, upload_date, available_days
		FROM files
		WHERE id = $1
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
		return nil, fmt.Errorf("failed to select file: %w", err)
	}

	return &record, nil
}
