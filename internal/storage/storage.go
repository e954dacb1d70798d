// Package storage opens the record store named by a connection URI.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/pavel-fokin/files-vault/internal/files"
	"github.com/pavel-fokin/files-vault/internal/fs"
	"github.com/pavel-fokin/files-vault/internal/mongodb"
	"github.com/pavel-fokin/files-vault/internal/postgres"
	"github.com/pavel-fokin/files-vault/internal/sqlite"
)

const DefaultURI = "sqlite://files-vault.db"

// Open picks a backend from the URI scheme:
//
//	mongodb://, mongodb+srv://   MongoDB collection
//	postgres://, postgresql://   PostgreSQL table
//	sqlite://<path>              SQLite database file
//	file://<dir>                 one BSON file per record in <dir>
func Open(ctx context.Context, uri string) (files.RecordStore, error) {
	scheme, rest, found := strings.Cut(uri, "://")
	if !found {
		return nil, fmt.Errorf("store uri %q has no scheme", uri)
	}

	var (
		store files.RecordStore
		err   error
	)
	switch strings.ToLower(scheme) {
	case "mongodb", "mongodb+srv":
		store, err = asStore(mongodb.NewRepository(ctx, uri))
	case "postgres", "postgresql":
		store, err = asStore(postgres.NewRepository(ctx, uri))
	case "sqlite":
		if rest == "" {
			return nil, fmt.Errorf("store uri %q has no database path", uri)
		}
		store, err = asStore(sqlite.NewRepository(rest))
	case "file":
		if rest == "" {
			return nil, fmt.Errorf("store uri %q has no directory", uri)
		}
		store, err = asStore(fs.NewStorage(rest))
	default:
		return nil, fmt.Errorf("unsupported store scheme %q", scheme)
	}
	if err != nil {
		return nil, err
	}

	return store, nil
}

// asStore keeps a failed constructor's typed nil pointer out of the interface.
func asStore(s files.RecordStore, err error) (files.RecordStore, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
