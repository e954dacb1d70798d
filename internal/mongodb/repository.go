// Package mongodb stores encrypted records in a MongoDB collection.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pavel-fokin/files-vault/internal/files"
)

const (
	DefaultDatabase = "files-vault"
	Collection      = "files"

	disconnectTimeout = 10 * time.Second
)

// Repository implements files.RecordStore on a MongoDB collection.
type Repository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewRepository connects to uri. The database is taken from the URI path.
func NewRepository(ctx context.Context, uri string) (*Repository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Repository{
		client:     client,
		collection: client.Database(databaseName(uri)).Collection(Collection),
	}, nil
}

func databaseName(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return DefaultDatabase
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return DefaultDatabase
}

// Close disconnects the client, waiting at most ten seconds.
func (r *Repository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	return r.client.Disconnect(ctx)
}

// Insert stores the record as a new document under a fresh ObjectID.
func (r *Repository) Insert(ctx context.Context, record *files.EncryptedRecord) (string, error) {
	id := primitive.NewObjectID()
	if _, err := r.collection.InsertOne(ctx, NewDocument(id, record)); err != nil {
		return "", fmt.Errorf("failed to insert file document: %w", err)
	}
	return id.Hex(), nil
}

// FindByID loads a document by its hex ObjectID.
func (r *Repository) FindByID(ctx context.Context, id string) (*files.EncryptedRecord, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, files.ErrNotFound
	}

	var doc Document
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, files.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find file document: %w", err)
	}

	return doc.Record(), nil
}
