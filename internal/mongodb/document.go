package mongodb

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavel-fokin/files-vault/internal/files"
)

// Document is the stored layout of an encrypted record:
//
//	{_id, data, details: {fileHash, mimeType, fileName}, upload: {date, availableDays}}
type Document struct {
	ID      primitive.ObjectID `bson:"_id,omitempty"`
	Data    []byte             `bson:"data"`
	Details DetailsDocument    `bson:"details"`
	Upload  UploadDocument     `bson:"upload"`
}

type DetailsDocument struct {
	FileHash []byte `bson:"fileHash"`
	MimeType []byte `bson:"mimeType"`
	FileName []byte `bson:"fileName"`
}

type UploadDocument struct {
	Date          int64 `bson:"date"`
	AvailableDays int   `bson:"availableDays"`
}

// NewDocument converts a record into its stored layout under the given id.
func NewDocument(id primitive.ObjectID, record *files.EncryptedRecord) *Document {
	return &Document{
		ID:   id,
		Data: record.Data,
		Details: DetailsDocument{
			FileHash: record.Details.FileHash,
			MimeType: record.Details.MimeType,
			FileName: record.Details.FileName,
		},
		Upload: UploadDocument{
			Date:          record.Upload.Date,
			AvailableDays: record.Upload.AvailableDays,
		},
	}
}

// Record converts the stored layout back into a record.
func (d *Document) Record() *files.EncryptedRecord {
	return &files.EncryptedRecord{
		ID:   d.ID.Hex(),
		Data: d.Data,
		Details: files.RecordDetails{
			FileHash: d.Details.FileHash,
			MimeType: d.Details.MimeType,
			FileName: d.Details.FileName,
		},
		Upload: files.UploadInfo{
			Date:          d.Upload.Date,
			AvailableDays: d.Upload.AvailableDays,
		},
	}
}
