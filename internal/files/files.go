package files

import (
	"crypto/md5"
	"encoding/hex"
)

// UploadCandidate is one uploaded file as handed over by the transport layer.
type UploadCandidate struct {
	Name     string
	MimeType string
	// Hash is the raw MD5 digest of Data. It is stored encrypted as 16 bytes
	// so it fits a single RSA block even at the smallest modulus.
	Hash     []byte
	Data     []byte
	// Size is the full length of the upload. It can exceed len(Data) when
	// the transport stopped buffering an oversized file.
	Size int64
}

// NewUploadCandidate builds a candidate from fully buffered bytes.
func NewUploadCandidate(name, mimeType string, data []byte) UploadCandidate {
	return UploadCandidate{
		Name:     name,
		MimeType: mimeType,
		Hash:     ContentHash(data),
		Data:     data,
		Size:     int64(len(data)),
	}
}

// ContentHash returns the raw MD5 digest of data.
func ContentHash(data []byte) []byte {
	sum := md5.Sum(data)
	return sum[:]
}

// HashHex returns the candidate's digest in hex.
func (c UploadCandidate) HashHex() string {
	return hex.EncodeToString(c.Hash)
}

// EncryptedRecord is the persisted form of a file. Every byte slice is ciphertext.
type EncryptedRecord struct {
	ID      string
	Data    []byte
	Details RecordDetails
	Upload  UploadInfo
}

type RecordDetails struct {
	FileHash []byte
	MimeType []byte
	FileName []byte
}

// UploadInfo holds the creation time (epoch milliseconds) and the retention
// window. The retention window is recorded only; nothing enforces it.
type UploadInfo struct {
	Date          int64
	AvailableDays int
}

// DecryptedFile is a retrieved file. It is never persisted.
type DecryptedFile struct {
	Data     []byte `json:"fileData"`
	Name     string `json:"fileName"`
	MimeType string `json:"fileMimeType"`
}

// Attachment is a decrypted file together with the name it is served under.
type Attachment struct {
	DecryptedFile
	FileName string
}

// IngestResult is either a stored file (Key, ID, MetaData) or a per-file Error.
type IngestResult struct {
	Key      string       `json:"key,omitempty"`
	MetaData *MetaData    `json:"metaData,omitempty"`
	ID       string       `json:"id,omitempty"`
	Error    *ResultError `json:"error,omitempty"`
}

type MetaData struct {
	Name string `json:"name"`
}

type ResultError struct {
	Message string `json:"message"`
}

// RetrieveRequest names a stored file and the private key that opens it.
type RetrieveRequest struct {
	Key string
	ID  string
}
