package files

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pavel-fokin/files-vault/internal/fields"
	"github.com/pavel-fokin/files-vault/internal/keys"
)

const (
	DefaultMaxFileSize   int64 = 16 * 1024 * 1024
	DefaultRetentionDays       = 30
)

// KeyFactory creates and loads per-file key pairs.
type KeyFactory interface {
	Generate(bits int) (*keys.KeyPair, error)
	Load(material string) (*keys.KeyPair, error)
}

// FieldEncryptor encrypts and decrypts single attributes with a key pair.
type FieldEncryptor interface {
	Encrypt(kp *keys.KeyPair, plaintext []byte) ([]byte, error)
	Decrypt(kp *keys.KeyPair, ciphertext []byte) ([]byte, error)
	DecryptString(kp *keys.KeyPair, ciphertext []byte) (string, error)
}

type Options struct {
	MaxFileSize   int64
	RetentionDays int
	// Workers bounds how many files of one batch are processed at once.
	Workers int
}

// Service encrypts files on ingest and decrypts them on retrieval.
// It never holds on to a key after a call returns.
type Service struct {
	store         RecordStore
	keys          KeyFactory
	encryptor     FieldEncryptor
	maxFileSize   int64
	retentionDays int
	workers       int
	now           func() time.Time
}

// NewService creates a new file service
func NewService(store RecordStore, opts Options) *Service {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = DefaultRetentionDays
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	return &Service{
		store:         store,
		keys:          keys.Factory{},
		encryptor:     fields.Encryptor{},
		maxFileSize:   opts.MaxFileSize,
		retentionDays: opts.RetentionDays,
		workers:       opts.Workers,
		now:           time.Now,
	}
}

// Ingest encrypts and stores every non-empty candidate and returns one result
// per stored or rejected file, in input order.
//
// Oversized files and files whose fields do not fit the key are reported as
// per-file errors. Any other failure aborts the batch; records inserted
// before the failure stay stored.
func (s *Service) Ingest(ctx context.Context, candidates []UploadCandidate, bits int) ([]IngestResult, error) {
	if err := keys.ValidateBits(bits); err != nil {
		return nil, err
	}

	candidates = nonEmpty(candidates)
	results := make([]IngestResult, len(candidates))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range candidates {
		g.Go(func() error {
			result, err := s.ingestOne(ctx, &candidates[i], bits)
			if err != nil {
				return err
			}
			results[i] = *result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func (s *Service) ingestOne(ctx context.Context, c *UploadCandidate, bits int) (*IngestResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.Size > s.maxFileSize {
		slog.InfoContext(ctx, "Rejecting oversized file", "filename", c.Name, "size", c.Size, "max_size", s.maxFileSize)
		return failed(fmt.Sprintf("File '%s' size is larger than %dMB (%dB > %dB)", c.Name, s.maxFileSizeMB(), c.Size, s.maxFileSize)), nil
	}

	kp, err := s.keys.Generate(bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}

	record, err := s.encryptRecord(kp, c)
	if errors.Is(err, fields.ErrPlaintextTooLarge) {
		slog.InfoContext(ctx, "Rejecting file that does not fit the key", "filename", c.Name, "bits", bits, "error", err)
		return failed(fmt.Sprintf("File '%s' encoded size result is larger than %dMB.", c.Name, s.maxFileSizeMB())), nil
	}
	if err != nil {
		return nil, err
	}

	id, err := s.store.Insert(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to store encrypted file: %w", err)
	}
	slog.DebugContext(ctx, "Stored encrypted file", "id", id, "md5", c.HashHex(), "size", c.Size, "bits", bits)

	return &IngestResult{
		Key:      kp.Export(),
		MetaData: &MetaData{Name: c.Name},
		ID:       id,
	}, nil
}

func (s *Service) encryptRecord(kp *keys.KeyPair, c *UploadCandidate) (*EncryptedRecord, error) {
	data, err := s.encryptor.Encrypt(kp, c.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt file data: %w", err)
	}
	hash, err := s.encryptor.Encrypt(kp, c.Hash)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt file hash: %w", err)
	}
	mimeType, err := s.encryptor.Encrypt(kp, []byte(c.MimeType))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt mime type: %w", err)
	}
	name, err := s.encryptor.Encrypt(kp, []byte(c.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt file name: %w", err)
	}

	return &EncryptedRecord{
		Data: data,
		Details: RecordDetails{
			FileHash: hash,
			MimeType: mimeType,
			FileName: name,
		},
		Upload: UploadInfo{
			Date:          s.now().UnixMilli(),
			AvailableDays: s.retentionDays,
		},
	}, nil
}

// Retrieve decrypts the requested files in order. A missing record, a bad
// key or a failed decryption fails the whole call; there are no partial results.
func (s *Service) Retrieve(ctx context.Context, requests []RetrieveRequest) ([]DecryptedFile, error) {
	decrypted := make([]DecryptedFile, len(requests))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range requests {
		g.Go(func() error {
			file, err := s.retrieveOne(ctx, requests[i])
			if err != nil {
				return err
			}
			decrypted[i] = *file
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return decrypted, nil
}

func (s *Service) retrieveOne(ctx context.Context, req RetrieveRequest) (*DecryptedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record, err := s.store.FindByID(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("file %s: %w", req.ID, err)
	}

	kp, err := s.keys.Load(req.Key)
	if err != nil {
		return nil, fmt.Errorf("file %s: %w", req.ID, err)
	}

	data, err := s.encryptor.Decrypt(kp, record.Data)
	if err != nil {
		return nil, fmt.Errorf("file %s data: %w", req.ID, err)
	}
	name, err := s.encryptor.DecryptString(kp, record.Details.FileName)
	if err != nil {
		return nil, fmt.Errorf("file %s name: %w", req.ID, err)
	}
	mimeType, err := s.encryptor.DecryptString(kp, record.Details.MimeType)
	if err != nil {
		return nil, fmt.Errorf("file %s mime type: %w", req.ID, err)
	}

	return &DecryptedFile{Data: data, Name: name, MimeType: mimeType}, nil
}

// Download decrypts a single file and resolves the name it is served under.
func (s *Service) Download(ctx context.Context, req RetrieveRequest) (*Attachment, error) {
	decrypted, err := s.Retrieve(ctx, []RetrieveRequest{req})
	if err != nil {
		return nil, err
	}
	file := decrypted[0]

	name, err := AttachmentName(file.Name, file.MimeType)
	if err != nil {
		return nil, err
	}

	return &Attachment{DecryptedFile: file, FileName: name}, nil
}

func (s *Service) maxFileSizeMB() int64 {
	return s.maxFileSize / (1024 * 1024)
}

// nonEmpty drops candidates without content. They get no result entry.
func nonEmpty(candidates []UploadCandidate) []UploadCandidate {
	kept := make([]UploadCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Size > 0 && len(c.Data) > 0 {
			kept = append(kept, c)
		}
	}
	return kept
}

func failed(message string) *IngestResult {
	return &IngestResult{Error: &ResultError{Message: message}}
}
