package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/pavel-fokin/files-vault/internal/files"
)

const octetStream = "application/octet-stream"

// readUploadCandidates walks the multipart body in submission order and turns
// every file part into a candidate, whatever field it was sent under.
// Non-file parts are skipped. A part larger than maxFileSize is buffered only
// up to maxFileSize+1 bytes; the rest is counted so Size stays exact.
func readUploadCandidates(r *http.Request, maxFileSize int64) ([]files.UploadCandidate, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: expected a multipart/form-data body: %v", ErrValidation, err)
	}

	var candidates []files.UploadCandidate
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, bodyError(err)
		}

		if part.FileName() == "" {
			part.Close()
			continue
		}

		candidate, err := readFilePart(part, maxFileSize)
		part.Close()
		if err != nil {
			return nil, bodyError(err)
		}
		candidates = append(candidates, candidate)
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no files were uploaded", ErrValidation)
	}

	return candidates, nil
}

func readFilePart(part *multipart.Part, maxFileSize int64) (files.UploadCandidate, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFileSize+1))
	if err != nil {
		return files.UploadCandidate{}, err
	}

	size := int64(len(data))
	if size > maxFileSize {
		rest, err := io.Copy(io.Discard, part)
		if err != nil {
			return files.UploadCandidate{}, err
		}
		size += rest
	}

	mimeType := part.Header.Get("Content-Type")
	if (mimeType == "" || mimeType == octetStream) && len(data) > 0 {
		mimeType = files.DetectMimeType(data)
	}

	candidate := files.NewUploadCandidate(part.FileName(), mimeType, data)
	candidate.Size = size
	return candidate, nil
}

// bodyError keeps size-limit errors intact and reports anything else as a malformed body.
func bodyError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return err
	}
	return fmt.Errorf("%w: malformed multipart body: %v", ErrValidation, err)
}
