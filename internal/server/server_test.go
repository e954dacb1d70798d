package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavel-fokin/files-vault/internal/fields"
	"github.com/pavel-fokin/files-vault/internal/files"
	"github.com/pavel-fokin/files-vault/internal/keys"
)

func TestHealthz(t *testing.T) {
	req, err := http.NewRequest("GET", "/healthz", nil)
	assert.NoError(t, err)

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(healthz)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLimitBodyMiddleware(t *testing.T) {
	cfg := &Config{MaxRequestSize: 10}
	handler := limitBody(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("body within limit", func(t *testing.T) {
		req, err := http.NewRequest("POST", "/", strings.NewReader("123456789"))
		assert.NoError(t, err)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("body exceeds limit", func(t *testing.T) {
		req, err := http.NewRequest("POST", "/", strings.NewReader("12345678901"))
		assert.NoError(t, err)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
		assert.Contains(t, rr.Body.String(), codeRequestTooLarge)
	})

	t.Run("unknown length body exceeds limit", func(t *testing.T) {
		req, err := http.NewRequest("POST", "/", strings.NewReader("12345678901"))
		assert.NoError(t, err)
		req.ContentLength = -1
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	})

	t.Run("no body", func(t *testing.T) {
		req, err := http.NewRequest("GET", "/", nil)
		assert.NoError(t, err)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := requestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFrom(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
		assert.Len(t, seen, 36)
		assert.Equal(t, seen, rr.Header().Get(requestIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(requestIDHeader, "abc-123")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rr.Header().Get(requestIDHeader))
	})
}

func TestCORSMiddleware(t *testing.T) {
	called := false
	handler := withCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("preflight", func(t *testing.T) {
		called = false
		req := httptest.NewRequest("OPTIONS", "/rest/download", nil)
		req.Header.Set("Origin", "https://example.com")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "POST")
	})

	t.Run("simple request", func(t *testing.T) {
		called = false
		req := httptest.NewRequest("POST", "/rest/download", nil)
		req.Header.Set("Origin", "https://example.com")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.True(t, called)
		assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rr.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
	})
}

func TestSecurityHeaders(t *testing.T) {
	handler := securityHeaders(http.HandlerFunc(healthz))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/healthz", nil))

	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", rr.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rr.Header().Get("Strict-Transport-Security"))
}

func TestLoggingMiddlewareCapturesStatus(t *testing.T) {
	var wrapped *responseWriter
	handler := loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped = w.(*responseWriter)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, http.StatusTeapot, wrapped.statusCode)
	assert.Equal(t, int64(len("short and stout")), wrapped.written)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode int
		internalCode string
	}{
		{"validation", fmt.Errorf("%w: files is required", ErrValidation), http.StatusBadRequest, codeValidationFailed},
		{"too large", ErrRequestTooLarge, http.StatusRequestEntityTooLarge, codeRequestTooLarge},
		{"max bytes", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge, codeRequestTooLarge},
		{"not found", fmt.Errorf("file abc: %w", files.ErrNotFound), http.StatusNotFound, codeNotFound},
		{"malformed key", fmt.Errorf("file abc: %w", keys.ErrMalformedKey), http.StatusBadRequest, codeMalformedKey},
		{"decryption", fmt.Errorf("file abc data: %w", fields.ErrDecryption), http.StatusBadRequest, codeDecryptionFailed},
		{"unknown mime type", files.ErrUnknownMimeType, http.StatusUnprocessableEntity, codeUnknownMimeType},
		{"invalid modulus", keys.ErrInvalidModulus, http.StatusInternalServerError, ""},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := classify(tt.err)
			assert.Equal(t, tt.expectedCode, status)
			assert.Equal(t, tt.internalCode, code)
		})
	}
}

func TestWriteError(t *testing.T) {
	err := fmt.Errorf("file 0123456789abcdef01234567: %w", files.ErrNotFound)

	t.Run("development includes the error chain", func(t *testing.T) {
		rr := httptest.NewRecorder()
		writeError(rr, httptest.NewRequest("POST", "/", nil), &Config{Environment: "development"}, err)

		var body errorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, 0, body.Code)
		assert.Equal(t, err.Error(), body.Error.Message)
		assert.Equal(t, codeNotFound, body.Error.InternalCode)
		assert.Contains(t, body.Error.Stack, "not found")
		assert.Len(t, strings.Split(body.Error.Stack, "\n"), 2)
	})

	t.Run("production hides the stack", func(t *testing.T) {
		rr := httptest.NewRecorder()
		writeError(rr, httptest.NewRequest("POST", "/", nil), &Config{Environment: "production"}, err)

		assert.NotContains(t, rr.Body.String(), "stack")
		assert.Contains(t, rr.Body.String(), `"internalCode":"NOT_FOUND"`)
	})

	t.Run("internal errors carry no code", func(t *testing.T) {
		rr := httptest.NewRecorder()
		writeError(rr, httptest.NewRequest("POST", "/", nil), &Config{}, errors.New("boom"))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "internalCode")
		assert.Contains(t, rr.Body.String(), `"message":"boom"`)
	})
}

func TestDecodeRetrieveFiles(t *testing.T) {
	v := newRequestValidator()
	validID := "0123456789abcdef01234567"

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "valid", body: fmt.Sprintf(`{"files":[{"key":" k ","id":%q}]}`, validID)},
		{name: "missing files", body: `{}`, wantErr: "files"},
		{name: "empty files", body: `{"files":[]}`, wantErr: "at least 1"},
		{name: "blank key", body: fmt.Sprintf(`{"files":[{"key":"   ","id":%q}]}`, validID), wantErr: "files[0].key"},
		{name: "short id", body: `{"files":[{"key":"k","id":"abc"}]}`, wantErr: "files[0].id"},
		{name: "non hex id", body: `{"files":[{"key":"k","id":"zzzzzzzzzzzzzzzzzzzzzzzz"}]}`, wantErr: "hexadecimal"},
		{name: "0x prefixed id", body: `{"files":[{"key":"k","id":"0x0123456789abcdef012345"}]}`, wantErr: "files[0].id"},
		{name: "0X prefixed id", body: `{"files":[{"key":"k","id":"0X0123456789ABCDEF012345"}]}`, wantErr: "files[0].id"},
		{name: "25 hex chars", body: `{"files":[{"key":"k","id":"0123456789abcdef012345678"}]}`, wantErr: "files[0].id"},
		{name: "malformed json", body: `{"files":`, wantErr: "malformed JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/rest/retrieveFile", strings.NewReader(tt.body))
			requests, err := decodeRetrieveFiles(req, v)
			if tt.wantErr == "" {
				require.NoError(t, err)
				require.Len(t, requests, 1)
				assert.Equal(t, "k", requests[0].Key)
				assert.Equal(t, validID, requests[0].ID)
				return
			}
			assert.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDecodeDownloadFile(t *testing.T) {
	v := newRequestValidator()

	req := httptest.NewRequest("POST", "/rest/download", strings.NewReader(`{"file":{"key":"k","id":"0123456789abcdef01234567"}}`))
	got, err := decodeDownloadFile(req, v)
	require.NoError(t, err)
	assert.Equal(t, files.RetrieveRequest{Key: "k", ID: "0123456789abcdef01234567"}, got)

	req = httptest.NewRequest("POST", "/rest/download", strings.NewReader(`{}`))
	_, err = decodeDownloadFile(req, v)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "file")
}

func TestReadUploadCandidates(t *testing.T) {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	require.NoError(t, writer.WriteField("comment", "not a file"))
	part, err := writer.CreateFormFile("files", "a.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("first"))
	require.NoError(t, err)
	part, err = writer.CreateFormFile("other", "b.bin")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 second"))
	require.NoError(t, err)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="files"; filename="big.txt"`)
	header.Set("Content-Type", "text/plain")
	part, err = writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("x"), 20))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/operate/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	candidates, err := readUploadCandidates(req, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	assert.Equal(t, "a.txt", candidates[0].Name)
	assert.Equal(t, []byte("first"), candidates[0].Data)
	assert.Equal(t, files.ContentHash([]byte("first")), candidates[0].Hash)

	assert.Equal(t, "b.bin", candidates[1].Name)
	assert.Equal(t, "application/pdf", candidates[1].MimeType)

	assert.Equal(t, "big.txt", candidates[2].Name)
	assert.Equal(t, "text/plain", candidates[2].MimeType)
	assert.Equal(t, int64(20), candidates[2].Size)
	assert.Len(t, candidates[2].Data, 11)
}

func TestReadUploadCandidatesRejects(t *testing.T) {
	t.Run("no file parts", func(t *testing.T) {
		body := new(bytes.Buffer)
		writer := multipart.NewWriter(body)
		require.NoError(t, writer.WriteField("comment", "nothing here"))
		require.NoError(t, writer.Close())

		req := httptest.NewRequest("POST", "/operate/upload", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())

		_, err := readUploadCandidates(req, 10)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/operate/upload", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")

		_, err := readUploadCandidates(req, 10)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestContentDisposition(t *testing.T) {
	assert.Equal(t, `attachment; filename="file.pdf"`, contentDisposition("file.pdf"))
	assert.Equal(t, `attachment; filename="a \"b\".txt"`, contentDisposition(`a "b".txt`))
	assert.Equal(t, `attachment; filename="résumé.txt"; filename*=UTF-8''r%C3%A9sum%C3%A9.txt`, contentDisposition("résumé.txt"))
}
