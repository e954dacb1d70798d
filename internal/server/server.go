package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pavel-fokin/files-vault/internal/files"
)

type uploadResponse struct {
	Code  int                  `json:"code"`
	Files []files.IngestResult `json:"files"`
}

type retrieveResponse struct {
	Code int `json:"code"`
	// Files is a single DecryptedFile for a one-element request, a slice otherwise.
	Files any `json:"files"`
}

// New builds the HTTP server with all routes and middleware.
func New(cfg *Config, fileService *files.Service) *http.Server {
	v := newRequestValidator()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthz)
	mux.HandleFunc("POST /operate/upload", uploadFiles(cfg, fileService))
	mux.HandleFunc("POST /rest/retrieveFile", retrieveFiles(cfg, fileService, v))
	mux.HandleFunc("POST /rest/download", downloadFile(cfg, fileService, v))

	handler := requestID(loggingMiddleware(securityHeaders(withCORS(limitBody(cfg, mux)))))

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func uploadFiles(cfg *Config, fileService *files.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		candidates, err := readUploadCandidates(r, cfg.MaxFileSize)
		if err != nil {
			writeError(w, r, cfg, err)
			return
		}

		// A started ingest runs to completion even if the client goes away.
		results, err := fileService.Ingest(context.WithoutCancel(r.Context()), candidates, cfg.RSAKeyBits)
		if err != nil {
			writeError(w, r, cfg, err)
			return
		}

		slog.InfoContext(r.Context(), "Files uploaded",
			"request_id", requestIDFrom(r.Context()),
			"received", len(candidates),
			"results", len(results),
		)
		writeJSON(w, http.StatusOK, uploadResponse{Code: 1, Files: results})
	}
}

func retrieveFiles(cfg *Config, fileService *files.Service, v *requestValidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requests, err := decodeRetrieveFiles(r, v)
		if err != nil {
			writeError(w, r, cfg, err)
			return
		}

		decrypted, err := fileService.Retrieve(r.Context(), requests)
		if err != nil {
			writeError(w, r, cfg, err)
			return
		}

		var payload any = decrypted
		if len(decrypted) == 1 {
			payload = decrypted[0]
		}
		writeJSON(w, http.StatusOK, retrieveResponse{Code: 1, Files: payload})
	}
}

func downloadFile(cfg *Config, fileService *files.Service, v *requestValidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeDownloadFile(r, v)
		if err != nil {
			writeError(w, r, cfg, err)
			return
		}

		attachment, err := fileService.Download(r.Context(), req)
		if err != nil {
			writeError(w, r, cfg, err)
			return
		}

		w.Header().Set("Content-Type", attachment.MimeType)
		w.Header().Set("Content-Disposition", contentDisposition(attachment.FileName))
		w.Header().Set("Content-Length", strconv.Itoa(len(attachment.Data)))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(attachment.Data); err != nil {
			slog.ErrorContext(r.Context(), "Failed to write attachment",
				"error", err,
				"request_id", requestIDFrom(r.Context()),
			)
		}
	}
}

// contentDisposition quotes the name for the plain filename parameter and adds
// an RFC 5987 filename* parameter when the name is not ASCII.
func contentDisposition(name string) string {
	quoted := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r", "", "\n", "").Replace(name)
	value := fmt.Sprintf(`attachment; filename="%s"`, quoted)
	for i := 0; i < len(name); i++ {
		if name[i] >= 0x80 {
			return value + "; filename*=UTF-8''" + url.PathEscape(name)
		}
	}
	return value
}
