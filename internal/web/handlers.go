package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
	"github.com/JonMunkholm/catalogimport/internal/history"
	"github.com/JonMunkholm/catalogimport/internal/ingest"
	"github.com/JonMunkholm/catalogimport/internal/logging"
)

// multipartOverhead is the body allowance above the file size limit for
// multipart boundaries and part headers.
const multipartOverhead = 1 << 20

// maxFormMemory is how much of a multipart form is held in memory; larger
// files spill to temp files.
const maxFormMemory = 10 << 20

// healthPingTimeout bounds the database ping in /healthz.
const healthPingTimeout = 2 * time.Second

var (
	errNoFile          = errors.New("no file provided")
	errHistoryDisabled = errors.New("conversion history is not configured")
)

// handleConvert converts an uploaded catalog file.
//
// The upload is stored under a random name in the upload directory, converted
// and removed again unless uploads are kept. The response is the Outcome:
// 200 for success or partial, 422 when nothing could be converted. Products
// are left out unless the query has include=products.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Convert.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || catalog.MapError(err).Code == "FILE002" {
			s.respondError(w, r, &catalog.FileError{Err: catalog.ErrFileTooLarge}, http.StatusRequestEntityTooLarge)
			return
		}
		s.respondError(w, r, fmt.Errorf("%w: %v", errNoFile, err), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, errNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > maxSize {
		s.respondError(w, r, &catalog.FileError{Path: header.Filename, Err: catalog.ErrFileTooLarge}, http.StatusRequestEntityTooLarge)
		return
	}

	if err := s.limiter.Acquire(r.Context()); err != nil {
		if errors.Is(err, ingest.ErrBusy) {
			w.Header().Set("Retry-After", "5")
		}
		s.respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}
	defer s.limiter.Release()

	path, err := s.saveUpload(file, header)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("save upload: %w", err), http.StatusInternalServerError)
		return
	}
	if !s.cfg.Convert.KeepUploads {
		defer func() {
			if err := os.Remove(path); err != nil {
				logging.FromContext(r.Context()).Warn("failed to remove upload", "path", path, "error", err)
			}
		}()
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Convert.Timeout)
	defer cancel()

	out := s.service.Convert(ctx, ingest.Request{
		Path:       path,
		OutputDir:  s.cfg.Convert.OutputDir,
		SourceName: header.Filename,
	})

	if r.URL.Query().Get("include") != "products" {
		out.Products = nil
	}

	status := http.StatusOK
	if out.Status == ingest.StatusError {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, out)
}

// saveUpload copies the uploaded file to the upload directory under a random
// name that keeps the original extension, which selects the reader.
func (s *Server) saveUpload(file multipart.File, header *multipart.FileHeader) (string, error) {
	dir := s.cfg.Convert.UploadDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	path := filepath.Join(dir, uuid.NewString()+ext)

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// conversionList is the response of GET /api/conversions.
type conversionList struct {
	Runs  []history.Run `json:"runs"`
	Count int           `json:"count"`
}

// handleListConversions returns recent conversion runs, newest first.
func (s *Server) handleListConversions(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondError(w, r, errHistoryDisabled, http.StatusServiceUnavailable)
		return
	}

	limit := parseIntParam(r, "limit", history.DefaultListLimit)
	runs, err := s.history.List(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, conversionList{Runs: runs, Count: len(runs)})
}

// handleGetConversion returns one conversion run.
func (s *Server) handleGetConversion(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondError(w, r, errHistoryDisabled, http.StatusServiceUnavailable)
		return
	}

	run, err := s.history.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, history.ErrNotFound) {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// healthResponse is the body of GET /healthz.
type healthResponse struct {
	Status      string               `json:"status"`
	Database    string               `json:"database"`
	Conversions ingest.LimiterStatus `json:"conversions"`
}

// handleHealth reports liveness, database reachability and conversion slots.
// An unreachable database makes the server unhealthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:      "ok",
		Database:    "disabled",
		Conversions: s.limiter.Status(),
	}
	status := http.StatusOK

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()

		resp.Database = "ok"
		if err := s.db.Ping(ctx); err != nil {
			logging.FromContext(r.Context()).Warn("health check: database unreachable", "error", err)
			resp.Status = "unavailable"
			resp.Database = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, resp)
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
