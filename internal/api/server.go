// Package api provides the HTTP server and handlers for project upload,
// listing, and content.
package api

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/cors"

	"github.com/novacode/novacode/internal/auth"
	"github.com/novacode/novacode/internal/metrics"
	"github.com/novacode/novacode/internal/storage"
	"github.com/novacode/novacode/internal/upload"
	"github.com/novacode/novacode/pkg/logging"
	"github.com/novacode/novacode/pkg/protocol"
	"github.com/novacode/novacode/pkg/tree"
)

// ListingService serves project listings.
type ListingService interface {
	Listing(ctx context.Context, projectID string, format protocol.ListingFormat) (*protocol.Listing, error)
}

// Uploader stores project files.
type Uploader interface {
	CreateProject(ctx context.Context, in upload.CreateProjectInput) (*protocol.CreateProjectResponse, error)
	PutFile(ctx context.Context, projectID, path string, body io.Reader) (*protocol.UploadResponse, error)
	DeleteFile(ctx context.Context, projectID, path string) error
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Server. Auth and DB may be nil.
type Options struct {
	Listings      ListingService
	Uploads       Uploader
	Backend       storage.Backend
	Auth          *auth.Auth
	DB            Pinger
	CORSOrigins   []string
	MaxUploadSize int64
	Version       string
}

// Server is the HTTP API server.
type Server struct {
	listings    ListingService
	uploads     Uploader
	backend     storage.Backend
	auth        *auth.Auth
	db          Pinger
	corsOrigins []string
	maxUpload   int64
	version     string
}

// NewServer creates a new server.
func NewServer(opts Options) *Server {
	return &Server{
		listings:    opts.Listings,
		uploads:     opts.Uploads,
		backend:     opts.Backend,
		auth:        opts.Auth,
		db:          opts.DB,
		corsOrigins: opts.CORSOrigins,
		maxUpload:   opts.MaxUploadSize,
		version:     opts.Version,
	}
}

// Handler returns the HTTP handler with CORS, logging, metrics, and, when
// configured, auth middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.Handle("POST /api/v1/projects", s.protect(s.handleCreateProject))
	mux.Handle("PUT /api/v1/projects/{id}/files/{path...}", s.protect(s.handlePutFile))
	mux.Handle("DELETE /api/v1/projects/{id}/files/{path...}", s.protect(s.handleDeleteFile))
	mux.Handle("GET /api/v1/projects/{id}/listing", s.protect(s.handleListing))
	mux.Handle("GET /api/v1/projects/{id}/content/{path...}", s.protect(s.handleContent))

	c := cors.New(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	})
	return c.Handler(logging.Middleware(metrics.Middleware(mux)))
}

func (s *Server) protect(h http.HandlerFunc) http.Handler {
	if s.auth == nil {
		return h
	}
	return s.auth.Middleware(h)
}

type gzipResponseWriter struct {
	http.ResponseWriter
	gw *gzip.Writer
}

func (g *gzipResponseWriter) Write(data []byte) (int, error) {
	return g.gw.Write(data)
}

func acceptsGzip(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}

func (s *Server) sendJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	if r != nil && acceptsGzip(r) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		w.WriteHeader(code)
		gw := gzip.NewWriter(w)
		defer gw.Close()
		json.NewEncoder(&gzipResponseWriter{ResponseWriter: w, gw: gw}).Encode(v)
		return
	}
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(protocol.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := protocol.HealthResponse{Status: "ok", Version: s.version}
	code := http.StatusOK
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			logging.WithContext(r.Context()).Warn("database ping failed", logging.Err(err))
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	s.sendJSON(w, nil, code, resp)
}

func (s *Server) handleListing(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	format, err := protocol.ParseListingFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	l, err := s.listings.Listing(r.Context(), projectID, format)
	if err != nil {
		log := logging.WithContext(r.Context())
		if errors.Is(err, tree.ErrMalformedListing) {
			log.Error("stored layout is malformed", logging.Project(projectID), logging.Err(err))
			s.sendError(w, http.StatusInternalServerError, "stored project layout is malformed")
			return
		}
		log.Error("listing failed", logging.Project(projectID), logging.Err(err))
		s.sendError(w, http.StatusInternalServerError, "listing unavailable")
		return
	}

	s.sendJSON(w, r, http.StatusOK, l)
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	path := r.PathValue("path")
	if err := upload.ValidatePath(path); err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := storage.ObjectKey(projectID, path)
	start := time.Now()
	reader, size, err := s.backend.GetObject(r.Context(), key)
	metrics.RecordStorageOperation(s.backend.Type(), "get", time.Since(start), err == nil || errors.Is(err, storage.ErrNotFound))
	if err != nil {
		metrics.RecordContentDownload(0, false)
		if errors.Is(err, storage.ErrNotFound) {
			s.sendError(w, http.StatusNotFound, "File not found")
			return
		}
		logging.WithContext(r.Context()).Error("content fetch failed", logging.Key(key), logging.Err(err))
		s.sendError(w, http.StatusInternalServerError, "content unavailable")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)
	n, err := io.Copy(w, reader)
	metrics.RecordContentDownload(n, err == nil)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+1<<20)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.sendError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		s.sendError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	in := upload.CreateProjectInput{
		Name:         r.FormValue("name"),
		Description:  r.FormValue("description"),
		Organization: r.FormValue("organization"),
	}
	file, hdr, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		in.FileName = hdr.Filename
		in.Body = file
	case !errors.Is(err, http.ErrMissingFile):
		s.sendError(w, http.StatusBadRequest, "invalid file part")
		return
	}

	resp, err := s.uploads.CreateProject(r.Context(), in)
	if err != nil {
		s.sendUploadError(w, r, err)
		return
	}
	s.sendJSON(w, nil, http.StatusCreated, resp)
}

func (s *Server) handlePutFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+1)
	resp, err := s.uploads.PutFile(r.Context(), r.PathValue("id"), r.PathValue("path"), r.Body)
	if err != nil {
		s.sendUploadError(w, r, err)
		return
	}
	s.sendJSON(w, nil, http.StatusCreated, resp)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := s.uploads.DeleteFile(r.Context(), r.PathValue("id"), r.PathValue("path")); err != nil {
		s.sendUploadError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sendUploadError(w http.ResponseWriter, r *http.Request, err error) {
	var mbe *http.MaxBytesError
	switch {
	case errors.Is(err, upload.ErrInvalidInput):
		s.sendError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, upload.ErrTooLarge), errors.As(err, &mbe):
		s.sendError(w, http.StatusRequestEntityTooLarge, "file too large")
	case errors.Is(err, upload.ErrProjectNotFound):
		s.sendError(w, http.StatusNotFound, "project not found")
	case errors.Is(err, upload.ErrFileNotFound):
		s.sendError(w, http.StatusNotFound, "File not found")
	default:
		logging.WithContext(r.Context()).Error("upload failed", logging.Err(err))
		s.sendError(w, http.StatusInternalServerError, "upload failed")
	}
}
