// Package upload stores project files: it writes the object, records the
// path in the PathRecord store, and invalidates the cached listing.
package upload

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/novacode/novacode/internal/metadata/postgres"
	"github.com/novacode/novacode/internal/metrics"
	"github.com/novacode/novacode/internal/storage"
	"github.com/novacode/novacode/pkg/logging"
	"github.com/novacode/novacode/pkg/protocol"
	"github.com/novacode/novacode/pkg/resolver"
)

var (
	// ErrInvalidInput wraps validation failures of names and paths.
	ErrInvalidInput = errors.New("invalid input")
	// ErrTooLarge is returned when a body exceeds the upload limit.
	ErrTooLarge = errors.New("file too large")
	// ErrProjectNotFound is returned when uploading into an unknown project.
	ErrProjectNotFound = errors.New("project not found")
	// ErrFileNotFound is returned when deleting a path the project lacks.
	ErrFileNotFound = errors.New("file not found")
)

// ProjectStore records projects and their file paths.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *postgres.Project) error
	GetProject(ctx context.Context, id string) (*postgres.Project, error)
	UpsertFile(ctx context.Context, f *postgres.FileRow) error
	GetFile(ctx context.Context, projectID, path string) (*postgres.FileRow, error)
	DeleteFile(ctx context.Context, projectID, path string) error
}

// Invalidator drops cached listings.
type Invalidator interface {
	Invalidate(projectID string)
}

// Service is the upload pipeline. Store may be nil, in which case projects
// exist only as key prefixes in object storage.
type Service struct {
	backend  storage.Backend
	store    ProjectStore
	listings Invalidator
	maxSize  int64
	newID    func() string
}

// New creates an upload service.
func New(backend storage.Backend, store ProjectStore, listings Invalidator, maxSize int64) *Service {
	return &Service{
		backend:  backend,
		store:    store,
		listings: listings,
		maxSize:  maxSize,
		newID:    uuid.NewString,
	}
}

// CreateProjectInput is a new project and its optional first file.
type CreateProjectInput struct {
	Name         string
	Description  string
	Organization string
	FileName     string
	Body         io.Reader
}

// Validate checks the project fields.
func (in CreateProjectInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Description, validation.Length(0, 2000)),
		validation.Field(&in.Organization, validation.Length(0, 200)),
		validation.Field(&in.FileName, validation.By(pathRule)),
	)
}

// ValidatePath checks a project-relative file path: slash separated, valid
// UTF-8, no backslashes, and no empty, "." or ".." segments.
func ValidatePath(path string) error {
	if err := validation.Validate(path, validation.Required, validation.By(pathRule)); err != nil {
		return fmt.Errorf("%w: path %q: %v", ErrInvalidInput, path, err)
	}
	return nil
}

func pathRule(value any) error {
	p, _ := value.(string)
	if p == "" {
		return nil
	}
	if !utf8.ValidString(p) {
		return errors.New("must be valid UTF-8")
	}
	if strings.Contains(p, "\\") {
		return errors.New("must use / as separator")
	}
	for _, seg := range strings.Split(strings.TrimPrefix(p, "/"), "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("invalid segment %q", seg)
		}
	}
	return nil
}

// CreateProject registers a project and stores its first file when one is
// given, under {projectID}/{fileName}.
func (s *Service) CreateProject(ctx context.Context, in CreateProjectInput) (*protocol.CreateProjectResponse, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	p := &postgres.Project{
		ID:           s.newID(),
		Name:         in.Name,
		Description:  in.Description,
		Organization: in.Organization,
	}
	if s.store != nil {
		if err := s.store.CreateProject(ctx, p); err != nil {
			return nil, fmt.Errorf("create project: %w", err)
		}
	}
	logging.Info("project created", logging.Project(p.ID), logging.String("name", p.Name))

	resp := &protocol.CreateProjectResponse{
		Message:   "Project created successfully",
		ProjectID: p.ID,
	}
	if in.FileName == "" || in.Body == nil {
		return resp, nil
	}

	up, err := s.put(ctx, p.ID, in.FileName, in.Body)
	if err != nil {
		return nil, err
	}
	resp.Message = "File uploaded successfully"
	resp.Path = storage.ObjectKey(p.ID, up.Path)
	resp.URL = resolver.Resolve(p.ID, up.Path).Request.URL("")
	return resp, nil
}

// PutFile stores one file of an existing project, replacing any previous
// content at the same path.
func (s *Service) PutFile(ctx context.Context, projectID, path string, body io.Reader) (*protocol.UploadResponse, error) {
	if err := validation.Validate(projectID, validation.Required, validation.By(pathSegment)); err != nil {
		return nil, fmt.Errorf("%w: project id: %v", ErrInvalidInput, err)
	}
	if s.store != nil {
		if _, err := s.store.GetProject(ctx, projectID); err != nil {
			if errors.Is(err, postgres.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
			}
			return nil, err
		}
	}
	return s.put(ctx, projectID, path, body)
}

// DeleteFile removes one file of a project: its object, its path record,
// and the cached listing.
func (s *Service) DeleteFile(ctx context.Context, projectID, path string) error {
	if err := validation.Validate(projectID, validation.Required, validation.By(pathSegment)); err != nil {
		return fmt.Errorf("%w: project id: %v", ErrInvalidInput, err)
	}
	if err := ValidatePath(path); err != nil {
		return err
	}
	path = strings.TrimPrefix(path, "/")
	key := storage.ObjectKey(projectID, path)

	if s.store != nil {
		row, err := s.store.GetFile(ctx, projectID, path)
		if errors.Is(err, postgres.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		if err != nil {
			return err
		}
		if row.ObjectKey != "" {
			key = row.ObjectKey
		}
	} else {
		ok, err := s.backend.ObjectExists(ctx, key)
		if err != nil {
			return fmt.Errorf("check %s: %w", key, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
	}

	start := time.Now()
	err := s.backend.DeleteObject(ctx, key)
	metrics.RecordStorageOperation(s.backend.Type(), "delete", time.Since(start), err == nil)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	// A concurrent delete may have removed the row already.
	if s.store != nil {
		if err := s.store.DeleteFile(ctx, projectID, path); err != nil && !errors.Is(err, postgres.ErrNotFound) {
			return fmt.Errorf("forget %s: %w", key, err)
		}
	}
	if s.listings != nil {
		s.listings.Invalidate(projectID)
	}

	logging.Info("file deleted", logging.Project(projectID), logging.Path(path))
	return nil
}

func pathSegment(value any) error {
	s, _ := value.(string)
	if strings.ContainsAny(s, "/\\") || s == "." || s == ".." {
		return errors.New("must be a single path segment")
	}
	return nil
}

func (s *Service) put(ctx context.Context, projectID, path string, body io.Reader) (*protocol.UploadResponse, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	path = strings.TrimPrefix(path, "/")

	data, err := io.ReadAll(io.LimitReader(body, s.maxSize+1))
	if err != nil {
		metrics.RecordContentUpload(0, false)
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		metrics.RecordContentUpload(0, false)
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, s.maxSize)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	key := storage.ObjectKey(projectID, path)

	start := time.Now()
	err = s.backend.PutObject(ctx, key, bytes.NewReader(data), int64(len(data)))
	metrics.RecordStorageOperation(s.backend.Type(), "put", time.Since(start), err == nil)
	if err != nil {
		metrics.RecordContentUpload(0, false)
		return nil, fmt.Errorf("store %s: %w", key, err)
	}

	if s.store != nil {
		row := &postgres.FileRow{
			ProjectID: projectID,
			Path:      path,
			Size:      int64(len(data)),
			Hash:      hash,
			ObjectKey: key,
		}
		if err := s.store.UpsertFile(ctx, row); err != nil {
			metrics.RecordContentUpload(0, false)
			return nil, fmt.Errorf("record %s: %w", key, err)
		}
	}
	if s.listings != nil {
		s.listings.Invalidate(projectID)
	}

	metrics.RecordContentUpload(int64(len(data)), true)
	logging.Info("file uploaded", logging.Project(projectID), logging.Path(path), logging.Size(int64(len(data))))

	return &protocol.UploadResponse{
		ProjectID: projectID,
		Path:      path,
		Size:      int64(len(data)),
		Hash:      hash,
	}, nil
}
