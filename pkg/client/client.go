// Package client provides the HTTP client the explorer and upload tool use
// to talk to the project server, with retry and auth.
package client

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/novacode/novacode/pkg/logging"
	"github.com/novacode/novacode/pkg/protocol"
	"github.com/novacode/novacode/pkg/resolver"
	"github.com/novacode/novacode/pkg/retry"
)

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("not found")

// StatusError is returned for unexpected non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// Client talks to the project server.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	retryConfig   retry.Config
	listingFormat protocol.ListingFormat

	mu        sync.RWMutex
	online    bool
	lastPing  time.Time
	authToken string
}

// Config holds client configuration.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	RetryConfig   retry.Config
	AuthToken     string
	ListingFormat protocol.ListingFormat
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}
	if cfg.ListingFormat == "" {
		cfg.ListingFormat = protocol.FormatFlat
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		retryConfig:   cfg.RetryConfig,
		listingFormat: cfg.ListingFormat,
		online:        true,
		authToken:     cfg.AuthToken,
	}
}

// BaseURL returns the server URL the client was configured with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetAuthToken sets the bearer token for requests.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authToken = token
}

func (c *Client) applyAuth(req *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}

// IsOnline returns true if the last request reached the server.
func (c *Client) IsOnline() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

func (c *Client) setOnline(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.online != online {
		if online {
			logging.Info("server is back online", logging.String("server", c.baseURL))
		} else {
			logging.Warn("server is offline", logging.String("server", c.baseURL))
		}
	}
	c.online = online
	c.lastPing = time.Now()
}

// Ping checks if the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setOnline(false)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.setOnline(false)
		return &StatusError{Code: resp.StatusCode}
	}

	c.setOnline(true)
	return nil
}

// do sends one request and classifies the response. The caller owns the
// returned body when err is nil.
func (c *Client) do(req *http.Request, ok ...int) (*http.Response, error) {
	c.applyAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setOnline(false)
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}
		return nil, retry.Retryable(err)
	}

	for _, code := range ok {
		if resp.StatusCode == code {
			c.setOnline(true)
			return resp, nil
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.setOnline(true)
		return nil, ErrNotFound
	}

	serr := &StatusError{Code: resp.StatusCode}
	var errResp protocol.ErrorResponse
	if json.NewDecoder(resp.Body).Decode(&errResp) == nil {
		serr.Message = errResp.Error
	}
	if retry.RetryableStatus(resp.StatusCode) {
		c.setOnline(false)
		return nil, retry.Retryable(serr)
	}
	c.setOnline(true)
	return nil, serr
}

func decodedBody(resp *http.Response) (io.ReadCloser, error) {
	if resp.Header.Get("Content-Encoding") != "gzip" {
		return resp.Body, nil
	}
	gr, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, err
	}
	return &gzipReadCloser{gr: gr, body: resp.Body}, nil
}

func projectURL(base, projectID string) string {
	return base + "/api/v1/projects/" + url.PathEscape(projectID)
}

// FetchListing fetches a project's listing in the configured format.
func (c *Client) FetchListing(ctx context.Context, projectID string) (*protocol.Listing, error) {
	return c.FetchListingFormat(ctx, projectID, c.listingFormat)
}

// FetchListingFormat fetches a project's listing in the given format.
func (c *Client) FetchListingFormat(ctx context.Context, projectID string, format protocol.ListingFormat) (*protocol.Listing, error) {
	u := projectURL(c.baseURL, projectID) + "/listing?format=" + url.QueryEscape(string(format))

	return retry.DoWithResult(ctx, c.retryConfig, func() (*protocol.Listing, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept-Encoding", "gzip")

		resp, err := c.do(req, http.StatusOK)
		if err != nil {
			return nil, err
		}
		body, err := decodedBody(resp)
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		defer body.Close()

		data, err := io.ReadAll(body)
		if err != nil {
			return nil, retry.Retryable(err)
		}
		return protocol.DecodeListing(data)
	})
}

// FetchContent fetches the full content of one file.
func (c *Client) FetchContent(ctx context.Context, fr resolver.FetchRequest) ([]byte, error) {
	u := fr.URL(c.baseURL)

	return retry.DoWithResult(ctx, c.retryConfig, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept-Encoding", "gzip")

		resp, err := c.do(req, http.StatusOK)
		if err != nil {
			return nil, err
		}
		body, err := decodedBody(resp)
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		defer body.Close()

		data, err := io.ReadAll(body)
		if err != nil {
			return nil, retry.Retryable(err)
		}
		return data, nil
	})
}

type gzipReadCloser struct {
	gr   *gzip.Reader
	body io.ReadCloser
}

func (g *gzipReadCloser) Read(p []byte) (int, error) {
	return g.gr.Read(p)
}

func (g *gzipReadCloser) Close() error {
	g.gr.Close()
	return g.body.Close()
}

// UploadFile stores one file of a project. The data is held in memory so
// every retry resends the full body.
func (c *Client) UploadFile(ctx context.Context, projectID, path string, data []byte) (*protocol.UploadResponse, error) {
	fr := resolver.FetchRequest{ProjectID: projectID, Path: path}
	u := strings.Replace(fr.URL(c.baseURL), "/content/", "/files/", 1)

	return retry.DoWithResult(ctx, c.retryConfig, func() (*protocol.UploadResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.ContentLength = int64(len(data))
		req.Header.Set("Content-Type", "application/octet-stream")

		resp, err := c.do(req, http.StatusCreated, http.StatusOK)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		result := &protocol.UploadResponse{}
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return nil, fmt.Errorf("decode upload response: %w", err)
		}
		return result, nil
	})
}

// DeleteFile removes one file from a project. It returns ErrNotFound when
// the file does not exist.
func (c *Client) DeleteFile(ctx context.Context, projectID, path string) error {
	fr := resolver.FetchRequest{ProjectID: projectID, Path: path}
	u := strings.Replace(fr.URL(c.baseURL), "/content/", "/files/", 1)

	return retry.Do(ctx, c.retryConfig, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
		if err != nil {
			return err
		}
		resp, err := c.do(req, http.StatusNoContent, http.StatusOK)
		if err != nil {
			return err
		}
		resp.Body.Close()
		return nil
	})
}

// dialRetryOnly drops the retry mark from errors that may have reached the
// server. A request that never connected is safe to send again.
func dialRetryOnly(err error) error {
	var re retry.RetryableError
	if !errors.As(err, &re) {
		return err
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return err
	}
	return re.Err
}

// CreateProjectRequest describes a new project and its optional first file.
type CreateProjectRequest struct {
	Name         string
	Description  string
	Organization string
	FileName     string
	Data         []byte
}

// CreateProject registers a project, uploading the first file if given.
func (c *Client) CreateProject(ctx context.Context, cp CreateProjectRequest) (*protocol.CreateProjectResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, value := range map[string]string{
		"name":         cp.Name,
		"description":  cp.Description,
		"organization": cp.Organization,
	} {
		if err := mw.WriteField(field, value); err != nil {
			return nil, err
		}
	}
	if cp.FileName != "" {
		fw, err := mw.CreateFormFile("file", cp.FileName)
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(cp.Data); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	body := buf.Bytes()

	return retry.DoWithResult(ctx, c.retryConfig, func() (*protocol.CreateProjectResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/projects", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())

		resp, err := c.do(req, http.StatusCreated, http.StatusOK)
		if err != nil {
			return nil, dialRetryOnly(err)
		}
		defer resp.Body.Close()

		result := &protocol.CreateProjectResponse{}
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return nil, fmt.Errorf("decode create response: %w", err)
		}
		return result, nil
	})
}
