// Package restclient talks to the crabmigrated HTTP API. The migration
// session drives its batch loops entirely through this client, so it can
// run on a different host than the daemon.
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"crabmigrate/internal/api"
	"crabmigrate/internal/discovery"
	"crabmigrate/internal/rewrite"
)

// HTTPDoer describes the HTTP client used by the REST client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrTransport wraps network and decode failures so callers can distinguish
// them from API-level errors.
var ErrTransport = errors.New("transport error")

// StatusError reports a non-success API response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned %d", e.Code)
	}
	return fmt.Sprintf("api returned %d: %s", e.Code, e.Message)
}

// Client accesses the daemon's migration API.
type Client struct {
	baseURL string
	token   string
	client  HTTPDoer
}

// New constructs a client for the API at baseURL. An empty token disables
// authentication headers.
func New(baseURL, token string, client HTTPDoer) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		client:  client,
	}
}

// Discover scans one catalog page on the server.
func (c *Client) Discover(ctx context.Context, page int) (*discovery.Result, error) {
	var result discovery.Result
	url := fmt.Sprintf("%s/api/discover?page=%d", c.baseURL, page)
	if err := c.do(ctx, http.MethodPost, url, nil, "", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// MigrationStatus fetches ledger counts.
func (c *Client) MigrationStatus(ctx context.Context) (*api.MigrationStatus, error) {
	var status api.MigrationStatus
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/api/get-migration-status", nil, "", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SetFailure marks one attachment as failed on the server.
func (c *Client) SetFailure(ctx context.Context, attachmentID int64) (*api.SetFailureResponse, error) {
	body, err := json.Marshal(api.SetFailureRequest{AttachmentID: attachmentID})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	var resp api.SetFailureResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/api/set-failure", bytes.NewReader(body), "application/json", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReplaceContent rewrites one page of documents on the server.
func (c *Client) ReplaceContent(ctx context.Context, page int) (*rewrite.PageResult, error) {
	var result rewrite.PageResult
	url := fmt.Sprintf("%s/api/replace-content?page=%d", c.baseURL, page)
	if err := c.do(ctx, http.MethodPost, url, nil, "", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FetchAsset downloads the raw bytes behind an asset URL.
func (c *Client) FetchAsset(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch asset: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read asset body: %v", ErrTransport, err)
	}
	return data, nil
}

// UploadParams describes a converted asset upload.
type UploadParams struct {
	FileName    string
	MimeType    string
	Data        []byte
	IsOptimized bool
	IsMigration bool
	OriginalID  int64
	Format      string
}

// UploadMedia stores a converted asset on the server. Migration metadata
// travels as multipart form fields alongside the file.
func (c *Client) UploadMedia(ctx context.Context, params UploadParams) (*api.UploadResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fields := map[string]string{
		"is_crab_optimized": strconv.FormatBool(params.IsOptimized),
		"is_crab_migration": strconv.FormatBool(params.IsMigration),
	}
	if params.OriginalID > 0 {
		fields["original_id"] = strconv.FormatInt(params.OriginalID, 10)
	}
	if params.Format != "" {
		fields["crab_optimized_format"] = params.Format
	}
	if params.MimeType != "" {
		fields["mime_type"] = params.MimeType
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("write field %s: %w", key, err)
		}
	}

	part, err := writer.CreateFormFile("file", params.FileName)
	if err != nil {
		return nil, fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(params.Data); err != nil {
		return nil, fmt.Errorf("write file part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finish multipart body: %w", err)
	}

	var resp api.UploadResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/api/media", &buf, writer.FormDataContentType(), &resp); err != nil {
		return nil, err
	}
	if resp.ID == 0 {
		return nil, fmt.Errorf("%w: upload response missing asset id", ErrTransport)
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, url string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var apiErr api.ErrorBody
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return &StatusError{Code: resp.StatusCode, Message: apiErr.Error}
		}
		return &StatusError{Code: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrTransport, err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
