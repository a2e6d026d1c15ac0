// Package storage is the client for the remote object store.
//
// The store speaks the Supabase Storage HTTP API: path-addressed objects
// under a bucket, bearer-token auth with the project service key. The client
// is stateless and single-shot — no retries, no caching; callers decide what
// a failure means.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// requestTimeout bounds every outbound call to the object store.
const requestTimeout = 15 * time.Second

// maxErrorBody caps how much of an error response is kept for logging.
const maxErrorBody = 512

// Error is a failed object-store call: the HTTP status and a body excerpt.
// It is logged in full by callers; clients never see it.
type Error struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage: %s failed with status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client talks to one bucket of a Supabase Storage project.
type Client struct {
	baseURL    string
	serviceKey string
	bucket     string
	http       *http.Client
}

// NewClient creates a Client for the given project URL and bucket.
func NewClient(baseURL, serviceKey, bucket string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		bucket:     bucket,
		http:       &http.Client{Timeout: requestTimeout},
	}
}

// Upload stores data under the given path and returns the public URL.
func (c *Client) Upload(ctx context.Context, path, contentType string, data []byte) (string, error) {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("storage: building upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", contentType)

	if err := c.do(req, "upload"); err != nil {
		return "", err
	}
	return c.PublicURL(path), nil
}

// Delete removes the object at the given path.
func (c *Client) Delete(ctx context.Context, path string) error {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("storage: building delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	return c.do(req, "delete")
}

// Exists reports whether an object is present at the given path.
// Transport errors are reported as errors, a non-2xx status as (false, nil).
func (c *Client) Exists(ctx context.Context, path string) (bool, error) {
	url := fmt.Sprintf("%s/storage/v1/object/info/public/%s/%s", c.baseURL, c.bucket, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, fmt.Errorf("storage: building head request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("storage: head %s: %w", path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

// PublicURL composes the public download URL for a storage path. Pure
// string composition, no network.
func (c *Client) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, c.bucket, path)
}

// CreateUserFolder materializes the per-user namespace. Supabase Storage has
// no empty folders, so a .gitkeep placeholder object is uploaded instead.
func (c *Client) CreateUserFolder(ctx context.Context, email string) error {
	_, err := c.Upload(ctx, email+"/.gitkeep", "text/plain", []byte("# user folder placeholder\n"))
	return err
}

// do executes a request and maps any non-2xx response to *Error.
// A 2xx is success regardless of body.
func (c *Client) do(req *http.Request, op string) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("storage: %s %s: %w", op, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &Error{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
}
