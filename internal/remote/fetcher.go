// Package remote retrieves image bytes over HTTP, either directly from the
// image's origin or through the same-origin relay endpoint.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/ironsheep/design-spec-mcp/internal/errors"
)

// MaxImageBytes caps how much of a response body is read.
const MaxImageBytes = 64 << 20

// Fetcher returns the raw bytes of an image.
type Fetcher interface {
	Fetch(ctx context.Context, imageURL string) ([]byte, error)
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d", e.StatusCode)
}

// HTTPFetcher performs a plain GET against the image origin.
type HTTPFetcher struct {
	client   *http.Client
	attempts int
	backoff  time.Duration
}

// NewHTTPFetcher creates a direct fetcher with the given overall timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	transport := &http.Transport{
		MaxIdleConns:           10,
		MaxIdleConnsPerHost:    2,
		IdleConnTimeout:        30 * time.Second,
		TLSHandshakeTimeout:    10 * time.Second,
		ResponseHeaderTimeout:  10 * time.Second,
		MaxResponseHeaderBytes: 16 << 10,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		attempts: 3,
		backoff:  time.Second,
	}
}

// NewHTTPFetcherWithClient wraps an existing client, mainly for tests.
func NewHTTPFetcherWithClient(client *http.Client, attempts int, backoff time.Duration) *HTTPFetcher {
	if attempts < 1 {
		attempts = 1
	}
	return &HTTPFetcher{client: client, attempts: attempts, backoff: backoff}
}

// Fetch downloads imageURL. Transport errors and 5xx responses are retried;
// 4xx responses fail immediately.
func (h *HTTPFetcher) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < h.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * h.backoff):
			}
		}

		data, retry, err := h.fetchOnce(ctx, imageURL)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}

	return nil, fmt.Errorf("failed to fetch image after %d attempts: %w", h.attempts, lastErr)
}

func (h *HTTPFetcher) fetchOnce(ctx context.Context, imageURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "image/png, image/jpeg, image/webp, image/gif, */*")
	req.Header.Set("User-Agent", "design-spec-mcp/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode >= 500, &StatusError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read body: %w", err)
	}
	return data, false, nil
}

// RelayRequest is the body posted to the relay endpoint.
type RelayRequest struct {
	ImageURL string `json:"imageUrl"`
}

// RelayClient asks the same-origin relay to fetch an image on our behalf.
type RelayClient struct {
	endpoint string
	client   *http.Client
}

// NewRelayClient returns a client for the relay at endpoint.
func NewRelayClient(endpoint string, timeout time.Duration) *RelayClient {
	return &RelayClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// NewRelayClientWithHTTPClient is used by tests to inject a client.
func NewRelayClientWithHTTPClient(endpoint string, client *http.Client) *RelayClient {
	return &RelayClient{endpoint: endpoint, client: client}
}

// Endpoint returns the relay URL.
func (r *RelayClient) Endpoint() string {
	return r.endpoint
}

// Fetch posts {imageUrl} and returns the binary response. Any failure,
// including a non-2xx status, is an image_fetch_failed error.
func (r *RelayClient) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	body, err := json.Marshal(RelayRequest{ImageURL: imageURL})
	if err != nil {
		return nil, apperrors.NewImageFetchFailedError("failed to encode relay request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewImageFetchFailedError("invalid relay endpoint", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, apperrors.NewImageFetchFailedError("relay request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.NewImageFetchFailedError(
			fmt.Sprintf("relay returned status %d", resp.StatusCode),
			&StatusError{StatusCode: resp.StatusCode},
		)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes))
	if err != nil {
		return nil, apperrors.NewImageFetchFailedError("failed to read relay response", err)
	}
	return data, nil
}

// Origin returns scheme://host[:port] of a URL, lower-cased. Non-URLs and
// URLs without a host yield "".
func Origin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || u.Scheme == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

// IsRemote reports whether src is an http(s) URL rather than a local path.
func IsRemote(src string) bool {
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
