// Package pinata provides a client for the Pinata IPFS pinning API.
package pinata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.pinata.cloud"

// Client pins JSON payloads to IPFS via Pinata.
type Client interface {
	// PinJSON pins an arbitrary JSON-serializable payload under the given
	// name and returns the resulting content identifier.
	PinJSON(ctx context.Context, name string, payload any) (*PinResponse, error)
	// Unpin removes a previously pinned content identifier.
	Unpin(ctx context.Context, cid string) error
	// TestAuthentication verifies the configured credential.
	TestAuthentication(ctx context.Context) error
}

// PinResponse is the parsed pinJSONToIPFS response.
type PinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

type pinRequest struct {
	PinataContent  any         `json:"pinataContent"`
	PinataMetadata pinMetadata `json:"pinataMetadata"`
}

type pinMetadata struct {
	Name string `json:"name"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	jwt     string
	baseURL string
	http    *http.Client
}

// NewClient creates a Pinata client authenticated with a JWT.
func NewClient(jwt string, opts ...Option) Client {
	c := &httpClient{
		jwt:     jwt,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes the request with exponential backoff retries on transient
// failures.
func (c *httpClient) retryDo(ctx context.Context, build func() (*http.Request, error)) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := build()
		if err != nil {
			return nil, 0, err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "pinata: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("pinata: status %d: %s", resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

func (c *httpClient) PinJSON(ctx context.Context, name string, payload any) (*PinResponse, error) {
	reqBody, err := json.Marshal(pinRequest{
		PinataContent:  payload,
		PinataMetadata: pinMetadata{Name: name},
	})
	if err != nil {
		return nil, eris.Wrap(err, "pinata: marshal payload")
	}

	build := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/pinning/pinJSONToIPFS", bytes.NewReader(reqBody))
		if err != nil {
			return nil, eris.Wrap(err, "pinata: create request")
		}
		req.Header.Set("Authorization", "Bearer "+c.jwt)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	body, statusCode, err := c.retryDo(ctx, build)
	if err != nil {
		return nil, eris.Wrap(err, "pinata: pin request failed")
	}

	if statusCode != http.StatusOK {
		return nil, eris.Errorf("pinata: unexpected status %d: %s", statusCode, string(body))
	}

	var result PinResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "pinata: unmarshal response")
	}

	return &result, nil
}

func (c *httpClient) Unpin(ctx context.Context, cid string) error {
	build := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
			fmt.Sprintf("%s/pinning/unpin/%s", c.baseURL, cid), nil)
		if err != nil {
			return nil, eris.Wrap(err, "pinata: create unpin request")
		}
		req.Header.Set("Authorization", "Bearer "+c.jwt)
		return req, nil
	}

	body, statusCode, err := c.retryDo(ctx, build)
	if err != nil {
		return eris.Wrap(err, "pinata: unpin request failed")
	}
	if statusCode != http.StatusOK {
		return eris.Errorf("pinata: unpin unexpected status %d: %s", statusCode, string(body))
	}
	return nil
}

func (c *httpClient) TestAuthentication(ctx context.Context) error {
	build := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			c.baseURL+"/data/testAuthentication", nil)
		if err != nil {
			return nil, eris.Wrap(err, "pinata: create auth request")
		}
		req.Header.Set("Authorization", "Bearer "+c.jwt)
		return req, nil
	}

	body, statusCode, err := c.retryDo(ctx, build)
	if err != nil {
		return eris.Wrap(err, "pinata: auth request failed")
	}
	if statusCode != http.StatusOK {
		return eris.Errorf("pinata: auth unexpected status %d: %s", statusCode, string(body))
	}
	return nil
}
