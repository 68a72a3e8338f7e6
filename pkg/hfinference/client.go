// Package hfinference provides a client for hosted image-classification
// models served over the Hugging Face Inference API.
package hfinference

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

const defaultBaseURL = "https://api-inference.huggingface.co"

// Client classifies images against a named hosted model.
type Client interface {
	// Classify posts raw image bytes to the model and returns the returned
	// label/score pairs, highest score first.
	Classify(ctx context.Context, model string, image []byte) ([]Classification, error)
}

// Classification is a single label/score pair from the model.
type Classification struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// StatusError is a non-200 response from the inference API. The client makes
// exactly one request per call; callers own the retry policy and can use
// Retryable to classify the failure.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hfinference: status %d: %s", e.Code, e.Message)
}

// Retryable reports whether the status indicates a transient condition.
// 503 covers model cold-starts.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests ||
		e.Code == http.StatusInternalServerError ||
		e.Code == http.StatusBadGateway ||
		e.Code == http.StatusServiceUnavailable
}

// apiError is the error envelope the inference API returns. A warming model
// answers 503 with an estimated_time hint.
type apiError struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time,omitempty"`
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

// WithTimeout overrides the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates an inference API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
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

func (c *httpClient) Classify(ctx context.Context, model string, image []byte) ([]Classification, error) {
	reqURL := fmt.Sprintf("%s/models/%s", c.baseURL, model)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(image))
	if err != nil {
		return nil, eris.Wrap(err, "hfinference: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")
	// Hold the request open while a cold model loads instead of 503ing.
	req.Header.Set("x-wait-for-model", "true")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "hfinference: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "hfinference: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return nil, &StatusError{Code: resp.StatusCode, Message: msg}
	}

	var result []Classification
	if err := json.Unmarshal(body, &result); err != nil {
		// Some models nest results one level deep: [[{label, score}, ...]].
		var nested [][]Classification
		if nestedErr := json.Unmarshal(body, &nested); nestedErr == nil && len(nested) > 0 {
			return nested[0], nil
		}
		return nil, eris.Wrap(err, "hfinference: unmarshal response")
	}

	return result, nil
}
