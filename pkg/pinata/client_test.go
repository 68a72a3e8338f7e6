package pinata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPinJSON_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/pinning/pinJSONToIPFS", r.URL.Path)
		assert.Equal(t, "Bearer test-jwt", r.Header.Get("Authorization"))

		var req pinRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "verification-abc123", req.PinataMetadata.Name)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(PinResponse{
			IpfsHash:  "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG",
			PinSize:   184,
			Timestamp: "2026-01-05T10:00:00Z",
		})
	}))
	defer srv.Close()

	client := NewClient("test-jwt", WithBaseURL(srv.URL))
	got, err := client.PinJSON(context.Background(), "verification-abc123", map[string]any{"trust_score": 87})

	require.NoError(t, err)
	assert.Equal(t, "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG", got.IpfsHash)
	assert.Equal(t, int64(184), got.PinSize)
}

func TestPinJSON_RetryOn500(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(PinResponse{IpfsHash: "QmTest"})
	}))
	defer srv.Close()

	client := NewClient("test-jwt", WithBaseURL(srv.URL))
	got, err := client.PinJSON(context.Background(), "n", map[string]string{"a": "b"})

	require.NoError(t, err)
	assert.Equal(t, "QmTest", got.IpfsHash)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestPinJSON_AuthFailureNotRetried(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid credentials"}`))
	}))
	defer srv.Close()

	client := NewClient("bad-jwt", WithBaseURL(srv.URL))
	_, err := client.PinJSON(context.Background(), "n", map[string]string{"a": "b"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), attempts.Load())
}

func TestPinJSON_RetryExhausted(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient("test-jwt", WithBaseURL(srv.URL))
	_, err := client.PinJSON(context.Background(), "n", map[string]string{"a": "b"})

	require.Error(t, err)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestUnpin_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/pinning/unpin/QmTest", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient("test-jwt", WithBaseURL(srv.URL))
	require.NoError(t, client.Unpin(context.Background(), "QmTest"))
}

func TestTestAuthentication(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/testAuthentication", r.URL.Path)
		w.Write([]byte(`{"message":"Congratulations! You are communicating with the Pinata API!"}`))
	}))
	defer srv.Close()

	client := NewClient("test-jwt", WithBaseURL(srv.URL))
	assert.NoError(t, client.TestAuthentication(context.Background()))
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()

	c := NewClient("jwt")
	hc := c.(*httpClient)
	assert.Equal(t, "https://api.pinata.cloud", hc.baseURL)
	assert.NotNil(t, hc.http)
}
