package provider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wedding-ai-backend/internal/apperrors"
	"wedding-ai-backend/internal/provider"
)

func newProviderServer(t *testing.T, generateStatus func(call int32) int) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32

	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/v1/generations", func(w http.ResponseWriter, r *http.Request) {
		call := atomic.AddInt32(&calls, 1)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req provider.GenerateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hanbok", req.Style)

		status := generateStatus(call)
		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"error":"nope"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]string{
				"image_url":    srv.URL + "/files/out.jpg",
				"content_type": "image/jpeg",
			},
		})
	})
	mux.HandleFunc("/files/out.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jpeg-bytes"))
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestClient_Generate(t *testing.T) {
	srv, calls := newProviderServer(t, func(int32) int { return http.StatusOK })
	client := provider.NewClient(srv.URL+"/v1/", "test-key", 0)

	img, err := client.Generate(context.Background(), provider.GenerateRequest{Style: "hanbok", SourceImageURL: "x"})
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), img.Data)
	assert.Equal(t, "image/jpeg", img.ContentType)
	assert.EqualValues(t, 1, *calls)
}

func TestClient_Generate_RetriesServerErrors(t *testing.T) {
	srv, calls := newProviderServer(t, func(call int32) int {
		if call < 3 {
			return http.StatusServiceUnavailable
		}
		return http.StatusOK
	})
	client := provider.NewClient(srv.URL+"/v1", "test-key", 0,
		provider.WithBackoffs(time.Millisecond, time.Millisecond, time.Millisecond))

	_, err := client.Generate(context.Background(), provider.GenerateRequest{Style: "hanbok"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, *calls)
}

func TestClient_Generate_DoesNotRetryClientErrors(t *testing.T) {
	srv, calls := newProviderServer(t, func(int32) int { return http.StatusBadRequest })
	client := provider.NewClient(srv.URL+"/v1", "test-key", 0,
		provider.WithBackoffs(time.Millisecond, time.Millisecond))

	_, err := client.Generate(context.Background(), provider.GenerateRequest{Style: "hanbok"})
	assert.ErrorIs(t, err, apperrors.ErrProviderFailure)
	assert.EqualValues(t, 1, *calls)
}

func TestClient_Generate_GivesUp(t *testing.T) {
	srv, calls := newProviderServer(t, func(int32) int { return http.StatusInternalServerError })
	client := provider.NewClient(srv.URL+"/v1", "test-key", 0,
		provider.WithBackoffs(time.Millisecond, time.Millisecond))

	_, err := client.Generate(context.Background(), provider.GenerateRequest{Style: "hanbok"})
	assert.ErrorIs(t, err, apperrors.ErrProviderFailure)
	assert.Contains(t, err.Error(), "failed after 3 retries")
	assert.EqualValues(t, 3, *calls)
}

func TestClient_RetryWithBackoff(t *testing.T) {
	client := provider.NewClient("https://api.test.com/v1/", "test-key", 0,
		provider.WithBackoffs(time.Millisecond, time.Millisecond))

	callCount := 0
	err := client.RetryWithBackoff(context.Background(), func() error {
		callCount++
		if callCount < 3 {
			return assert.AnError
		}
		return nil
	}, 3)

	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func TestClient_RetryWithBackoff_StopsOnCancel(t *testing.T) {
	client := provider.NewClient("https://api.test.com/v1/", "test-key", 0,
		provider.WithBackoffs(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.RetryWithBackoff(ctx, func() error { return assert.AnError }, 2)
	assert.ErrorIs(t, err, context.Canceled)
}
