// Package provider is the outbound client for the AI image generation
// service. Each call produces one wedding photo.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"wedding-ai-backend/internal/apperrors"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	backoffs   []time.Duration
	maxRetries int
}

type GenerateRequest struct {
	Style          string   `json:"style"`
	Prompt         string   `json:"prompt,omitempty"`
	SourceImageURL string   `json:"source_image_url"`
	ReferenceURLs  []string `json:"reference_urls,omitempty"`
	Seed           int      `json:"seed,omitempty"`
}

type GenerateResponse struct {
	Data struct {
		ImageURL    string `json:"image_url"`
		ContentType string `json:"content_type"`
	} `json:"data"`
}

// Image is one generated photo.
type Image struct {
	Data        []byte
	ContentType string
}

type Option func(*Client)

// WithBackoffs replaces the retry schedule. The number of attempts is
// len(backoffs)+1.
func WithBackoffs(backoffs ...time.Duration) Option {
	return func(c *Client) {
		c.backoffs = backoffs
		c.maxRetries = len(backoffs) + 1
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient builds a client limited to rps requests per second. rps <= 0
// disables limiting.
func NewClient(baseURL, apiKey string, rps float64, opts ...Option) *Client {
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		if int(rps) > burst {
			burst = int(rps)
		}
	}

	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		limiter:    rate.NewLimiter(limit, burst),
		backoffs:   []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
		maxRetries: 4,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate asks the provider for one image and downloads the result. Errors
// are wrapped as ProviderFailure.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*Image, error) {
	var img *Image
	err := c.RetryWithBackoff(ctx, func() error {
		url, contentType, err := c.requestGeneration(ctx, req)
		if err != nil {
			return err
		}
		data, err := c.DownloadFile(ctx, url)
		if err != nil {
			return err
		}
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}
		img = &Image{Data: data, ContentType: contentType}
		return nil
	}, c.maxRetries)
	if err != nil {
		return nil, apperrors.NewProviderFailure(err.Error())
	}
	return img, nil
}

func (c *Client) requestGeneration(ctx context.Context, genReq GenerateRequest) (string, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", "", permanent(err)
	}

	jsonData, err := json.Marshal(genReq)
	if err != nil {
		return "", "", permanent(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generations", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", "", permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		err := fmt.Errorf("failed to generate image: status %d, body: %s", resp.StatusCode, string(body))
		if retryableStatus(resp.StatusCode) {
			return "", "", err
		}
		return "", "", permanent(err)
	}

	var result GenerateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", "", permanent(fmt.Errorf("failed to decode response: %w, body: %s", err, string(body)))
	}
	if result.Data.ImageURL == "" {
		return "", "", permanent(fmt.Errorf("image_url is empty in response, body: %s", string(body)))
	}

	return result.Data.ImageURL, result.Data.ContentType, nil
}

func (c *Client) DownloadFile(ctx context.Context, downloadURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, permanent(fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("failed to download file: status %d, body: %s", resp.StatusCode, string(body))
		if retryableStatus(resp.StatusCode) {
			return nil, err
		}
		return nil, permanent(err)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, nil
}

// RetryWithBackoff executes fn with exponential backoff. Errors marked
// permanent and context cancellation stop the loop early.
func (c *Client) RetryWithBackoff(ctx context.Context, fn func() error, maxRetries int) error {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		lastErr = err
		if i == maxRetries-1 || i >= len(c.backoffs) {
			break
		}

		timer := time.NewTimer(c.backoffs[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return &permanentError{err: err}
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
