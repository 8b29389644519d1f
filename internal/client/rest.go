package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type bearerKey struct{}

// WithBearerToken attaches the caller's access token so backend calls are
// made on the user's behalf.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

func bearerToken(ctx context.Context) string {
	token, _ := ctx.Value(bearerKey{}).(string)
	return token
}

// restClient holds what every backend client shares: base URL, the internal
// secret header and a timeout-bound http.Client.
type restClient struct {
	name           string
	baseURL        string
	internalSecret string
	httpClient     *http.Client
	logger         zerolog.Logger
}

func newRestClient(name, baseURL, internalSecret string, timeout time.Duration, logger zerolog.Logger) restClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return restClient{
		name:           name,
		baseURL:        strings.TrimRight(baseURL, "/"),
		internalSecret: internalSecret,
		httpClient:     &http.Client{Timeout: timeout},
		logger:         logger.With().Str("component", name).Logger(),
	}
}

// doJSON sends in (if non-nil) as JSON and decodes the response into out (if
// non-nil).
func (c *restClient) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	respBody, err := c.do(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w (body: %s)", err, truncate(respBody, 256))
	}
	return nil
}

// do performs the request and returns the raw body of a 2xx response.
// Non-2xx responses become *APIError.
func (c *restClient) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.internalSecret != "" {
		httpReq.Header.Set("X-Internal-Secret", c.internalSecret)
	}
	if token := bearerToken(ctx); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newAPIError(resp.StatusCode, respBody)
		c.logger.Warn().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("error", apiErr.Message).
			Msg("backend returned error")
		return nil, apiErr
	}

	return respBody, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
