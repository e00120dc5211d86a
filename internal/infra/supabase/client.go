// Package supabase adapts a hosted Supabase project to the ledger's
// document-store port. Reads and queries go through PostgREST against a
// single versioned documents table; the conditional write-set commits
// through one Postgres function so the whole set applies atomically;
// change notification rides the Realtime websocket.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bamboobank/bamboo-bank-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Client wraps authenticated HTTP calls to the Supabase PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	logger         *zap.Logger
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		logger:         logger,
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
}

// doGet executes an authenticated GET against PostgREST and returns the
// raw response body.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: GET failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: GET non-2xx",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, fmt.Errorf("supabase GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	c.logger.Debug("supabase: GET OK", zap.String("path", path), zap.Int("status", resp.StatusCode))
	return body, nil
}

// doRPC calls a Postgres function through PostgREST. The status code is
// returned so callers can distinguish business outcomes (409 from the
// commit function) from transport failures.
func (c *Client) doRPC(ctx context.Context, fn string, payload any) (int, []byte, error) {
	url := fmt.Sprintf("%s/rest/v1/rpc/%s", c.baseURL, fn)
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return 0, nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: RPC failed",
			zap.String("fn", fn),
			zap.Error(err),
		)
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	c.logger.Debug("supabase: RPC done", zap.String("fn", fn), zap.Int("status", resp.StatusCode))
	return resp.StatusCode, body, nil
}
