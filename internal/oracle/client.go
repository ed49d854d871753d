// Package oracle talks to the external sequence-generation service. The
// service is non-deterministic and fallible; callers decide which failures
// are fatal.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hpungsan/vinyasa/internal/config"
	"github.com/hpungsan/vinyasa/internal/errors"
	"github.com/hpungsan/vinyasa/internal/logging"
)

// Endpoint paths, relative to the configured base URL.
const (
	PathGenerate      = "/generate"
	PathComplementary = "/complementary-poses"
	PathTiming        = "/timing"
	PathRevise        = "/revise"
	PathSuggestions   = "/suggestions"
	PathAlternatives  = "/alternatives"
)

// Client is the oracle contract. Every method returns an ORACLE_UNAVAILABLE
// error on transport, status, or decode failure.
type Client interface {
	Generate(ctx context.Context, req GenerateRequest) (*SequenceResponse, error)
	Complementary(ctx context.Context, req ComplementaryRequest) (*ComplementaryResponse, error)
	Timing(ctx context.Context, req TimingRequest) (*TimingResponse, error)
	Revise(ctx context.Context, req ReviseRequest) (*SequenceResponse, error)
	Suggestions(ctx context.Context, req InsightsRequest) (*SuggestionsResponse, error)
	Alternatives(ctx context.Context, req InsightsRequest) (*AlternativesResponse, error)
}

// HTTPClient is the JSON-over-HTTP Client.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds a client from explicit settings.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logging.OrDiscard(logger),
	}
}

// FromConfig builds a client from the oracle_* settings.
func FromConfig(cfg *config.Config, logger *slog.Logger) *HTTPClient {
	return NewHTTPClient(cfg.OracleBaseURL, cfg.OracleAPIKey, cfg.OracleTimeout(), logger)
}

func (c *HTTPClient) Generate(ctx context.Context, req GenerateRequest) (*SequenceResponse, error) {
	var resp SequenceResponse
	if err := c.post(ctx, PathGenerate, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Complementary(ctx context.Context, req ComplementaryRequest) (*ComplementaryResponse, error) {
	var resp ComplementaryResponse
	if err := c.post(ctx, PathComplementary, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Timing(ctx context.Context, req TimingRequest) (*TimingResponse, error) {
	var resp TimingResponse
	if err := c.post(ctx, PathTiming, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Revise(ctx context.Context, req ReviseRequest) (*SequenceResponse, error) {
	var resp SequenceResponse
	if err := c.post(ctx, PathRevise, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Suggestions(ctx context.Context, req InsightsRequest) (*SuggestionsResponse, error) {
	var resp SuggestionsResponse
	if err := c.post(ctx, PathSuggestions, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Alternatives(ctx context.Context, req InsightsRequest) (*AlternativesResponse, error) {
	var resp AlternativesResponse
	if err := c.post(ctx, PathAlternatives, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// maxErrorBody bounds how much of a failed response is kept for the error.
const maxErrorBody = 512

func (c *HTTPClient) post(ctx context.Context, path string, in, out any) error {
	if c.baseURL == "" {
		return errors.NewOracleUnavailable(path, fmt.Errorf("oracle base URL is not configured"))
	}

	body, err := json.Marshal(in)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("encode %s request: %w", path, err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.NewOracleUnavailable(path, err)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.WarnContext(ctx, "oracle request failed", "endpoint", path, "request_id", requestID, "error", err)
		return errors.NewOracleUnavailable(path, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "oracle response",
		"endpoint", path,
		"request_id", requestID,
		"status", resp.StatusCode,
		"elapsed", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errors.NewOracleUnavailable(path,
			fmt.Errorf("bad status: %d, body: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewOracleUnavailable(path, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
