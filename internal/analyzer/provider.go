package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/raysh454/securescan/internal/interfaces"
	"github.com/raysh454/securescan/internal/logging"
	"github.com/raysh454/securescan/internal/model"
	"golang.org/x/time/rate"
)

// ErrProviderUnavailable marks a failed round trip to the collaborator.
var ErrProviderUnavailable = errors.New("analyzer: analysis provider unavailable")

// ProviderClient calls the external analysis collaborator over HTTP.
// One request per scan, single attempt, bounded by cfg.Timeout — recovery
// is the caller's problem, per the all-or-nothing persistence contract.
type ProviderClient struct {
	cfg     *Config
	client  *http.Client
	limiter *rate.Limiter
	logger  logging.Logger
}

// Ensure ProviderClient implements the Analyzer contract at compile-time.
var _ interfaces.Analyzer = (*ProviderClient)(nil)

// NewProviderClient constructs a provider-backed analyzer. httpClient may
// be nil, in which case a default client bounded by cfg.Timeout is used.
func NewProviderClient(cfg *Config, logger logging.Logger, httpClient *http.Client) (*ProviderClient, error) {
	if logger == nil {
		return nil, errors.New("analyzer: nil logger provided")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("analyzer: provider endpoint is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	componentLogger := logger.With(logging.Field{Key: "component", Value: "provider-analyzer"})
	componentLogger.Info("created provider analyzer",
		logging.Field{Key: "endpoint", Value: cfg.Endpoint},
		logging.Field{Key: "timeout", Value: cfg.Timeout.String()})

	return &ProviderClient{
		cfg:     cfg,
		client:  httpClient,
		limiter: limiter,
		logger:  componentLogger,
	}, nil
}

// analysisRequest is the wire request. Field order is fixed by the struct,
// so repeated calls for the same URL produce byte-identical bodies and are
// comparable on the provider side.
type analysisRequest struct {
	URL string `json:"url"`
}

// Analyze performs the provider round trip and validates the response.
func (p *ProviderClient) Analyze(ctx context.Context, url string) (*model.AnalysisResult, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, &ProcessingError{Stage: "request", Err: err}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(analysisRequest{URL: url})
	if err != nil {
		return nil, &ProcessingError{Stage: "request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &ProcessingError{Stage: "request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	p.logger.Debug("calling analysis provider", logging.Field{Key: "url", Value: url})

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("provider call failed",
			logging.Field{Key: "url", Value: url},
			logging.Field{Key: "error", Value: err.Error()})
		return nil, &ProcessingError{Stage: "request", Err: fmt.Errorf("%w: %v", ErrProviderUnavailable, err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProcessingError{Stage: "request", Err: fmt.Errorf("%w: read body: %v", ErrProviderUnavailable, err)}
	}

	if resp.StatusCode != http.StatusOK {
		p.logger.Warn("provider returned non-200",
			logging.Field{Key: "url", Value: url},
			logging.Field{Key: "status", Value: resp.StatusCode})
		return nil, &ProcessingError{Stage: "request", Err: fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)}
	}

	result, err := ParsePayload(raw)
	if err != nil {
		p.logger.Warn("provider payload rejected",
			logging.Field{Key: "url", Value: url},
			logging.Field{Key: "error", Value: err.Error()})
		return nil, err
	}

	return result, nil
}

// Close releases resources (currently a no-op) and logs lifecycle.
func (p *ProviderClient) Close() error {
	p.logger.Info("closing provider analyzer")
	return nil
}
