// Package instance implements connector.InstanceClient over an analysis
// engine's REST API.
package instance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/cortex-connector/internal/connector"
)

const (
	defaultTimeout   = 10 * time.Second
	maxErrorBody     = 4 << 10
	statusVersionKey = "Cortex"
)

// Config describes one engine instance.
type Config struct {
	ID             string
	URL            string
	APIKey         string
	Timeout        time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Is maps 404 onto connector.ErrNotFound.
func (e *StatusError) Is(target error) bool {
	return target == connector.ErrNotFound && e.Code == http.StatusNotFound
}

// Client talks to a single instance.
type Client struct {
	id      string
	base    *url.URL
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ connector.InstanceClient = (*Client)(nil)

// New builds a Client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if cfg.ID == "" {
		return nil, errors.New("instance id is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse instance %s url: %w", cfg.ID, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("instance %s url must be http or https, got %q", cfg.ID, cfg.URL)
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if cfg.RateLimitRPS > 0 {
		limit = rate.Limit(cfg.RateLimitRPS)
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		id:      cfg.ID,
		base:    base,
		apiKey:  cfg.APIKey,
		client:  httpClient,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.With(zap.String("instance_id", cfg.ID)),
	}, nil
}

// ID returns the configured instance id.
func (c *Client) ID() string { return c.id }

// Status fetches the instance status document. Failures are reported inside
// the document.
func (c *Client) Status(ctx context.Context) connector.StatusDocument {
	var payload statusPayload
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &payload); err != nil {
		c.logger.Debug("status poll failed", zap.Error(err))
		return connector.StatusDocument{Name: c.id, Status: connector.StatusError, Error: err.Error()}
	}
	return connector.StatusDocument{
		Name:    c.id,
		Version: payload.Versions[statusVersionKey],
		Status:  connector.StatusOK,
	}
}

// Health classifies a status probe: 2xx is Ok, 5xx or no response is Error,
// anything else (auth failures, throttling) is Warning.
func (c *Client) Health(ctx context.Context) connector.Health {
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil)
	if err == nil {
		return connector.HealthOk
	}
	var se *StatusError
	if errors.As(err, &se) && se.Code < http.StatusInternalServerError {
		return connector.HealthWarning
	}
	c.logger.Debug("health probe failed", zap.Error(err))
	return connector.HealthError
}

// SubmitJob runs the requested analyzer on this instance.
func (c *Client) SubmitJob(ctx context.Context, req connector.JobRequest) (connector.Job, error) {
	body := runPayload{
		DataType:   req.DataType,
		Data:       req.Data,
		TLP:        req.TLP,
		Message:    req.Message,
		Parameters: req.Parameters,
	}
	var payload jobPayload
	if err := c.do(ctx, http.MethodPost, "/api/analyzer/"+url.PathEscape(req.AnalyzerID)+"/run", body, &payload); err != nil {
		return connector.Job{}, fmt.Errorf("run analyzer %s: %w", req.AnalyzerID, err)
	}
	job := payload.toJob(c.id)
	job.ArtifactID = req.ArtifactID
	if job.AnalyzerID == "" {
		job.AnalyzerID = req.AnalyzerID
	}
	return job, nil
}

// GetJob fetches one job.
func (c *Client) GetJob(ctx context.Context, jobID string) (connector.Job, error) {
	var payload jobPayload
	if err := c.do(ctx, http.MethodGet, "/api/job/"+url.PathEscape(jobID), nil, &payload); err != nil {
		return connector.Job{}, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return payload.toJob(c.id), nil
}

// GetReport fetches a job together with its report.
func (c *Client) GetReport(ctx context.Context, jobID string) (connector.Report, error) {
	var payload reportPayload
	if err := c.do(ctx, http.MethodGet, "/api/job/"+url.PathEscape(jobID)+"/report", nil, &payload); err != nil {
		return connector.Report{}, fmt.Errorf("get report %s: %w", jobID, err)
	}
	report := payload.toReport(c.id)
	if report.JobID == "" {
		report.JobID = jobID
	}
	return report, nil
}

// ListAnalyzers lists every enabled analyzer.
func (c *Client) ListAnalyzers(ctx context.Context) ([]connector.Analyzer, error) {
	return c.analyzers(ctx, "/api/analyzer")
}

// AnalyzersFor lists analyzers accepting dataType.
func (c *Client) AnalyzersFor(ctx context.Context, dataType string) ([]connector.Analyzer, error) {
	return c.analyzers(ctx, "/api/analyzer/type/"+url.PathEscape(dataType))
}

// GetAnalyzer fetches one analyzer.
func (c *Client) GetAnalyzer(ctx context.Context, analyzerID string) (connector.Analyzer, error) {
	var payload analyzerPayload
	if err := c.do(ctx, http.MethodGet, "/api/analyzer/"+url.PathEscape(analyzerID), nil, &payload); err != nil {
		return connector.Analyzer{}, fmt.Errorf("get analyzer %s: %w", analyzerID, err)
	}
	return payload.toAnalyzer(c.id), nil
}

func (c *Client) analyzers(ctx context.Context, path string) ([]connector.Analyzer, error) {
	var payload []analyzerPayload
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, fmt.Errorf("list analyzers: %w", err)
	}
	out := make([]connector.Analyzer, 0, len(payload))
	for _, p := range payload {
		out = append(out, p.toAnalyzer(c.id))
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	target := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", connector.ErrInstanceUnreachable, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("failed to close response body", zap.Error(cerr))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
