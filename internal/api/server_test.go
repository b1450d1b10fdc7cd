package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/cortex-connector/internal/aggregate"
	"github.com/JakeFAU/cortex-connector/internal/config"
	"github.com/JakeFAU/cortex-connector/internal/connector"
	"github.com/JakeFAU/cortex-connector/internal/connector/connectortest"
	"github.com/JakeFAU/cortex-connector/internal/pool"
	"github.com/JakeFAU/cortex-connector/internal/router"
)

func testConfig() config.Config {
	return config.Config{Server: config.ServerConfig{Port: 8080, RequestTimeoutSeconds: 5}}
}

type fixture struct {
	a, b   *connectortest.Instance
	server *Server
}

func newFixture(t *testing.T, cfg config.Config) fixture {
	t.Helper()
	a := connectortest.NewInstance("a",
		connector.Analyzer{ID: "abuse", Name: "Abuse_Finder", DataTypes: []string{"ip"}},
		connector.Analyzer{ID: "whois", Name: "Whois", DataTypes: []string{"domain"}},
	)
	b := connectortest.NewInstance("b",
		connector.Analyzer{ID: "abuse", Name: "Abuse_Finder", DataTypes: []string{"ip"}},
	)
	p, err := pool.New(a, b)
	require.NoError(t, err)
	jobs := router.New(p, router.FirstAvailable{}, nil, nil, nil, nil, router.Config{}, nil)
	s := NewServer(aggregate.NewStatusAggregator(p, nil), aggregate.NewHealthAggregator(p, nil), jobs, cfg, zap.NewNop())
	return fixture{a: a, b: b, server: s}
}

func (f fixture) do(t *testing.T, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Probes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig())
	rec := f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = f.do(t, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"health":"Ok"`)

	rec = f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ReadyzUnavailableWhenPoolInError(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig())
	f.a.HealthValue = connector.HealthError
	f.b.HealthValue = connector.HealthError

	rec := f.do(t, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Status(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig())
	f.b.StatusDoc = &connector.StatusDocument{Name: "b", Status: connector.StatusError, Error: "down"}

	rec := f.do(t, http.MethodGet, "/api/connector/cortex/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got connector.CompositeStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.True(t, got.Enabled)
	require.Equal(t, connector.StatusWarning, got.Status)
	require.Len(t, got.Servers, 2)
	require.Equal(t, "a", got.Servers[0].Name)
	require.Equal(t, "b", got.Servers[1].Name)
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig())
	f.b.HealthValue = connector.HealthWarning

	rec := f.do(t, http.MethodGet, "/api/connector/cortex/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"health":"Warning"}`, rec.Body.String())
}

func TestServer_SubmitJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig())
	rec := f.do(t, http.MethodPost, "/api/connector/cortex/job",
		`{"instance_id":"b","analyzer_id":"abuse","artifact_id":"art-1","data_type":"ip","data":"1.2.3.4"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var job connector.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	require.Equal(t, "b", job.InstanceID)
	require.Equal(t, "art-1", job.ArtifactID)
	require.Len(t, f.b.Submitted(), 1)
}

func TestServer_SubmitJobErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig())
	tests := []struct {
		name string
		body string
		code int
	}{
		{"invalid json", `{bad`, http.StatusBadRequest},
		{"missing analyzer", `{"artifact_id":"art"}`, http.StatusBadRequest},
		{"missing artifact", `{"analyzer_id":"abuse"}`, http.StatusBadRequest},
		{"unknown instance", `{"instance_id":"zzz","analyzer_id":"abuse","artifact_id":"art"}`, http.StatusNotFound},
		{"no instance offers analyzer", `{"analyzer_id":"nope","artifact_id":"art"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := f.do(t, http.MethodPost, "/api/connector/cortex/job", tt.body)
		require.Equal(t, tt.code, rec.Code, tt.name)
		require.Contains(t, rec.Body.String(), `"error"`, tt.name)
	}
	require.Zero(t, f.a.Calls("SubmitJob"))
	require.Zero(t, f.b.Calls("SubmitJob"))
}

func TestServer_GetJobAndReport(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig())
	f.b.Jobs["j1"] = connector.Job{ID: "j1", Status: connector.JobStatusSuccess}
	f.b.Reports["j1"] = connector.Report{Status: connector.JobStatusSuccess, Success: true}

	rec := f.do(t, http.MethodGet, "/api/connector/cortex/job/j1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"instance_id":"b"`)

	rec = f.do(t, http.MethodGet, "/api/connector/cortex/job/j1/report", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"success":true`)

	rec = f.do(t, http.MethodGet, "/api/connector/cortex/job/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Analyzers(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig())

	rec := f.do(t, http.MethodGet, "/api/connector/cortex/analyzer", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []connector.Analyzer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Len(t, all, 3)

	rec = f.do(t, http.MethodGet, "/api/connector/cortex/analyzer/type/domain", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var byType []connector.Analyzer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &byType))
	require.Len(t, byType, 1)
	require.Equal(t, "whois", byType[0].ID)

	rec = f.do(t, http.MethodGet, "/api/connector/cortex/analyzer/abuse", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var matches []connector.Analyzer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &matches))
	require.Len(t, matches, 2)

	rec = f.do(t, http.MethodGet, "/api/connector/cortex/analyzer/unknown", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_APIKey(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Auth = config.AuthConfig{Enabled: true, APIKey: "secret"}
	f := newFixture(t, cfg)

	rec := f.do(t, http.MethodGet, "/api/connector/cortex/status", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/connector/cortex/status?api_key=secret", "")
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/connector/cortex/health", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

type failingRouter struct {
	err error
}

func (f failingRouter) SubmitJob(context.Context, connector.JobRequest) (connector.Job, error) {
	return connector.Job{}, f.err
}

func (f failingRouter) GetJob(context.Context, string) (connector.Job, error) {
	return connector.Job{}, f.err
}

func (f failingRouter) GetReport(context.Context, string) (connector.Report, error) {
	return connector.Report{}, f.err
}

func (f failingRouter) ListAnalyzers(context.Context) ([]connector.Analyzer, error) {
	return nil, f.err
}

func (f failingRouter) AnalyzersFor(context.Context, string) ([]connector.Analyzer, error) {
	return nil, f.err
}

func (f failingRouter) GetAnalyzer(context.Context, string) ([]connector.Analyzer, error) {
	return nil, f.err
}

type staticHealth connector.Health

func (h staticHealth) CompositeHealth(context.Context) connector.Health { return connector.Health(h) }

type staticStatus struct{}

func (staticStatus) CompositeStatus(context.Context) connector.CompositeStatus {
	return connector.CompositeStatus{Enabled: true, Status: connector.StatusError}
}

func TestServer_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		code int
	}{
		{connector.MissingField("job_id"), http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", connector.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("wrap: %w", connector.ErrInstanceNotFound), http.StatusNotFound},
		{fmt.Errorf("wrap: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("backend exploded"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		s := NewServer(staticStatus{}, staticHealth(connector.HealthOk), failingRouter{err: tt.err}, testConfig(), nil)
		req := httptest.NewRequest(http.MethodGet, "/api/connector/cortex/job/j1", nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		require.Equal(t, tt.code, rec.Code, tt.err.Error())
	}
}

type panicRouter struct {
	failingRouter
}

func (panicRouter) ListAnalyzers(context.Context) ([]connector.Analyzer, error) {
	panic("boom")
}

func TestServer_RecoversPanics(t *testing.T) {
	t.Parallel()

	s := NewServer(staticStatus{}, staticHealth(connector.HealthOk), panicRouter{}, testConfig(), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/connector/cortex/analyzer", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_PropagatesRequestID(t *testing.T) {
	t.Parallel()

	s := NewServer(staticStatus{}, staticHealth(connector.HealthOk), failingRouter{}, testConfig(), nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
