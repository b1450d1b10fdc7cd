// Package connectortest provides in-memory connector collaborators for tests.
package connectortest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/JakeFAU/cortex-connector/internal/connector"
)

// Instance is a scriptable connector.InstanceClient. Zero values report an OK
// status and Ok health. Err, when set, is returned by every fallible call.
type Instance struct {
	InstanceID  string
	StatusDoc   *connector.StatusDocument
	HealthValue connector.Health
	Delay       time.Duration
	Analyzers   []connector.Analyzer
	Jobs        map[string]connector.Job
	Reports     map[string]connector.Report
	Err         error

	mu        sync.Mutex
	calls     map[string]int
	submitted []connector.JobRequest
	nextJob   int
}

// NewInstance returns an Instance with the given id offering analyzers.
func NewInstance(id string, analyzers ...connector.Analyzer) *Instance {
	for i := range analyzers {
		analyzers[i].InstanceID = id
	}
	return &Instance{
		InstanceID: id,
		Analyzers:  analyzers,
		Jobs:       map[string]connector.Job{},
		Reports:    map[string]connector.Report{},
	}
}

// ID returns the instance id.
func (f *Instance) ID() string { return f.InstanceID }

// Status returns StatusDoc or an OK document named after the instance.
func (f *Instance) Status(ctx context.Context) connector.StatusDocument {
	f.record("Status")
	if err := f.wait(ctx); err != nil {
		return connector.StatusDocument{Name: f.InstanceID, Status: connector.StatusError, Error: err.Error()}
	}
	if f.StatusDoc != nil {
		return *f.StatusDoc
	}
	return connector.StatusDocument{Name: f.InstanceID, Status: connector.StatusOK}
}

// Health returns HealthValue, defaulting to HealthOk.
func (f *Instance) Health(ctx context.Context) connector.Health {
	f.record("Health")
	if err := f.wait(ctx); err != nil {
		return connector.HealthError
	}
	if f.HealthValue == "" {
		return connector.HealthOk
	}
	return f.HealthValue
}

// SubmitJob records the request and returns a job with a sequential id.
func (f *Instance) SubmitJob(ctx context.Context, req connector.JobRequest) (connector.Job, error) {
	f.record("SubmitJob")
	if err := f.fail(ctx); err != nil {
		return connector.Job{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextJob++
	job := connector.Job{
		ID:         fmt.Sprintf("%s-job-%d", f.InstanceID, f.nextJob),
		InstanceID: f.InstanceID,
		AnalyzerID: req.AnalyzerID,
		ArtifactID: req.ArtifactID,
		DataType:   req.DataType,
		Status:     connector.JobStatusWaiting,
	}
	f.submitted = append(f.submitted, req)
	if f.Jobs == nil {
		f.Jobs = map[string]connector.Job{}
	}
	f.Jobs[job.ID] = job
	return job, nil
}

// GetJob returns a known job or ErrNotFound.
func (f *Instance) GetJob(ctx context.Context, jobID string) (connector.Job, error) {
	f.record("GetJob")
	if err := f.fail(ctx); err != nil {
		return connector.Job{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.Jobs[jobID]
	if !ok {
		return connector.Job{}, fmt.Errorf("job %s: %w", jobID, connector.ErrNotFound)
	}
	return job, nil
}

// GetReport returns a known report or ErrNotFound.
func (f *Instance) GetReport(ctx context.Context, jobID string) (connector.Report, error) {
	f.record("GetReport")
	if err := f.fail(ctx); err != nil {
		return connector.Report{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	report, ok := f.Reports[jobID]
	if !ok {
		return connector.Report{}, fmt.Errorf("report %s: %w", jobID, connector.ErrNotFound)
	}
	return report, nil
}

// ListAnalyzers returns every analyzer.
func (f *Instance) ListAnalyzers(ctx context.Context) ([]connector.Analyzer, error) {
	f.record("ListAnalyzers")
	if err := f.fail(ctx); err != nil {
		return nil, err
	}
	return append([]connector.Analyzer(nil), f.Analyzers...), nil
}

// AnalyzersFor returns analyzers accepting dataType.
func (f *Instance) AnalyzersFor(ctx context.Context, dataType string) ([]connector.Analyzer, error) {
	f.record("AnalyzersFor")
	if err := f.fail(ctx); err != nil {
		return nil, err
	}
	var out []connector.Analyzer
	for _, a := range f.Analyzers {
		for _, dt := range a.DataTypes {
			if dt == dataType {
				out = append(out, a)
				break
			}
		}
	}
	return out, nil
}

// GetAnalyzer returns the analyzer with the given id or ErrNotFound.
func (f *Instance) GetAnalyzer(ctx context.Context, analyzerID string) (connector.Analyzer, error) {
	f.record("GetAnalyzer")
	if err := f.fail(ctx); err != nil {
		return connector.Analyzer{}, err
	}
	for _, a := range f.Analyzers {
		if a.ID == analyzerID {
			return a, nil
		}
	}
	return connector.Analyzer{}, fmt.Errorf("analyzer %s: %w", analyzerID, connector.ErrNotFound)
}

// Calls returns how many times method was invoked.
func (f *Instance) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// TotalCalls returns the number of invocations across all methods.
func (f *Instance) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// Submitted returns the requests received by SubmitJob.
func (f *Instance) Submitted() []connector.JobRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]connector.JobRequest(nil), f.submitted...)
}

func (f *Instance) record(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[method]++
}

func (f *Instance) wait(ctx context.Context) error {
	if f.Delay <= 0 {
		return nil
	}
	select {
	case <-time.After(f.Delay):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("fake instance wait: %w", ctx.Err())
	}
}

func (f *Instance) fail(ctx context.Context) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	return f.Err
}

// MockPublisher is a testify mock of connector.Publisher.
type MockPublisher struct {
	mock.Mock
}

// Publish is the mock implementation of the Publish method.
func (m *MockPublisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	args := m.Called(ctx, topic, payload)
	return args.String(0), args.Error(1) //nolint:wrapcheck
}

// MockIndex is a testify mock of connector.JobIndex.
type MockIndex struct {
	mock.Mock
}

// Record is the mock implementation of the Record method.
func (m *MockIndex) Record(ctx context.Context, loc connector.JobLocation) error {
	args := m.Called(ctx, loc)
	return args.Error(0) //nolint:wrapcheck
}

// Lookup is the mock implementation of the Lookup method.
func (m *MockIndex) Lookup(ctx context.Context, jobID string) (connector.JobLocation, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).(connector.JobLocation), args.Error(1) //nolint:wrapcheck,forcetypeassert
}

// Clock is a fixed connector.Clock.
type Clock struct {
	Time time.Time
}

// Now returns the fixed time.
func (c Clock) Now() time.Time { return c.Time }
