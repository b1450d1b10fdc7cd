package connector

import (
	"context"
	"io"
	"time"
)

// InstanceClient wraps one backend analysis engine instance.
//
// Status and Health never fail: an unreachable instance is reported as an ERROR
// document or HealthError. The remaining operations return ErrNotFound when the
// instance does not know the identifier.
type InstanceClient interface {
	ID() string
	Status(ctx context.Context) StatusDocument
	Health(ctx context.Context) Health
	SubmitJob(ctx context.Context, req JobRequest) (Job, error)
	GetJob(ctx context.Context, jobID string) (Job, error)
	GetReport(ctx context.Context, jobID string) (Report, error)
	ListAnalyzers(ctx context.Context) ([]Analyzer, error)
	AnalyzersFor(ctx context.Context, dataType string) ([]Analyzer, error)
	GetAnalyzer(ctx context.Context, analyzerID string) (Analyzer, error)
}

// InstancePool is the ordered, read-only set of configured instances.
type InstancePool interface {
	Instances() []InstanceClient
	Lookup(instanceID string) (InstanceClient, error)
}

// JobIndex remembers which instance owns a job.
type JobIndex interface {
	Record(ctx context.Context, loc JobLocation) error
	Lookup(ctx context.Context, jobID string) (JobLocation, error)
}

// Publisher pushes events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// ReportArchiver keeps a copy of finished reports.
type ReportArchiver interface {
	Archive(ctx context.Context, report Report) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
