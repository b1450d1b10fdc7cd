// Package router resolves which instance(s) satisfy a job or analyzer request.
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/JakeFAU/cortex-connector/internal/connector"
	"github.com/JakeFAU/cortex-connector/internal/fanout"
	"github.com/JakeFAU/cortex-connector/internal/metrics"
)

var tracer = otel.Tracer("github.com/JakeFAU/cortex-connector/internal/router")

// Config controls Router side effects.
type Config struct {
	// Topic receives a JobSubmitted event per successful submission. Empty disables publishing.
	Topic string
}

// Router routes job, report and analyzer operations across the pool.
type Router struct {
	pool      connector.InstancePool
	selector  Selector
	index     connector.JobIndex
	publisher connector.Publisher
	archive   connector.ReportArchiver
	clock     connector.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Router. index, publisher and archive are optional.
func New(
	pool connector.InstancePool,
	selector Selector,
	index connector.JobIndex,
	publisher connector.Publisher,
	archive connector.ReportArchiver,
	clock connector.Clock,
	cfg Config,
	logger *zap.Logger,
) *Router {
	if selector == nil {
		selector = &RoundRobin{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		pool:      pool,
		selector:  selector,
		index:     index,
		publisher: publisher,
		archive:   archive,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// SubmitJob validates req and submits it to one instance. An explicit instance
// id routes exclusively there; otherwise the Selector chooses among instances
// offering the analyzer. Missing fields are rejected before any instance is contacted.
func (r *Router) SubmitJob(ctx context.Context, req connector.JobRequest) (connector.Job, error) {
	if err := req.Validate(); err != nil {
		return connector.Job{}, err
	}
	ctx, span := tracer.Start(ctx, "router.SubmitJob")
	defer span.End()
	span.SetAttributes(attribute.String("analyzer_id", req.AnalyzerID))

	target, err := r.resolveTarget(ctx, req)
	if err != nil {
		return connector.Job{}, err
	}
	job, err := target.SubmitJob(ctx, req)
	if err != nil {
		metrics.ObserveJobRouted(target.ID(), "submit", "error")
		return connector.Job{}, fmt.Errorf("submit job to %s: %w", target.ID(), err)
	}
	metrics.ObserveJobRouted(target.ID(), "submit", "ok")
	span.SetAttributes(attribute.String("instance_id", target.ID()))
	if job.InstanceID == "" {
		job.InstanceID = target.ID()
	}
	if job.ArtifactID == "" {
		job.ArtifactID = req.ArtifactID
	}
	if job.AnalyzerID == "" {
		job.AnalyzerID = req.AnalyzerID
	}
	r.logger.Info("job submitted",
		zap.String("job_id", job.ID),
		zap.String("instance_id", job.InstanceID),
		zap.String("analyzer_id", job.AnalyzerID),
		zap.String("artifact_id", job.ArtifactID),
	)
	r.remember(ctx, job)
	r.announce(ctx, job)
	return job, nil
}

// GetJob resolves a job without the caller knowing its instance.
func (r *Router) GetJob(ctx context.Context, jobID string) (connector.Job, error) {
	if jobID == "" {
		return connector.Job{}, connector.MissingField("job_id")
	}
	ctx, span := tracer.Start(ctx, "router.GetJob")
	defer span.End()
	job, _, err := r.locateJob(ctx, jobID)
	return job, err
}

// GetReport fetches the report of a job from its owning instance. Finished
// reports are handed to the archive when one is configured.
func (r *Router) GetReport(ctx context.Context, jobID string) (connector.Report, error) {
	if jobID == "" {
		return connector.Report{}, connector.MissingField("job_id")
	}
	ctx, span := tracer.Start(ctx, "router.GetReport")
	defer span.End()
	_, owner, err := r.locateJob(ctx, jobID)
	if err != nil {
		return connector.Report{}, err
	}
	report, err := owner.GetReport(ctx, jobID)
	if err != nil {
		metrics.ObserveJobRouted(owner.ID(), "report", "error")
		return connector.Report{}, fmt.Errorf("get report of %s from %s: %w", jobID, owner.ID(), err)
	}
	metrics.ObserveJobRouted(owner.ID(), "report", "ok")
	if report.InstanceID == "" {
		report.InstanceID = owner.ID()
	}
	if report.JobID == "" {
		report.JobID = jobID
	}
	if r.archive != nil && report.Status.Finished() {
		uri, err := r.archive.Archive(ctx, report)
		if err != nil {
			r.logger.Warn("report archive failed", zap.String("job_id", jobID), zap.Error(err))
		} else {
			r.logger.Debug("report archived", zap.String("job_id", jobID), zap.String("uri", uri))
		}
	}
	return report, nil
}

// ListAnalyzers concatenates every instance's analyzers in configuration order.
// Duplicates across instances are kept.
func (r *Router) ListAnalyzers(ctx context.Context) ([]connector.Analyzer, error) {
	return r.mergeAnalyzers(ctx, "list_analyzers", func(ctx context.Context, c connector.InstanceClient) ([]connector.Analyzer, error) {
		return c.ListAnalyzers(ctx)
	}), nil
}

// AnalyzersFor concatenates every instance's analyzers accepting dataType.
func (r *Router) AnalyzersFor(ctx context.Context, dataType string) ([]connector.Analyzer, error) {
	if dataType == "" {
		return nil, connector.MissingField("data_type")
	}
	return r.mergeAnalyzers(ctx, "analyzers_for", func(ctx context.Context, c connector.InstanceClient) ([]connector.Analyzer, error) {
		return c.AnalyzersFor(ctx, dataType)
	}), nil
}

// GetAnalyzer returns the analyzer from every instance that offers it, in
// configuration order. ErrNotFound when no instance does.
func (r *Router) GetAnalyzer(ctx context.Context, analyzerID string) ([]connector.Analyzer, error) {
	if analyzerID == "" {
		return nil, connector.MissingField("analyzer_id")
	}
	instances := r.pool.Instances()
	outcomes := fanout.Collect(ctx, instances, func(ctx context.Context, c connector.InstanceClient) (connector.Analyzer, error) {
		return c.GetAnalyzer(ctx, analyzerID)
	})
	var found []connector.Analyzer
	for i, o := range outcomes {
		if o.Err != nil {
			r.absorb(instances[i].ID(), "get_analyzer", o.Err)
			continue
		}
		a := o.Value
		if a.InstanceID == "" {
			a.InstanceID = instances[i].ID()
		}
		found = append(found, a)
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("analyzer %s: %w", analyzerID, connector.ErrNotFound)
	}
	return found, nil
}

func (r *Router) resolveTarget(ctx context.Context, req connector.JobRequest) (connector.InstanceClient, error) {
	if req.InstanceID != "" {
		target, err := r.pool.Lookup(req.InstanceID)
		if err != nil {
			return nil, fmt.Errorf("route job: %w", err)
		}
		return target, nil
	}
	candidates := r.candidates(ctx, req.AnalyzerID)
	target, ok := r.selector.Select(candidates)
	if !ok {
		return nil, fmt.Errorf("no available instance offers analyzer %s: %w", req.AnalyzerID, connector.ErrNotFound)
	}
	r.logger.Debug("instance selected",
		zap.String("instance_id", target.ID()),
		zap.String("analyzer_id", req.AnalyzerID),
		zap.Int("candidates", len(candidates)),
	)
	return target, nil
}

// candidates returns, in configuration order, the instances that offer
// analyzerID and are not reporting Error health.
func (r *Router) candidates(ctx context.Context, analyzerID string) []connector.InstanceClient {
	instances := r.pool.Instances()
	eligible := fanout.All(ctx, instances, func(ctx context.Context, c connector.InstanceClient) bool {
		if _, err := c.GetAnalyzer(ctx, analyzerID); err != nil {
			if !errors.Is(err, connector.ErrNotFound) {
				r.absorb(c.ID(), "select", err)
			}
			return false
		}
		return c.Health(ctx) != connector.HealthError
	})
	out := make([]connector.InstanceClient, 0, len(instances))
	for i, ok := range eligible {
		if ok {
			out = append(out, instances[i])
		}
	}
	return out
}

// locateJob finds the job and its owning instance. The index is consulted
// first; a miss, or an indexed instance that no longer knows the job, falls back
// to asking every instance. The first match in configuration order wins.
func (r *Router) locateJob(ctx context.Context, jobID string) (connector.Job, connector.InstanceClient, error) {
	var indexed connector.JobLocation
	if r.index != nil {
		loc, err := r.index.Lookup(ctx, jobID)
		switch {
		case err == nil:
			indexed = loc
			if owner, lerr := r.pool.Lookup(loc.InstanceID); lerr == nil {
				job, jerr := owner.GetJob(ctx, jobID)
				if jerr == nil {
					metrics.ObserveJobRouted(owner.ID(), "get", "ok")
					return enrich(job, owner.ID(), indexed), owner, nil
				}
				r.logger.Debug("indexed instance did not return job",
					zap.String("job_id", jobID),
					zap.String("instance_id", loc.InstanceID),
					zap.Error(jerr),
				)
			}
		case !errors.Is(err, connector.ErrNotFound):
			r.logger.Warn("job index lookup failed", zap.String("job_id", jobID), zap.Error(err))
		}
	}

	instances := r.pool.Instances()
	outcomes := fanout.Collect(ctx, instances, func(ctx context.Context, c connector.InstanceClient) (connector.Job, error) {
		return c.GetJob(ctx, jobID)
	})
	for i, o := range outcomes {
		if o.Err != nil {
			if !errors.Is(o.Err, connector.ErrNotFound) {
				r.absorb(instances[i].ID(), "get_job", o.Err)
			}
			continue
		}
		owner := instances[i]
		metrics.ObserveJobRouted(owner.ID(), "get", "ok")
		job := enrich(o.Value, owner.ID(), indexed)
		r.remember(ctx, job)
		return job, owner, nil
	}
	return connector.Job{}, nil, fmt.Errorf("job %s: %w", jobID, connector.ErrNotFound)
}

func enrich(job connector.Job, instanceID string, loc connector.JobLocation) connector.Job {
	job.InstanceID = instanceID
	if job.ArtifactID == "" {
		job.ArtifactID = loc.ArtifactID
	}
	if job.AnalyzerID == "" {
		job.AnalyzerID = loc.AnalyzerID
	}
	return job
}

func (r *Router) mergeAnalyzers(
	ctx context.Context,
	operation string,
	fn func(context.Context, connector.InstanceClient) ([]connector.Analyzer, error),
) []connector.Analyzer {
	instances := r.pool.Instances()
	outcomes := fanout.Collect(ctx, instances, fn)
	merged := make([]connector.Analyzer, 0)
	for i, o := range outcomes {
		if o.Err != nil {
			r.absorb(instances[i].ID(), operation, o.Err)
			continue
		}
		for _, a := range o.Value {
			if a.InstanceID == "" {
				a.InstanceID = instances[i].ID()
			}
			merged = append(merged, a)
		}
	}
	return merged
}

func (r *Router) absorb(instanceID, operation string, err error) {
	if errors.Is(err, connector.ErrNotFound) {
		return
	}
	metrics.ObserveFanoutFailure(instanceID, operation)
	r.logger.Warn("instance failed during fan-out",
		zap.String("instance_id", instanceID),
		zap.String("operation", operation),
		zap.Error(err),
	)
}

func (r *Router) remember(ctx context.Context, job connector.Job) {
	if r.index == nil || job.ID == "" {
		return
	}
	loc := connector.JobLocation{
		JobID:      job.ID,
		InstanceID: job.InstanceID,
		AnalyzerID: job.AnalyzerID,
		ArtifactID: job.ArtifactID,
		RecordedAt: r.now(),
	}
	if err := r.index.Record(ctx, loc); err != nil {
		r.logger.Warn("job index record failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (r *Router) announce(ctx context.Context, job connector.Job) {
	if r.publisher == nil || r.cfg.Topic == "" {
		return
	}
	event := connector.JobSubmitted{
		EventID:     uuid.NewString(),
		JobID:       job.ID,
		InstanceID:  job.InstanceID,
		AnalyzerID:  job.AnalyzerID,
		ArtifactID:  job.ArtifactID,
		SubmittedAt: r.now(),
	}
	id, err := r.publisher.Publish(ctx, r.cfg.Topic, event)
	if err != nil {
		r.logger.Warn("job submission publish failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	r.logger.Debug("job submission published", zap.String("job_id", job.ID), zap.String("message_id", id))
}

func (r *Router) now() time.Time {
	if r.clock == nil {
		return time.Now().UTC()
	}
	return r.clock.Now()
}
