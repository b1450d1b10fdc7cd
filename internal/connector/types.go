package connector

import (
	"encoding/json"
	"time"
)

// Status strings reported in a StatusDocument. Instances may report other
// free-form values; only StatusOK has special meaning during reduction.
const (
	StatusOK      = "OK"
	StatusWarning = "WARNING"
	StatusError   = "ERROR"
)

// StatusDocument is one instance's status snapshot, produced fresh on every poll.
type StatusDocument struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// CompositeStatus is the reduction of every instance's status document.
type CompositeStatus struct {
	Enabled bool             `json:"enabled"`
	Servers []StatusDocument `json:"servers"`
	Status  string           `json:"status"`
}

// Health is the coarse health classification of an instance or of the pool.
type Health string

// Health values in precedence order.
const (
	HealthOk      Health = "Ok"
	HealthWarning Health = "Warning"
	HealthError   Health = "Error"
)

// JobStatus is the lifecycle state reported by the owning instance.
type JobStatus string

// Job states as reported by the analysis engine.
const (
	JobStatusWaiting    JobStatus = "Waiting"
	JobStatusInProgress JobStatus = "InProgress"
	JobStatusSuccess    JobStatus = "Success"
	JobStatusFailure    JobStatus = "Failure"
	JobStatusDeleted    JobStatus = "Deleted"
)

// Finished reports whether the job reached a state that carries a report.
func (s JobStatus) Finished() bool {
	return s == JobStatusSuccess || s == JobStatusFailure
}

// Job is one submitted analysis task, owned by exactly one instance.
type Job struct {
	ID           string     `json:"id"`
	InstanceID   string     `json:"instance_id"`
	AnalyzerID   string     `json:"analyzer_id"`
	AnalyzerName string     `json:"analyzer_name,omitempty"`
	ArtifactID   string     `json:"artifact_id,omitempty"`
	DataType     string     `json:"data_type,omitempty"`
	Status       JobStatus  `json:"status"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
}

// JobRequest carries everything needed to route and submit a job.
type JobRequest struct {
	InstanceID string         `json:"instance_id,omitempty"`
	AnalyzerID string         `json:"analyzer_id"`
	ArtifactID string         `json:"artifact_id"`
	DataType   string         `json:"data_type,omitempty"`
	Data       string         `json:"data,omitempty"`
	TLP        int            `json:"tlp,omitempty"`
	Message    string         `json:"message,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Validate checks the fields required for routing. It never contacts an instance.
func (r JobRequest) Validate() error {
	if r.AnalyzerID == "" {
		return MissingField("analyzer_id")
	}
	if r.ArtifactID == "" {
		return MissingField("artifact_id")
	}
	return nil
}

// Analyzer is an analysis capability offered by one instance.
type Analyzer struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Version     string   `json:"version,omitempty"`
	Description string   `json:"description,omitempty"`
	DataTypes   []string `json:"data_types,omitempty"`
	InstanceID  string   `json:"instance_id"`
}

// ReportArtifact is an observable extracted by an analyzer.
type ReportArtifact struct {
	DataType string `json:"data_type"`
	Data     string `json:"data"`
	Message  string `json:"message,omitempty"`
}

// Report is the outcome of a finished job as returned by its instance.
type Report struct {
	JobID        string           `json:"job_id"`
	InstanceID   string           `json:"instance_id"`
	Status       JobStatus        `json:"status"`
	Success      bool             `json:"success"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Summary      json.RawMessage  `json:"summary,omitempty"`
	Full         json.RawMessage  `json:"full,omitempty"`
	Artifacts    []ReportArtifact `json:"artifacts,omitempty"`
}

// JobLocation records which instance owns a job submitted through the connector.
type JobLocation struct {
	JobID      string    `json:"job_id"`
	InstanceID string    `json:"instance_id"`
	AnalyzerID string    `json:"analyzer_id"`
	ArtifactID string    `json:"artifact_id"`
	RecordedAt time.Time `json:"recorded_at"`
}

// JobSubmitted is the notification published after a successful submission.
type JobSubmitted struct {
	EventID     string    `json:"event_id"`
	JobID       string    `json:"job_id"`
	InstanceID  string    `json:"instance_id"`
	AnalyzerID  string    `json:"analyzer_id"`
	ArtifactID  string    `json:"artifact_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}
