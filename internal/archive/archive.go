// Package archive keeps copies of finished job reports in a blob store.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"go.uber.org/zap"

	"github.com/JakeFAU/cortex-connector/internal/connector"
)

// Archiver writes reports as JSON objects named <prefix>/<instance>/<job>.json.
type Archiver struct {
	store  connector.BlobStore
	prefix string
	logger *zap.Logger
}

var _ connector.ReportArchiver = (*Archiver)(nil)

// New returns an Archiver over store.
func New(store connector.BlobStore, prefix string, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{store: store, prefix: prefix, logger: logger}
}

// Archive stores report and returns the object URI.
func (a *Archiver) Archive(ctx context.Context, report connector.Report) (string, error) {
	if report.JobID == "" {
		return "", connector.MissingField("job_id")
	}
	if report.InstanceID == "" {
		return "", connector.MissingField("instance_id")
	}
	body, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	name := ObjectPath(a.prefix, report.InstanceID, report.JobID)
	uri, err := a.store.PutObject(ctx, name, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("store report %s: %w", report.JobID, err)
	}
	a.logger.Debug("report stored", zap.String("job_id", report.JobID), zap.String("uri", uri))
	return uri, nil
}

// ObjectPath returns the object name for a report.
func ObjectPath(prefix, instanceID, jobID string) string {
	return path.Join(prefix, instanceID, jobID+".json")
}
