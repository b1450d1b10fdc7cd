package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/cortex-connector/internal/connector"
)

// JobIndex is an in-memory connector.JobIndex.
type JobIndex struct {
	mu   sync.RWMutex
	locs map[string]connector.JobLocation
}

var _ connector.JobIndex = (*JobIndex)(nil)

// NewJobIndex creates an empty index.
func NewJobIndex() *JobIndex {
	return &JobIndex{locs: make(map[string]connector.JobLocation)}
}

// Record stores or replaces the location of a job.
func (s *JobIndex) Record(_ context.Context, loc connector.JobLocation) error {
	if loc.JobID == "" {
		return connector.MissingField("job_id")
	}
	if loc.InstanceID == "" {
		return connector.MissingField("instance_id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locs[loc.JobID] = loc
	return nil
}

// Lookup returns the location of jobID or connector.ErrNotFound.
func (s *JobIndex) Lookup(_ context.Context, jobID string) (connector.JobLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, ok := s.locs[jobID]
	if !ok {
		return connector.JobLocation{}, fmt.Errorf("job location %s: %w", jobID, connector.ErrNotFound)
	}
	return loc, nil
}
