package router

import (
	"fmt"
	"sync/atomic"

	"github.com/JakeFAU/cortex-connector/internal/connector"
)

// Selection policy names accepted by NewSelector.
const (
	PolicyFirst      = "first"
	PolicyRoundRobin = "round_robin"
)

// Selector picks the target of a job submitted without an explicit instance.
// Candidates are already filtered to instances offering the analyzer and not
// reporting Error health, in configuration order.
type Selector interface {
	Select(candidates []connector.InstanceClient) (connector.InstanceClient, bool)
}

// NewSelector returns the Selector for policy. An empty policy means round robin.
func NewSelector(policy string) (Selector, error) {
	switch policy {
	case PolicyFirst:
		return FirstAvailable{}, nil
	case PolicyRoundRobin, "":
		return &RoundRobin{}, nil
	default:
		return nil, fmt.Errorf("unknown selection policy %q", policy)
	}
}

// FirstAvailable always picks the first candidate.
type FirstAvailable struct{}

// Select returns the first candidate.
func (FirstAvailable) Select(candidates []connector.InstanceClient) (connector.InstanceClient, bool) {
	if len(candidates) == 0 {
		return nil, false
	}
	return candidates[0], true
}

// RoundRobin rotates through candidates with a shared cursor. It is safe for
// concurrent use.
type RoundRobin struct {
	next atomic.Uint64
}

// Select returns the candidate under the cursor and advances it.
func (r *RoundRobin) Select(candidates []connector.InstanceClient) (connector.InstanceClient, bool) {
	if len(candidates) == 0 {
		return nil, false
	}
	n := r.next.Add(1) - 1
	return candidates[n%uint64(len(candidates))], true
}
