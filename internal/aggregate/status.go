package aggregate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/cortex-connector/internal/connector"
	"github.com/JakeFAU/cortex-connector/internal/fanout"
	"github.com/JakeFAU/cortex-connector/internal/metrics"
)

// StatusAggregator polls every instance's status document.
type StatusAggregator struct {
	pool   connector.InstancePool
	logger *zap.Logger
}

// NewStatusAggregator constructs a StatusAggregator over pool.
func NewStatusAggregator(pool connector.InstancePool, logger *zap.Logger) *StatusAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusAggregator{pool: pool, logger: logger}
}

// CompositeStatus polls all instances and reduces their documents. It never
// fails: each client reports its own unreachability as an ERROR document, so the
// result always holds exactly one document per instance in configuration order.
func (a *StatusAggregator) CompositeStatus(ctx context.Context) connector.CompositeStatus {
	docs := fanout.All(ctx, a.pool.Instances(), func(ctx context.Context, c connector.InstanceClient) connector.StatusDocument {
		start := time.Now()
		doc := c.Status(ctx)
		metrics.ObserveInstancePoll(c.ID(), "status", time.Since(start))
		metrics.SetInstanceUp(c.ID(), doc.Status == connector.StatusOK)
		if doc.Status != connector.StatusOK {
			a.logger.Warn("instance status degraded",
				zap.String("instance_id", c.ID()),
				zap.String("status", doc.Status),
				zap.String("error", doc.Error),
			)
		}
		return doc
	})
	composite := connector.CompositeStatus{
		Enabled: true,
		Servers: docs,
		Status:  ReduceStatus(docs),
	}
	a.logger.Debug("composite status computed",
		zap.Int("instances", len(docs)),
		zap.String("status", composite.Status),
	)
	return composite
}

// ReduceStatus applies the status precedence policy to a set of documents.
// An empty set reduces to ERROR.
func ReduceStatus(docs []connector.StatusDocument) string {
	distinct := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		distinct[d.Status] = struct{}{}
	}
	_, hasOK := distinct[connector.StatusOK]
	switch {
	case hasOK && len(distinct) == 1:
		return connector.StatusOK
	case hasOK:
		return connector.StatusWarning
	default:
		return connector.StatusError
	}
}
