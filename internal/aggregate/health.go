package aggregate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/cortex-connector/internal/connector"
	"github.com/JakeFAU/cortex-connector/internal/fanout"
	"github.com/JakeFAU/cortex-connector/internal/metrics"
)

// HealthAggregator polls every instance's coarse health.
type HealthAggregator struct {
	pool   connector.InstancePool
	logger *zap.Logger
}

// NewHealthAggregator constructs a HealthAggregator over pool.
func NewHealthAggregator(pool connector.InstancePool, logger *zap.Logger) *HealthAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthAggregator{pool: pool, logger: logger}
}

// CompositeHealth polls all instances and reduces their health values.
func (a *HealthAggregator) CompositeHealth(ctx context.Context) connector.Health {
	values := fanout.All(ctx, a.pool.Instances(), func(ctx context.Context, c connector.InstanceClient) connector.Health {
		start := time.Now()
		h := c.Health(ctx)
		metrics.ObserveInstancePoll(c.ID(), "health", time.Since(start))
		if h != connector.HealthOk {
			a.logger.Warn("instance health degraded",
				zap.String("instance_id", c.ID()),
				zap.String("health", string(h)),
			)
		}
		return h
	})
	composite := ReduceHealth(values)
	metrics.SetCompositeHealth(rank(composite))
	return composite
}

// ReduceHealth applies the health precedence policy. Ok mixed with anything,
// Error included, is Warning. Without Ok, any Error wins. Everything else,
// the empty set included, is Warning.
func ReduceHealth(values []connector.Health) connector.Health {
	distinct := make(map[connector.Health]struct{}, len(values))
	for _, v := range values {
		distinct[v] = struct{}{}
	}
	_, hasOk := distinct[connector.HealthOk]
	_, hasError := distinct[connector.HealthError]
	switch {
	case hasOk && len(distinct) == 1:
		return connector.HealthOk
	case hasOk:
		return connector.HealthWarning
	case hasError:
		return connector.HealthError
	default:
		return connector.HealthWarning
	}
}

func rank(h connector.Health) int {
	switch h {
	case connector.HealthOk:
		return 0
	case connector.HealthError:
		return 2
	default:
		return 1
	}
}
