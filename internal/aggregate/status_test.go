package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/cortex-connector/internal/connector"
	"github.com/JakeFAU/cortex-connector/internal/connector/connectortest"
	"github.com/JakeFAU/cortex-connector/internal/pool"
)

func TestReduceStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		statuses []string
		want     string
	}{
		{name: "all ok", statuses: []string{"OK", "OK"}, want: "OK"},
		{name: "single ok", statuses: []string{"OK"}, want: "OK"},
		{name: "ok and warning", statuses: []string{"OK", "WARNING"}, want: "WARNING"},
		{name: "ok and error", statuses: []string{"OK", "ERROR"}, want: "WARNING"},
		{name: "ok and free form", statuses: []string{"OK", "AUTH_ERROR"}, want: "WARNING"},
		{name: "warning and error", statuses: []string{"WARNING", "ERROR"}, want: "ERROR"},
		{name: "only warning", statuses: []string{"WARNING"}, want: "ERROR"},
		{name: "only error", statuses: []string{"ERROR"}, want: "ERROR"},
		{name: "empty pool", statuses: nil, want: "ERROR"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			docs := make([]connector.StatusDocument, len(tt.statuses))
			for i, s := range tt.statuses {
				docs[i] = connector.StatusDocument{Status: s}
			}
			require.Equal(t, tt.want, ReduceStatus(docs))
		})
	}
}

func TestCompositeStatusKeepsConfigurationOrder(t *testing.T) {
	t.Parallel()

	slow := connectortest.NewInstance("slow")
	slow.Delay = 40 * time.Millisecond
	mid := connectortest.NewInstance("mid")
	mid.Delay = 20 * time.Millisecond
	fast := connectortest.NewInstance("fast")

	p, err := pool.New(slow, mid, fast)
	require.NoError(t, err)

	got := NewStatusAggregator(p, zap.NewNop()).CompositeStatus(context.Background())

	require.True(t, got.Enabled)
	require.Equal(t, connector.StatusOK, got.Status)
	require.Len(t, got.Servers, 3)
	require.Equal(t, "slow", got.Servers[0].Name)
	require.Equal(t, "mid", got.Servers[1].Name)
	require.Equal(t, "fast", got.Servers[2].Name)
}

func TestCompositeStatusWithUnreachableInstance(t *testing.T) {
	t.Parallel()

	up := connectortest.NewInstance("up")
	down := connectortest.NewInstance("down")
	down.StatusDoc = &connector.StatusDocument{Name: "down", Status: connector.StatusError, Error: "dial tcp: refused"}

	p, err := pool.New(up, down)
	require.NoError(t, err)

	got := NewStatusAggregator(p, nil).CompositeStatus(context.Background())

	require.Len(t, got.Servers, 2)
	require.Equal(t, connector.StatusWarning, got.Status)
	require.Equal(t, connector.StatusError, got.Servers[1].Status)
	require.Equal(t, 1, up.Calls("Status"))
	require.Equal(t, 1, down.Calls("Status"))
}

func TestCompositeStatusRepollsEveryCall(t *testing.T) {
	t.Parallel()

	inst := connectortest.NewInstance("a")
	p, err := pool.New(inst)
	require.NoError(t, err)
	agg := NewStatusAggregator(p, nil)

	require.Equal(t, connector.StatusOK, agg.CompositeStatus(context.Background()).Status)
	inst.StatusDoc = &connector.StatusDocument{Name: "a", Status: connector.StatusError}
	require.Equal(t, connector.StatusError, agg.CompositeStatus(context.Background()).Status)
	require.Equal(t, 2, inst.Calls("Status"))
}

func TestCompositeStatusEmptyPool(t *testing.T) {
	t.Parallel()

	p, err := pool.New()
	require.NoError(t, err)

	got := NewStatusAggregator(p, nil).CompositeStatus(context.Background())
	require.True(t, got.Enabled)
	require.Empty(t, got.Servers)
	require.Equal(t, connector.StatusError, got.Status)
}
