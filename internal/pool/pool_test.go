package pool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/cortex-connector/internal/connector"
)

func TestNewPreservesOrderAndLookup(t *testing.T) {
	t.Parallel()

	p, err := New(stub("b"), stub("a"), stub("c"))
	require.NoError(t, err)
	require.Equal(t, 3, p.Len())
	require.Equal(t, []string{"b", "a", "c"}, p.IDs())

	got, err := p.Lookup("a")
	require.NoError(t, err)
	require.Equal(t, "a", got.ID())

	_, err = p.Lookup("missing")
	require.ErrorIs(t, err, connector.ErrInstanceNotFound)
	require.ErrorIs(t, err, connector.ErrNotFound)
}

func TestNewRejectsBadMembers(t *testing.T) {
	t.Parallel()

	_, err := New(stub("a"), stub("a"))
	require.ErrorContains(t, err, "duplicate instance id")

	_, err = New(stub(""))
	require.ErrorContains(t, err, "instance id is required")

	_, err = New(stub("a"), nil)
	require.ErrorContains(t, err, "is nil")
}

func TestInstancesReturnsCopy(t *testing.T) {
	t.Parallel()

	p, err := New(stub("a"), stub("b"))
	require.NoError(t, err)

	list := p.Instances()
	list[0] = stub("z")
	require.Equal(t, []string{"a", "b"}, p.IDs())
}

func TestEmptyPool(t *testing.T) {
	t.Parallel()

	p, err := New()
	require.NoError(t, err)
	require.Zero(t, p.Len())
	require.Empty(t, p.Instances())
}

type stub string

func (s stub) ID() string { return string(s) }

func (s stub) Status(context.Context) connector.StatusDocument {
	return connector.StatusDocument{Name: string(s), Status: connector.StatusOK}
}

func (stub) Health(context.Context) connector.Health { return connector.HealthOk }

func (stub) SubmitJob(context.Context, connector.JobRequest) (connector.Job, error) {
	return connector.Job{}, nil
}

func (stub) GetJob(context.Context, string) (connector.Job, error) { return connector.Job{}, nil }

func (stub) GetReport(context.Context, string) (connector.Report, error) {
	return connector.Report{}, nil
}

func (stub) ListAnalyzers(context.Context) ([]connector.Analyzer, error) { return nil, nil }

func (stub) AnalyzersFor(context.Context, string) ([]connector.Analyzer, error) { return nil, nil }

func (stub) GetAnalyzer(context.Context, string) (connector.Analyzer, error) {
	return connector.Analyzer{}, nil
}
