package connector

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMissingFieldMatchesSentinel(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("submit: %w", MissingField("analyzer_id"))
	require.ErrorIs(t, err, ErrMissingField)
	require.NotErrorIs(t, err, ErrNotFound)

	var mf *MissingFieldError
	require.True(t, errors.As(err, &mf))
	require.Equal(t, "analyzer_id", mf.Field)
}

func TestInstanceNotFoundIsNotFound(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, ErrInstanceNotFound, ErrNotFound)
	require.NotErrorIs(t, ErrNotFound, ErrInstanceNotFound)
}

func TestJobRequestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		req   JobRequest
		field string
	}{
		{name: "missing analyzer", req: JobRequest{ArtifactID: "a"}, field: "analyzer_id"},
		{name: "missing artifact", req: JobRequest{AnalyzerID: "x"}, field: "artifact_id"},
		{name: "both missing reports analyzer first", req: JobRequest{}, field: "analyzer_id"},
		{name: "complete", req: JobRequest{AnalyzerID: "x", ArtifactID: "a"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.req.Validate()
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			var mf *MissingFieldError
			require.ErrorAs(t, err, &mf)
			require.Equal(t, tt.field, mf.Field)
		})
	}
}

func TestJobStatusFinished(t *testing.T) {
	t.Parallel()

	require.True(t, JobStatusSuccess.Finished())
	require.True(t, JobStatusFailure.Finished())
	require.False(t, JobStatusWaiting.Finished())
	require.False(t, JobStatusInProgress.Finished())
	require.False(t, JobStatusDeleted.Finished())
}
