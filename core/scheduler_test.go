package core

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerNewerVersionCancelsOlder(t *testing.T) {
	s := NewScheduler()

	v1, err := s.Begin(context.Background(), "file:///a.go", 1)
	require.NoError(t, err)
	assert.True(t, v1.Current())

	v2, err := s.Begin(context.Background(), "file:///a.go", 2)
	require.NoError(t, err)

	<-v1.Context().Done()
	assert.ErrorIs(t, context.Cause(v1.Context()), ErrSuperseded)
	assert.False(t, v1.Current())
	assert.False(t, v1.Finish(), "superseded results are not published")

	assert.NoError(t, v2.Context().Err())
	assert.True(t, v2.Finish())

	latest, ok := s.Latest("file:///a.go")
	require.True(t, ok)
	assert.Equal(t, int64(2), latest)
}

func TestSchedulerRefusesStaleVersion(t *testing.T) {
	s := NewScheduler()

	v3, err := s.Begin(context.Background(), "doc", 3)
	require.NoError(t, err)
	assert.True(t, v3.Finish())

	_, err = s.Begin(context.Background(), "doc", 2)
	assert.ErrorIs(t, err, ErrSuperseded)

	again, err := s.Begin(context.Background(), "doc", 3)
	require.NoError(t, err, "the current version may be resubmitted")
	assert.Equal(t, int64(3), again.Version())
	assert.True(t, again.Finish())
}

func TestSchedulerDocumentsAreIndependent(t *testing.T) {
	s := NewScheduler()

	a, err := s.Begin(context.Background(), "a", 5)
	require.NoError(t, err)
	b, err := s.Begin(context.Background(), "b", 1)
	require.NoError(t, err)

	assert.True(t, a.Current())
	assert.True(t, b.Current())
	assert.True(t, a.Finish())
	assert.True(t, b.Finish())
}

func TestSchedulerForget(t *testing.T) {
	s := NewScheduler()

	job, err := s.Begin(context.Background(), "doc", 7)
	require.NoError(t, err)

	s.Forget("doc")
	<-job.Context().Done()
	assert.False(t, job.Finish())

	_, ok := s.Latest("doc")
	assert.False(t, ok)

	_, err = s.Begin(context.Background(), "doc", 1)
	assert.NoError(t, err, "a forgotten document starts over")
}

func TestSchedulerParentCancellation(t *testing.T) {
	s := NewScheduler()
	ctx, cancel := context.WithCancel(context.Background())

	job, err := s.Begin(ctx, "doc", 1)
	require.NoError(t, err)
	cancel()

	<-job.Context().Done()
	assert.ErrorIs(t, context.Cause(job.Context()), context.Canceled)
	assert.True(t, job.Finish(), "a cancelled job is still the latest version")
}

func TestSchedulerRetainsRecentlyFinished(t *testing.T) {
	s := NewScheduler(WithRetention(2))

	busy, err := s.Begin(context.Background(), "busy", 1)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		job, err := s.Begin(context.Background(), fmt.Sprintf("doc%d", i), 3)
		require.NoError(t, err)
		require.True(t, job.Finish())
	}

	assert.Equal(t, 3, s.Len(), "two finished documents plus the running one")
	_, ok := s.Latest("doc0")
	assert.False(t, ok, "the oldest finished document is forgotten")
	assert.True(t, busy.Current(), "running jobs are never evicted")

	_, err = s.Begin(context.Background(), "doc4", 2)
	assert.ErrorIs(t, err, ErrSuperseded, "retained documents still refuse stale versions")

	// Restarting a finished document takes it off the idle list.
	again, err := s.Begin(context.Background(), "doc3", 4)
	require.NoError(t, err)
	for i := 5; i < 8; i++ {
		job, err := s.Begin(context.Background(), fmt.Sprintf("doc%d", i), 1)
		require.NoError(t, err)
		job.Finish()
	}
	assert.True(t, again.Current())
	assert.True(t, busy.Finish())
}
