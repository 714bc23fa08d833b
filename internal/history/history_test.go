package history

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)

	require.NoError(t, s.Create(ctx, Record{ID: "r1", Dataset: "educ", Year: "2022"}))
	r, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, StatusInvoked, r.Status)
	assert.False(t, r.CreatedAt.IsZero())
	assert.Nil(t, r.StartedAt)

	require.NoError(t, s.MarkRunning(ctx, "r1"))
	r, _ = s.Get(ctx, "r1")
	assert.Equal(t, StatusRunning, r.Status)
	assert.NotNil(t, r.StartedAt)

	require.NoError(t, s.Finish(ctx, "r1", Outcome{Status: StatusCompleted, Filename: "educ_2022.zip", Logs: []string{"ok"}}))
	r, _ = s.Get(ctx, "r1")
	assert.Equal(t, StatusCompleted, r.Status)
	assert.Equal(t, "educ_2022.zip", r.Filename)
	assert.Equal(t, []string{"ok"}, r.Logs)
	assert.NotNil(t, r.FinishedAt)

	// A finished run does not go back to running.
	require.NoError(t, s.MarkRunning(ctx, "r1"))
	r, _ = s.Get(ctx, "r1")
	assert.Equal(t, StatusCompleted, r.Status)
}

func TestMemoryStoreUnknownID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)

	_, err := s.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.MarkRunning(ctx, "nope"), ErrNotFound)
	assert.ErrorIs(t, s.Finish(ctx, "nope", Outcome{Status: StatusFailed}), ErrNotFound)
}

func TestMemoryStoreEvictsOldest(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3)
	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Create(ctx, Record{ID: fmt.Sprintf("r%d", i)}))
	}

	list, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "r5", list[0].ID)
	assert.Equal(t, "r3", list[2].ID)

	_, err = s.Get(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)

	list, _ = s.List(ctx, 2)
	assert.Len(t, list, 2)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3)
	require.NoError(t, s.Create(ctx, Record{ID: "r1", Logs: []string{"a"}}))

	r, _ := s.Get(ctx, "r1")
	r.Logs[0] = "mutated"

	again, _ := s.Get(ctx, "r1")
	assert.Equal(t, []string{"a"}, again.Logs)
}

func TestTrimLogs(t *testing.T) {
	assert.Equal(t, []string{"c", "d"}, TrimLogs([]string{"a", "b", "c", "d"}, 2))
	assert.Equal(t, []string{"a"}, TrimLogs([]string{"a"}, 5))
	assert.Equal(t, []string{}, TrimLogs(nil, 5))
}
