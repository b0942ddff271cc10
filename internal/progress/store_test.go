package progress_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JamesPrial/tasksync/internal/progress"
)

func newTestGormStore(t *testing.T) *progress.GormStore {
	t.Helper()
	store, err := progress.NewGormStore(filepath.Join(t.TempDir(), "nested", "progress.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func Test_NewGormStore_RequiresPath(t *testing.T) {
	t.Parallel()
	_, err := progress.NewGormStore("")
	assert.Error(t, err)
}

func Test_GormStore_CreateAndGet(t *testing.T) {
	t.Parallel()
	store := newTestGormStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "alice", "2024-06-01")
	assert.ErrorIs(t, err, progress.ErrNotFound)

	rec, err := store.Create(ctx, progress.DailyProgress{OwnerID: "alice", Date: "2024-06-01", DailyGoal: 5})
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := store.Get(ctx, "alice", "2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, 5, got.DailyGoal)
	assert.Equal(t, 0, got.TotalTasks)
}

func Test_GormStore_UniquePerOwnerAndDate(t *testing.T) {
	t.Parallel()
	store := newTestGormStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, progress.DailyProgress{OwnerID: "alice", Date: "2024-06-01", DailyGoal: 5})
	require.NoError(t, err)

	_, err = store.Create(ctx, progress.DailyProgress{OwnerID: "alice", Date: "2024-06-01", DailyGoal: 3})
	assert.Error(t, err)

	_, err = store.Create(ctx, progress.DailyProgress{OwnerID: "bob", Date: "2024-06-01", DailyGoal: 3})
	assert.NoError(t, err)
}

func Test_GormStore_Updates(t *testing.T) {
	t.Parallel()
	store := newTestGormStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, progress.DailyProgress{OwnerID: "alice", Date: "2024-06-01", DailyGoal: 5})
	require.NoError(t, err)

	require.NoError(t, store.UpdateCounts(ctx, rec.ID, 4, 2))
	require.NoError(t, store.UpdateGoal(ctx, rec.ID, 8))

	got, err := store.Get(ctx, "alice", "2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, 4, got.TotalTasks)
	assert.Equal(t, 2, got.CompletedTasks)
	assert.Equal(t, 8, got.DailyGoal)

	assert.ErrorIs(t, store.UpdateCounts(ctx, 9999, 1, 1), progress.ErrNotFound)
}

func Test_GormStore_ListNewestFirst(t *testing.T) {
	t.Parallel()
	store := newTestGormStore(t)
	ctx := context.Background()

	for _, d := range []string{"2024-06-01", "2024-06-03", "2024-06-02"} {
		_, err := store.Create(ctx, progress.DailyProgress{OwnerID: "alice", Date: taskDate(d), DailyGoal: 5})
		require.NoError(t, err)
	}
	_, err := store.Create(ctx, progress.DailyProgress{OwnerID: "bob", Date: "2024-06-04", DailyGoal: 5})
	require.NoError(t, err)

	recs, err := store.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.EqualValues(t, "2024-06-03", recs[0].Date)
	assert.EqualValues(t, "2024-06-01", recs[2].Date)
}
