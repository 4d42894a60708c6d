package repository

import (
	"context"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/postgres/postgrestest"
)

var start = time.Date(2024, 7, 2, 1, 0, 0, 0, time.UTC)

func insert(t *testing.T, repo *PGRepository, id string, typ model.TaskType, date time.Time, at time.Time) {
	t.Helper()
	require.NoError(t, repo.Insert(context.Background(), &model.SyncTaskLog{
		TaskID: id, TaskType: typ, TaskDate: date, Status: model.TaskRunning, StartTime: at, RunID: id + "-run",
	}))
}

func TestCloseOnlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewPGRepository(postgrestest.NewDB(t))
	insert(t, repo, "a", model.TaskCleanup, start, start)

	end := start.Add(time.Minute)
	log := &model.SyncTaskLog{TaskID: "a", Status: model.TaskSuccess, EndTime: &end, RecordsProcessed: 3, RecordsSuccess: 3}
	closed, err := repo.Close(ctx, log)
	require.NoError(t, err)
	assert.True(t, closed)

	log.Status = model.TaskFailed
	closed, err = repo.Close(ctx, log)
	require.NoError(t, err)
	assert.False(t, closed)

	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, model.TaskSuccess, got.Status)
	assert.Equal(t, "a-run", got.RunID)
}

func TestGetMissing(t *testing.T) {
	repo := NewPGRepository(postgrestest.NewDB(t))
	_, err := repo.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestRecent(t *testing.T) {
	ctx := context.Background()
	repo := NewPGRepository(postgrestest.NewDB(t))
	insert(t, repo, "a", model.TaskCleanup, start, start)
	insert(t, repo, "b", model.TaskFbaInventory, start, start.Add(time.Minute))
	insert(t, repo, "c", model.TaskCleanup, start, start.Add(2*time.Minute))

	all, err := repo.Recent(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].TaskID)

	cleanup, err := repo.Recent(ctx, 1, model.TaskCleanup)
	require.NoError(t, err)
	require.Len(t, cleanup, 1)
	assert.Equal(t, "c", cleanup[0].TaskID)
}

func TestDeleteBefore(t *testing.T) {
	ctx := context.Background()
	repo := NewPGRepository(postgrestest.NewDB(t))
	insert(t, repo, "old", model.TaskCleanup, start.AddDate(0, 0, -90), start)
	insert(t, repo, "new", model.TaskCleanup, start, start)

	n, err := repo.DeleteBefore(ctx, start.AddDate(0, 0, -60))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	_, err = repo.Get(ctx, "new")
	assert.NoError(t, err)
}
