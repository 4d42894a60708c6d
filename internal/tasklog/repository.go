package tasklog

import (
	"context"
	"time"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
)

type Repository interface {
	Insert(ctx context.Context, log *model.SyncTaskLog) error
	// Close writes the final counters and status of a running task. It
	// reports false when the task was already closed.
	Close(ctx context.Context, log *model.SyncTaskLog) (bool, error)
	Get(ctx context.Context, taskID string) (*model.SyncTaskLog, error)
	// Recent lists the newest logs first; an empty taskType matches all.
	Recent(ctx context.Context, limit int, taskType model.TaskType) ([]model.SyncTaskLog, error)
	// CloseOverdue marks tasks still running since before startedBefore as
	// timed out.
	CloseOverdue(ctx context.Context, startedBefore, now time.Time) (int64, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
