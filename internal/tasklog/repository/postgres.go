package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/juju/errors"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/postgres"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Insert(ctx context.Context, log *model.SyncTaskLog) error {
	query := `
        INSERT INTO sync_task_logs (
            task_id, task_type, task_date, status, start_time, run_id
        )
        VALUES (
            :task_id, :task_type, :task_date, :status, :start_time, :run_id
        )
    `
	row := *log
	row.TaskDate = model.DateOf(row.TaskDate)
	row.StartTime = row.StartTime.UTC()
	if _, err := r.DB.NamedExecContext(ctx, query, &row); err != nil {
		return postgres.Classify("insert sync_task_logs", err)
	}
	return nil
}

func (r *PGRepository) Close(ctx context.Context, log *model.SyncTaskLog) (bool, error) {
	query := `
        UPDATE sync_task_logs SET
            status = :status,
            end_time = :end_time,
            duration_seconds = :duration_seconds,
            records_processed = :records_processed,
            records_success = :records_success,
            records_failed = :records_failed,
            api_calls_count = :api_calls_count,
            retry_count = :retry_count,
            error_message = :error_message
        WHERE task_id = :task_id AND status = 'running'
    `
	row := *log
	if row.EndTime != nil {
		end := row.EndTime.UTC()
		row.EndTime = &end
	}
	res, err := r.DB.NamedExecContext(ctx, query, &row)
	if err != nil {
		return false, postgres.Classify("close sync_task_logs", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, postgres.Classify("close sync_task_logs", err)
	}
	return n == 1, nil
}

func (r *PGRepository) Get(ctx context.Context, taskID string) (*model.SyncTaskLog, error) {
	var log model.SyncTaskLog
	err := r.DB.GetContext(ctx, &log, r.DB.Rebind(`SELECT * FROM sync_task_logs WHERE task_id = ?`), taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFoundf("task %q", taskID)
	}
	if err != nil {
		return nil, postgres.Classify("get sync_task_logs", err)
	}
	return &log, nil
}

func (r *PGRepository) Recent(ctx context.Context, limit int, taskType model.TaskType) ([]model.SyncTaskLog, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT * FROM sync_task_logs`
	var args []any
	if taskType != "" {
		query += ` WHERE task_type = ?`
		args = append(args, string(taskType))
	}
	query += ` ORDER BY start_time DESC, task_id DESC LIMIT ?`
	args = append(args, limit)

	var logs []model.SyncTaskLog
	if err := r.DB.SelectContext(ctx, &logs, r.DB.Rebind(query), args...); err != nil {
		return nil, postgres.Classify("select sync_task_logs", err)
	}
	return logs, nil
}

func (r *PGRepository) CloseOverdue(ctx context.Context, startedBefore, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, r.DB.Rebind(`
        UPDATE sync_task_logs
        SET status = ?, end_time = ?, error_message = ?
        WHERE status = 'running' AND start_time < ?
    `), string(model.TaskTimeout), now.UTC(), "closed by overdue sweep", startedBefore.UTC())
	if err != nil {
		return 0, postgres.Classify("sweep sync_task_logs", err)
	}
	return res.RowsAffected()
}

func (r *PGRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, r.DB.Rebind(`DELETE FROM sync_task_logs WHERE task_date < ?`), model.DateOf(cutoff))
	if err != nil {
		return 0, postgres.Classify("delete sync_task_logs", err)
	}
	return res.RowsAffected()
}
