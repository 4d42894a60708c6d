package model

import (
	"fmt"
	"time"
)

type TaskType string

const (
	TaskProductAnalytics TaskType = "product_analytics"
	TaskFbaInventory     TaskType = "fba_inventory"
	TaskInventoryDetails TaskType = "inventory_details"
	TaskInventoryMerge   TaskType = "inventory_merge"
	TaskCleanup          TaskType = "cleanup"
)

type TaskStatus string

const (
	TaskRunning TaskStatus = "running"
	TaskSuccess TaskStatus = "success"
	TaskFailed  TaskStatus = "failed"
	TaskTimeout TaskStatus = "timeout"
)

type SyncTaskLog struct {
	TaskID           string     `db:"task_id" json:"task_id"`
	TaskType         TaskType   `db:"task_type" json:"task_type"`
	TaskDate         time.Time  `db:"task_date" json:"task_date"`
	Status           TaskStatus `db:"status" json:"status"`
	StartTime        time.Time  `db:"start_time" json:"start_time"`
	EndTime          *time.Time `db:"end_time" json:"end_time,omitempty"`
	DurationSeconds  *float64   `db:"duration_seconds" json:"duration_seconds,omitempty"`
	RecordsProcessed int64      `db:"records_processed" json:"records_processed"`
	RecordsSuccess   int64      `db:"records_success" json:"records_success"`
	RecordsFailed    int64      `db:"records_failed" json:"records_failed"`
	APICallsCount    int64      `db:"api_calls_count" json:"api_calls_count"`
	RetryCount       int64      `db:"retry_count" json:"retry_count"`
	ErrorMessage     *string    `db:"error_message" json:"error_message,omitempty"`
	RunID            string     `db:"run_id" json:"run_id"`
}

// NewTaskID builds "{task_type}_{date}_{epoch}" with epoch in milliseconds.
func NewTaskID(t TaskType, date, now time.Time) string {
	return fmt.Sprintf("%s_%s_%d", t, date.Format("20060102"), now.UnixMilli())
}
