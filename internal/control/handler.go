package control

import (
	"context"
	"encoding/json"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/apperr"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/auth"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/inventorypoint"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/logger"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
)

const defaultTaskLogLimit = 20

// Triggerer queues a named job.
type Triggerer interface {
	Trigger(name string) error
}

type TaskLogs interface {
	Recent(ctx context.Context, limit int, typ model.TaskType) ([]model.SyncTaskLog, error)
}

type Handler struct {
	jobs     Triggerer
	points   inventorypoint.UseCase
	taskLogs TaskLogs
	clock    clock.Clock
	location *time.Location
	logger   logger.ZapLogger
}

func NewHandler(jobs Triggerer, points inventorypoint.UseCase, taskLogs TaskLogs, clk clock.Clock, loc *time.Location, log logger.ZapLogger) *Handler {
	if clk == nil {
		clk = clock.WallClock
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		jobs:     jobs,
		points:   points,
		taskLogs: taskLogs,
		clock:    clk,
		location: loc,
		logger:   log,
	}
}

// TriggerJob queues {"job": name} on the scheduler.
func (h *Handler) TriggerJob(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name := stringField(req, "job")
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "job is required")
	}
	if err := h.jobs.Trigger(name); err != nil {
		h.logger.Warn("failed to trigger job", zap.String("job", name), zap.Error(err))
		return nil, toStatus(err)
	}
	h.logger.Info("Job triggered", zap.String("job", name), zap.String("caller", auth.Caller(ctx)))

	return structpb.NewStruct(map[string]any{
		"job":      name,
		"accepted": true,
	})
}

// GetMergeSummary returns the per-region summary of {"date"}, yesterday by
// default.
func (h *Handler) GetMergeSummary(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	date, err := h.dateField(req)
	if err != nil {
		return nil, err
	}
	summary, err := h.points.Summary(ctx, date)
	if err != nil {
		h.logger.Error("failed to load merge summary", zap.Error(err))
		return nil, toStatus(err)
	}
	return toStruct(summary)
}

func (h *Handler) ListInventoryPoints(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	date, err := h.dateField(req)
	if err != nil {
		return nil, err
	}
	points, err := h.points.List(ctx, date, stringField(req, "marketplace"))
	if err != nil {
		h.logger.Error("failed to list inventory points", zap.Error(err))
		return nil, toStatus(err)
	}
	return toStruct(map[string]any{
		"data_date": model.FormatDate(date),
		"total":     len(points),
		"points":    points,
	})
}

// ListTaskLogs returns the newest task logs, optionally of one task_type.
func (h *Handler) ListTaskLogs(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	limit := defaultTaskLogLimit
	if v, ok := req.GetFields()["limit"]; ok {
		limit = int(v.GetNumberValue())
	}
	if limit <= 0 || limit > 500 {
		return nil, status.Errorf(codes.InvalidArgument, "limit must be in 1..500, got %d", limit)
	}
	logs, err := h.taskLogs.Recent(ctx, limit, model.TaskType(stringField(req, "task_type")))
	if err != nil {
		h.logger.Error("failed to list task logs", zap.Error(err))
		return nil, toStatus(err)
	}
	return toStruct(map[string]any{"logs": logs})
}

func (h *Handler) dateField(req *structpb.Struct) (time.Time, error) {
	raw := stringField(req, "date")
	if raw == "" {
		return model.DateOf(h.clock.Now().In(h.location)).AddDate(0, 0, -1), nil
	}
	date, err := model.ParseDate(raw)
	if err != nil {
		return time.Time{}, status.Errorf(codes.InvalidArgument, "date %q is not YYYY-MM-DD", raw)
	}
	return date, nil
}

func stringField(req *structpb.Struct, key string) string {
	return req.GetFields()[key].GetStringValue()
}

// toStruct goes through JSON so the response keys match the json tags.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, errors.NotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, errors.AlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, errors.NotValid), errors.Is(err, apperr.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, apperr.ErrScheduler):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// NewGRPCServer builds a server carrying SyncControl, health and reflection.
func NewGRPCServer(h *Handler, token string, log logger.ZapLogger) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(
		grpc.UnaryInterceptor(auth.UnaryInterceptor(token, log)),
	)
	RegisterControlServer(srv, h)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthSrv)

	reflection.Register(srv)
	return srv, healthSrv
}
