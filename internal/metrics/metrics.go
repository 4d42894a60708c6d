// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/logger"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
)

const namespace = "sellfox_sync"

// Collector records API calls, job runs and closed tasks. It satisfies the
// observer interfaces of the ERP client, the scheduler and the task log.
type Collector struct {
	registry *prometheus.Registry

	apiCalls    *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiRetries  *prometheus.CounterVec
	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	tasks       *prometheus.CounterVec
	records     *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		apiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_calls_total",
			Help:      "ERP API attempts by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_call_seconds",
			Help:      "ERP API attempt latency.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"endpoint"}),
		apiRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_retries_total",
			Help:      "ERP API retries by endpoint.",
		}, []string{"endpoint"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by outcome.",
		}, []string{"job", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of scheduled job runs.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200},
		}, []string{"job"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Closed task logs by type and status.",
		}, []string{"task_type", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records handled by closed tasks.",
		}, []string{"task_type", "result"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "End time of the last successful task per type.",
		}, []string{"task_type"}),
	}
	c.registry.MustRegister(
		c.apiCalls, c.apiLatency, c.apiRetries,
		c.jobRuns, c.jobDuration,
		c.tasks, c.records, c.lastSuccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) ObserveAPICall(endpoint, outcome string, elapsed time.Duration) {
	c.apiCalls.WithLabelValues(endpoint, outcome).Inc()
	c.apiLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveAPIRetry(endpoint string) {
	c.apiRetries.WithLabelValues(endpoint).Inc()
}

func (c *Collector) ObserveJobRun(name, outcome string, elapsed time.Duration) {
	c.jobRuns.WithLabelValues(name, outcome).Inc()
	if elapsed > 0 {
		c.jobDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	}
}

func (c *Collector) ObserveTask(log *model.SyncTaskLog) {
	typ := string(log.TaskType)
	c.tasks.WithLabelValues(typ, string(log.Status)).Inc()
	c.records.WithLabelValues(typ, "success").Add(float64(log.RecordsSuccess))
	c.records.WithLabelValues(typ, "failed").Add(float64(log.RecordsFailed))
	if log.Status == model.TaskSuccess && log.EndTime != nil {
		c.lastSuccess.WithLabelValues(typ).Set(float64(log.EndTime.Unix()))
	}
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, c *Collector, log logger.ZapLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Metrics server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Annotatef(err, "metrics server on %s", addr)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Annotate(err, "shutdown metrics server")
		}
		<-errCh
		return nil
	}
}
