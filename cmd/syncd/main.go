// Command syncd pulls Sellfox ERP data into Postgres on a schedule and
// serves a small gRPC control surface.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/config"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/auth"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/control"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/logger"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/metrics"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/model"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/scheduler"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/syncjob"
)

const usage = `usage: syncd [-config FILE] [-env FILE] <command> [args]

commands:
  serve                                   run the scheduler, control server and metrics endpoint
  run <job> [-date YYYY-MM-DD] [-days N] [-keep N]
                                          run one job now and exit
  trigger <job> [-addr HOST:PORT]         queue a job on a running daemon
  check-config                            validate configuration and print it without secrets

jobs: %s
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := gnuflag.NewFlagSet("syncd", gnuflag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", envOr("CONFIG_FILE", "config.yaml"), "YAML configuration file")
	envPath := fs.String("env", ".env", "dotenv file; never overrides the environment")
	fs.Usage = func() {
		fmt.Fprintf(stderr, usage, strings.Join(syncjob.Jobs(), ", "))
	}
	if err := fs.Parse(false, args); err != nil {
		return 1
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 1
	}

	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		fmt.Fprintf(stderr, "syncd: %v\n", err)
		return 1
	}

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "check-config":
		return checkConfig(cfg, stdout, stderr)
	case "serve", "run", "trigger":
	default:
		fmt.Fprintf(stderr, "syncd: unknown command %q\n", cmd)
		fs.Usage()
		return 1
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "syncd: %v\n", err)
		return 1
	}

	log := newLogger(cfg)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "serve":
		err = serve(ctx, cfg, log)
	case "run":
		err = runOnce(ctx, cfg, cmdArgs, log, stderr)
	case "trigger":
		err = trigger(ctx, cfg, cmdArgs, stdout, stderr)
	}
	if err != nil {
		log.Error("syncd failed", zap.String("command", cmd), zap.Error(err))
		return 1
	}
	return 0
}

func checkConfig(cfg *config.Config, stdout, stderr io.Writer) int {
	out, _ := json.MarshalIndent(cfg.Sanitized(), "", "  ")
	fmt.Fprintln(stdout, string(out))
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "syncd: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "configuration OK")
	return 0
}

func runOnce(ctx context.Context, cfg *config.Config, args []string, log logger.ZapLogger, stderr io.Writer) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return errors.NotValidf("missing job name")
	}
	name := args[0]
	if !syncjob.IsJob(name) {
		return errors.NotFoundf("job %q (known: %s)", name, strings.Join(syncjob.Jobs(), ", "))
	}

	fs := gnuflag.NewFlagSet("run", gnuflag.ContinueOnError)
	fs.SetOutput(stderr)
	date := fs.String("date", "", "data date YYYY-MM-DD (default yesterday)")
	days := fs.Int("days", 0, "history days to refresh")
	keep := fs.Int("keep", 0, "days of data to keep when cleaning up")
	if err := fs.Parse(true, args[1:]); err != nil {
		return errors.Trace(err)
	}

	var p syncjob.Params
	if *date != "" {
		d, err := model.ParseDate(*date)
		if err != nil {
			return errors.NotValidf("date %q", *date)
		}
		p.Date = d
	}
	p.Days, p.KeepDays = *days, *keep

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	if err := a.service.Run(ctx, name, p); err != nil {
		return errors.Annotatef(err, "job %s", name)
	}
	log.Info("Job finished", zap.String("job", name), zap.Duration("elapsed", time.Since(start)))
	return nil
}

func serve(ctx context.Context, cfg *config.Config, log logger.ZapLogger) error {
	log.Info("Starting syncd", zap.Any("config", cfg.Sanitized()))

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if n, err := a.service.SweepOverdueTasks(ctx); err != nil {
		log.Warn("Startup sweep failed", zap.Error(err))
	} else if n > 0 {
		log.Info("Closed overdue task logs", zap.Int64("count", n))
	}

	jobs, err := scheduler.SyncJobs(cfg, a.service)
	if err != nil {
		return err
	}
	sched, err := scheduler.New(jobs, scheduler.Options{
		Workers:          cfg.Scheduler.Workers,
		Coalesce:         cfg.Scheduler.Coalesce,
		MisfireGraceTime: cfg.Scheduler.MisfireGraceTime,
		ShutdownTimeout:  cfg.Scheduler.ShutdownTimeout,
		Location:         a.location,
		Observer:         a.metrics,
	}, log)
	if err != nil {
		return err
	}

	handler := control.NewHandler(sched, a.points, a.tracker, nil, a.location, log)
	grpcServer, healthSrv := control.NewGRPCServer(handler, cfg.Server.ControlToken, log)

	port := cfg.Server.GRPCPort
	if !strings.Contains(port, ":") {
		port = ":" + port
	}
	lis, err := net.Listen("tcp", port)
	if err != nil {
		return errors.Annotatef(err, "listen on %s", port)
	}

	sched.Start()
	log.Info("Starting gRPC server", zap.String("port", port))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return errors.Annotate(grpcServer.Serve(lis), "grpc server")
	})
	g.Go(func() error {
		return metrics.Serve(gctx, cfg.Server.MetricsAddr, a.metrics, log)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		healthSrv.Shutdown()

		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.ShutdownTimeout+5*time.Second)
		defer cancel()
		err := sched.Stop(stopCtx)
		grpcServer.GracefulStop()
		return err
	})

	err = g.Wait()
	log.Info("Server stopped")
	return err
}

func trigger(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return errors.NotValidf("missing job name")
	}
	name := args[0]

	fs := gnuflag.NewFlagSet("trigger", gnuflag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", dialAddr(cfg.Server.GRPCPort), "control server address")
	if err := fs.Parse(true, args[1:]); err != nil {
		return errors.Trace(err)
	}

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return errors.Annotatef(err, "dial %s", *addr)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx,
		auth.TokenHeader, cfg.Server.ControlToken,
		auth.CallerHeader, "syncd-cli")

	req, err := structpb.NewStruct(map[string]any{"job": name})
	if err != nil {
		return errors.Trace(err)
	}
	resp, err := control.NewClient(conn).TriggerJob(ctx, req)
	if err != nil {
		return errors.Annotatef(err, "trigger %s", name)
	}
	out, _ := json.Marshal(resp.AsMap())
	fmt.Fprintln(stdout, string(out))
	return nil
}

func dialAddr(port string) string {
	if strings.HasPrefix(port, ":") {
		return "localhost" + port
	}
	if !strings.Contains(port, ":") {
		return "localhost:" + port
	}
	return port
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
