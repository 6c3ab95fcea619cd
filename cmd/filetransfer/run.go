package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/velmie/filetransfer"
	"github.com/velmie/filetransfer/adminapi"
	"github.com/velmie/filetransfer/prommetrics"
	"github.com/velmie/filetransfer/sqlstore"
)

var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the transfer daemon on its schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			return runDaemon(ctx, a)
		},
	}
}

func runDaemon(ctx context.Context, a *app) error {
	schedule, err := scheduleParser.Parse(a.cfg.Schedule)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", a.cfg.Schedule, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := prommetrics.New(reg, "")

	runLog := filetransfer.NewRunLog()
	daemon, err := a.newDaemon(ctx, metrics, runLog)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	scheduler := cron.New(
		cron.WithParser(scheduleParser),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger: a.logger})),
		cron.WithLogger(cronLogger{logger: a.logger}),
	)
	scheduler.Schedule(schedule, cron.FuncJob(func() {
		summary, err := daemon.Tick(gctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("transfer cycle failed", "run_id", summary.RunID, "err", err)
		}
		daemon.RecordPending(gctx, a.requests)
	}))
	g.Go(func() error {
		scheduler.Start()
		a.logger.Info("filetransfer daemon started",
			"schedule", a.cfg.Schedule,
			"batch_size", daemon.BatchSize(),
			"lock", a.cfg.Lock.Type,
		)
		<-gctx.Done()
		<-scheduler.Stop().Done()

		return nil
	})

	if a.cfg.Admin.Addr != "" {
		srv := &http.Server{
			Addr: a.cfg.Admin.Addr,
			Handler: adminapi.NewHandler(adminapi.Deps{
				Ledger:   a.ledger,
				RunLog:   runLog,
				Gatherer: reg,
				Observer: metrics,
				Logger:   a.logger,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			a.logger.Info("admin api listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin api: %w", err)
			}

			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), a.cfg.ShutdownTimeout)
			defer cancel()

			return srv.Shutdown(shutdownCtx)
		})
	}

	if a.cfg.Cleanup.Enabled {
		maintainer, err := sqlstore.NewCleanupMaintainer(a.db, a.errors, sqlstore.CleanupMaintainerConfig{
			Retention:  a.cfg.Cleanup.Retention,
			CheckEvery: a.cfg.Cleanup.Interval,
			Limit:      a.cfg.Cleanup.Limit,
			Logger:     a.logger,
		})
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := maintainer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			return nil
		})
	}

	err = g.Wait()
	a.logger.Info("filetransfer daemon stopped")

	return err
}

// cronLogger routes scheduler diagnostics to the daemon logger.
type cronLogger struct {
	logger interface {
		Debug(msg string, args ...any)
		Error(msg string, args ...any)
	}
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
