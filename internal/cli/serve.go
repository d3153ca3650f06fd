package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"victory-readmodel/internal/api"
	"victory-readmodel/internal/broadcast"
	"victory-readmodel/internal/dashboard"
	"victory-readmodel/internal/history"
	"victory-readmodel/internal/ingestion"
	"victory-readmodel/internal/observability"
)

const shutdownTimeout = 30 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	FromArchive bool
	Backfill    bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Refresh the dashboard on a schedule and serve it over HTTP",
		Long: `Refresh the dashboard snapshot on the configured cron schedule, record
each refresh to the history store, push it to Redis and WebSocket clients, and
serve the read API.

With --backfill every refresh first archives new ledger events. With
--from-archive pool, allocation and revenue events are all replayed from the
archive instead of being queried from the node; the locker and vault objects
are still read from the node.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.FromArchive, "from-archive", false, "replay events from the archive")
	cmd.Flags().BoolVar(&opts.Backfill, "backfill", false, "archive new events before each refresh")

	return cmd
}

func runServe(ctx context.Context, rootOpts *RootOptions, opts *ServeOptions) error {
	cfg, logger, err := setup(rootOpts)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(observability.DefaultNamespace)

	st, err := openStores(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer st.close()

	rpc := newRPCClient(cfg, logger, metrics)

	var events dashboard.EventSource = rpc
	if opts.FromArchive {
		events = dashboard.NewArchiveSource(st.events)
	}
	loader := newLoader(cfg, events, rpc, logger)
	defer loader.Close()

	hub := broadcast.NewHub(logger.Named("ws"), metrics)
	defer hub.Close()
	recorder := history.NewRecorder(st.pools, st.health, logger.Named("history"))

	server := api.NewServer(api.Options{
		Logger:  logger.Named("api"),
		Metrics: metrics,
		History: recorder,
		Stream:  hub,
	})
	sinks := []dashboard.Sink{server, hub, recorder}

	if cfg.Redis.Addr != "" {
		rdb, err := broadcast.NewRedisClient(ctx, broadcast.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			return err
		}
		defer rdb.Close()
		sinks = append(sinks, broadcast.NewRedisPublisher(rdb, cfg.Redis.Channel, cfg.Redis.Key, logger.Named("redis")))
	}

	refresher := dashboard.NewRefresher(loader, dashboard.RefresherOptions{
		Logger:  logger.Named("refresh"),
		Metrics: metrics,
		Sinks:   sinks,
	})
	server.SetRefresher(refresher)

	var backfiller *ingestion.Backfiller
	if opts.Backfill {
		backfiller = ingestion.NewBackfiller(ingestion.BackfillOptions{
			Source:  rpc,
			Store:   st.events,
			Cursors: st.cursors,
			Logger:  logger.Named("backfill"),
			Metrics: metrics,
		})
	}

	cycle := func() {
		if backfiller != nil {
			if _, err := backfiller.Backfill(ctx, cfg.Events.All()...); err != nil {
				logger.Warn("backfill failed", zap.Error(err))
			}
		}
		refresher.Refresh(ctx)
	}

	// Serve a snapshot before the first tick.
	cycle()

	scheduler := cron.New(cron.WithChain(
		cron.Recover(cronLogger{logger.Sugar()}),
		cron.SkipIfStillRunning(cronLogger{logger.Sugar()}),
	))
	if _, err := scheduler.AddFunc(cfg.Server.RefreshSchedule, cycle); err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}
	scheduler.Start()
	logger.Info("refresh scheduled", zap.String("schedule", cfg.Server.RefreshSchedule))

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errCh:
		logger.Error("http server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	<-scheduler.Stop().Done()
	if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("http shutdown", zap.Error(serr))
	}
	return err
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
