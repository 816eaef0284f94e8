package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/leave-governance/api"
	"github.com/warp/leave-governance/attendance"
	"github.com/warp/leave-governance/config"
	"github.com/warp/leave-governance/directory"
	"github.com/warp/leave-governance/generic"
	"github.com/warp/leave-governance/identity"
	"github.com/warp/leave-governance/leave"
	"github.com/warp/leave-governance/metrics"
	"github.com/warp/leave-governance/notify"
	"github.com/warp/leave-governance/store/memory"
	"github.com/warp/leave-governance/store/postgres"
	"github.com/warp/leave-governance/store/sqlite"
)

var bootstrapAdmin string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&bootstrapAdmin, "bootstrap-admin", "", "create an admin employee with this id if it does not exist")
}

// backend is what every store driver provides.
type backend interface {
	leave.TxStore
	attendance.Store
}

func openStore(ctx context.Context, cfg *config.Config) (backend, func() error, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		st, err := postgres.Open(ctx, cfg.PostgresOptions())
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case config.DriverSQLite:
		st, err := sqlite.New(cfg.Database.DSN)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case config.DriverMemory:
		return memory.New(), func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}

// openNotifier always logs notices; Redis is added when enabled.
func openNotifier(cfg *config.Config, log *zap.Logger) (notify.Notifier, *redis.Client, error) {
	targets := notify.Multi{notify.NewLog(log)}
	if !cfg.Redis.Enabled {
		return targets, nil, nil
	}
	client, err := notify.Dial(cfg.RedisOptions())
	if err != nil {
		return nil, nil, err
	}
	return append(targets, notify.NewRedis(client, cfg.Redis.Channel)), client, nil
}

func ensureAdmin(ctx context.Context, engine *leave.Engine, st backend, id string) error {
	if _, err := st.GetEmployee(ctx, id); err == nil {
		return nil
	} else if !generic.IsNotFound(err) {
		return err
	}
	system := directory.Actor{EmployeeID: "system", Role: directory.RoleAdmin}
	_, err := engine.Onboard(ctx, system, directory.Employee{
		ID:     generic.EntityID(id),
		Name:   "Administrator",
		Role:   directory.RoleAdmin,
		Active: true,
	}, nil)
	return err
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	attPolicy, err := cfg.AttendancePolicy()
	if err != nil {
		return err
	}
	leavePolicy, err := cfg.LeavePolicy()
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Database.Driver, err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("close store", zap.Error(err))
		}
	}()

	notifier, redisClient, err := openNotifier(cfg, log)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	reg := metrics.New()

	leaves := leave.NewEngine(st, leavePolicy, notifier, log.Named("leave"))
	leaves.Metrics = reg
	att := attendance.NewEngine(st, leaves, attPolicy, log.Named("attendance"))
	att.Metrics = reg
	dir := directory.NewService(st, log.Named("directory"))

	if bootstrapAdmin != "" {
		if err := ensureAdmin(ctx, leaves, st, bootstrapAdmin); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	handler := api.NewHandler(leaves, att, dir, log.Named("api"))
	handler.DocumentsDir = cfg.Documents.Dir
	handler.MaxDocumentSize = cfg.Documents.MaxSize

	tokens := identity.NewTokens(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TTL)
	router := api.NewRouter(handler, api.RouterOptions{
		Resolver:       identity.NewResolver(tokens, st),
		Metrics:        reg,
		Logger:         log.Named("http"),
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})

	scheduler := api.NewDigestScheduler(att, notifier, log.Named("digest"))
	scheduler.Metrics = reg
	scheduler.Enabled = cfg.Scheduler.Enabled
	scheduler.Interval = cfg.Scheduler.Interval
	scheduler.PDFDir = cfg.Scheduler.PDFDir
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.Int("port", cfg.HTTP.Port),
			zap.String("driver", cfg.Database.Driver),
			zap.Bool("redis", cfg.Redis.Enabled),
			zap.Bool("scheduler", cfg.Scheduler.Enabled))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
