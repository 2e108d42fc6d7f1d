package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/labsuite/labops/internal/api"
	"github.com/labsuite/labops/internal/config"
	"github.com/labsuite/labops/internal/crypto"
	"github.com/labsuite/labops/internal/middleware"
	"github.com/labsuite/labops/internal/push"
	"github.com/labsuite/labops/internal/security"
	"github.com/labsuite/labops/internal/service"
	"github.com/labsuite/labops/internal/session"
)

const (
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
)

func newServeCmd() *cobra.Command {
	var (
		inMemory bool
		opts     seedOptions
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: "Runs the REST API and the live master-data feeds. With --memory the server\n" +
			"keeps everything in process memory; pass the seed flags (and\n" +
			"LABOPS_ADMIN_PASSWORD) to create a first administrator.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(inMemory)
			if err != nil {
				return err
			}

			log := newLogger(cfg)
			if !cfg.Development() {
				gin.SetMode(gin.ReleaseMode)
			}

			var seedReq *seedOptions
			if cfg.InMemory() && !opts.empty() {
				opts.Password = os.Getenv("LABOPS_ADMIN_PASSWORD")
				if err := opts.validate(); err != nil {
					return err
				}
				seedReq = &opts
			}

			return serve(cmd.Context(), cfg, log, seedReq)
		},
	}

	cmd.Flags().BoolVar(&inMemory, "memory", false, "Use in-memory storage instead of PostgreSQL")
	opts.bindFlags(cmd)

	return cmd
}

// serve wires the stores, services and router and blocks until SIGINT or
// SIGTERM, then shuts down in order: live feeds, HTTP server, audit queue.
func serve(ctx context.Context, cfg *config.Config, log *logrus.Logger, seedReq *seedOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()

	hasher := crypto.NewHasher(crypto.DefaultParams)

	if seedReq != nil {
		if _, err := seed(ctx, b.directory, b.employees, hasher, *seedReq); err != nil {
			return err
		}
		log.WithField("email", seedReq.Email).Info("seeded administrator")
	}

	// Background work outlives the signal so in-flight requests can finish
	// and their audit records can drain.
	bgCtx, cancelBg := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelBg()

	worker := service.NewAuditWorker(b.audit, log, cfg.AuditQueueSize)
	hub := push.NewHub(log, push.Options{})
	sessions := session.NewManager(cfg.SessionSecret.Value(), cfg.SessionTTL)

	deps := &api.RouterDeps{
		Log:         log,
		DB:          b.health,
		Hub:         hub,
		Masters:     service.NewMasterService(b.masters, worker, hub, log),
		Audit:       service.NewAuditService(b.audit),
		Auth:        service.NewAuthService(b.users, hasher, sessions, security.NewBruteForceGuard(bgCtx, log), log),
		Employees:   service.NewEmployeeService(b.employees, hasher, worker, log),
		Batches:     service.NewBatchService(b.batches, b.masters, worker, hub, log),
		Sessions:    sessions,
		Users:       middleware.NewCachedUserChecker(bgCtx, b.users),
		CORSOrigins: cfg.CORSOrigins,
		Version:     config.Version,
		Development: cfg.Development(),
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.NewRouter(bgCtx, deps),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		// No WriteTimeout: the live feeds stream for the whole session.
	}

	g, gctx := errgroup.WithContext(ctx)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(bgCtx)
	}()

	g.Go(func() error {
		hub.Run(bgCtx)
		return nil
	})

	g.Go(func() error {
		log.WithFields(logrus.Fields{
			"addr":    cfg.Addr(),
			"store":   cfg.Store,
			"version": config.Version,
		}).Info("labops listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		hub.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}

		return nil
	})

	err = g.Wait()

	cancelBg()
	<-workerDone

	log.Info("shutdown complete")

	return err
}
