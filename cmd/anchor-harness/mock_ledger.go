package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/config"
	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/mockledger"
	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/workspace"
)

const (
	defaultReadTimeout         = 5 * time.Second
	defaultShutdownGracePeriod = 10 * time.Second
)

func runMockLedger(cfg *config.Config) error {
	logger := newLogger(cfg)

	ledger := mockledger.New(mockledger.Options{Logger: logger})

	// Programs declared by the enclosing workspace count as deployed, so a
	// harness run against this ledger behaves like one against a freshly
	// provisioned test validator.
	if registry, err := workspace.Open(cfg.WorkspacePath); err == nil {
		for _, name := range registry.Programs() {
			program, err := registry.Resolve(name)
			if err != nil {
				logger.WithError(err).WithField("program", name).Warn("skipping undeployable program")
				continue
			}
			ledger.RegisterProgram(program.ID)
			logger.WithField("program", name).WithField("id", program.ID).Info("program deployed")
		}
	} else {
		logger.WithError(err).Warn("no workspace found, the ledger starts with no deployed programs")
	}

	registry := prometheus.NewRegistry()
	handler := mockledger.NewHandler(ledger, registry)
	defer handler.Close()

	server := &http.Server{
		Addr:        cfg.Endpoint,
		Handler:     handler,
		ReadTimeout: defaultReadTimeout,
	}

	logger.Infof("Starting mock ledger JSON RPC server on %v", cfg.Endpoint)

	go func() {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("mock ledger server encountered fatal error: %v", err)
		}
	}()
	var adminServer *http.Server
	if cfg.AdminEndpoint != "" {
		adminServer = &http.Server{Addr: cfg.AdminEndpoint, Handler: mockledger.NewAdminHandler(registry)}
		go func() {
			if err := adminServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("mock ledger admin server encountered fatal error: %v", err)
			}
		}()
	}

	// Shutdown gracefully when we receive an interrupt signal. Shutdown
	// closes all open listeners, then waits the grace period for
	// connections to return to idle before shutting down.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals

	shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), defaultShutdownGracePeriod)
	defer shutdownRelease()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("error during mock ledger server shutdown: %v", err)
	}
	if adminServer != nil {
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("error during mock ledger admin server shutdown: %v", err)
		}
	}
	return nil
}
