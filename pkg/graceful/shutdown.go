// Package graceful coordinates orderly shutdown: background workers
// stop first so no scan starts mid-teardown, then the HTTP server
// drains, then the database closes.
package graceful

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harvest-service/harvest_service/pkg/logger"
)

// Stopper is a background component that can be stopped
type Stopper interface {
	Stop()
}

// ShutdownManager owns the shutdown ordering
type ShutdownManager struct {
	server   *http.Server
	db       io.Closer
	timeout  time.Duration
	stoppers []Stopper
	logger   *logger.Logger
}

func NewShutdownManager(server *http.Server, db io.Closer, timeout time.Duration, log *logger.Logger) *ShutdownManager {
	return &ShutdownManager{
		server:  server,
		db:      db,
		timeout: timeout,
		logger:  log,
	}
}

// Register adds a component stopped before the server drains
func (sm *ShutdownManager) Register(s Stopper) {
	sm.stoppers = append(sm.stoppers, s)
}

// WaitForShutdown blocks until SIGINT/SIGTERM, then tears down in order
func (sm *ShutdownManager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sm.logger.Info("shutting down")

	for _, s := range sm.stoppers {
		s.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()
	if err := sm.server.Shutdown(ctx); err != nil {
		sm.logger.Error("server forced shutdown", "error", err)
	}

	if err := sm.db.Close(); err != nil {
		sm.logger.Warn("database close failed", "error", err)
	}

	sm.logger.Info("shutdown complete")
}
