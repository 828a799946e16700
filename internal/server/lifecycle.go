// Package server manages long-running services: ordered startup,
// signal-driven shutdown, and the single-goroutine pulse loop that
// drives the game simulation.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Service is a long-running component. Start blocks until the service
// ends or fails; Stop asks it to end and waits for it to finish.
type Service interface {
	Start() error
	Stop()
}

// Lifecycle starts registered services in order and stops them in
// reverse when a termination signal arrives or any service fails.
type Lifecycle struct {
	logger  *zap.Logger
	mu      sync.Mutex
	entries []lifecycleEntry
}

type lifecycleEntry struct {
	name string
	svc  Service
}

// NewLifecycle creates an empty lifecycle manager.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{logger: logger}
}

// Add registers a named service. Services start in registration order
// and stop in reverse.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, lifecycleEntry{name: name, svc: svc})
}

// Run starts every registered service and blocks until SIGINT or
// SIGTERM arrives, the context is cancelled, or a service's Start
// returns an error. It then stops all services in reverse order and
// returns the failure that triggered shutdown, if any.
//
// Postcondition: Every registered service has been stopped.
func (l *Lifecycle) Run(ctx context.Context) error {
	started := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	failures := make(chan error, len(l.entries))
	for _, ent := range l.entries {
		ent := ent
		go func() {
			l.logger.Info("service starting", zap.String("service", ent.name))
			if err := ent.svc.Start(); err != nil {
				failures <- fmt.Errorf("service %s: %w", ent.name, err)
				cancel()
			}
		}()
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	var cause error
	select {
	case sig := <-signals:
		l.logger.Info("signal received, shutting down", zap.String("signal", sig.String()))
	case cause = <-failures:
		l.logger.Error("service failed, shutting down", zap.Error(cause))
	case <-ctx.Done():
		// A failing service cancels the context after reporting; pick the
		// report up if it lost the select race.
		select {
		case cause = <-failures:
		default:
		}
	}

	for i := len(l.entries) - 1; i >= 0; i-- {
		ent := l.entries[i]
		ent.svc.Stop()
		l.logger.Info("service stopped", zap.String("service", ent.name))
	}

	l.logger.Info("shutdown complete", zap.Duration("uptime", time.Since(started)))
	return cause
}
