// Package lifecycle sequences startup and shutdown of the daemon's
// long-lived tasks (process synchronizer, scheduler, HTTP server), grounded
// on the teacher's module lifecycle manager (ordered start, reverse-order
// stop, rollback already-started modules if one in the sequence fails).
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/next-hat/nanocl-sub000/infrastructure/logging"
)

// Module is one long-lived task the daemon starts in order and stops in
// reverse order.
type Module interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Manager runs registered modules in registration order and tears them
// down in reverse order.
type Manager struct {
	modules []Module
	started []Module
	log     *logging.Logger
}

// New returns an empty Manager.
func New(log *logging.Logger) *Manager {
	return &Manager{log: log}
}

// Register appends m to the start sequence.
func (mgr *Manager) Register(m Module) {
	mgr.modules = append(mgr.modules, m)
}

// Start starts every registered module in order. If one fails, every
// already-started module is stopped in reverse order before returning the
// error, so a failed boot never leaves a partial set of tasks running.
func (mgr *Manager) Start(ctx context.Context) error {
	for _, m := range mgr.modules {
		start := time.Now()
		if err := m.Start(ctx); err != nil {
			mgr.log.WithFields(map[string]interface{}{"module": m.Name()}).WithError(err).Error("module failed to start, rolling back")
			mgr.stopReverse(ctx, mgr.started)
			mgr.started = nil
			return fmt.Errorf("start %s: %w", m.Name(), err)
		}
		mgr.started = append(mgr.started, m)
		mgr.log.WithFields(map[string]interface{}{"module": m.Name(), "took": time.Since(start).String()}).Info("module started")
	}
	return nil
}

// Stop stops every started module in reverse order, continuing past
// individual failures so one stuck module doesn't leak the rest.
func (mgr *Manager) Stop(ctx context.Context) {
	mgr.stopReverse(ctx, mgr.started)
	mgr.started = nil
}

func (mgr *Manager) stopReverse(ctx context.Context, started []Module) {
	for i := len(started) - 1; i >= 0; i-- {
		m := started[i]
		if err := m.Stop(ctx); err != nil {
			mgr.log.WithFields(map[string]interface{}{"module": m.Name()}).WithError(err).Error("module stop failed")
		}
	}
}
