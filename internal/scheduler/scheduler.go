// Package scheduler implements instance.Scheduler on top of
// github.com/robfig/cron/v3, the external collaborator the instance
// manager calls into for cron-scheduled Jobs (spec.md §4.6.5).
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/next-hat/nanocl-sub000/infrastructure/logging"
)

// Scheduler wraps a cron.Cron, tracking entry IDs by job key so
// Unschedule can find the right entry to remove.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	log     *logging.Logger
}

// New returns a Scheduler with second-level precision disabled (standard
// five-field cron expressions, matching what operators write in a
// Statefile's Schedule field).
func New(log *logging.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
		log:     log,
	}
}

// Start runs the cron scheduler's dispatch loop in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the scheduler and waits for any running job to complete.
func (s *Scheduler) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
}

// Schedule registers fn to run on cronExpr, replacing any prior schedule
// for the same jobKey.
func (s *Scheduler) Schedule(jobKey, cronExpr string, fn func(context.Context)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.entries[jobKey]; ok {
		s.cron.Remove(prev)
		delete(s.entries, jobKey)
	}

	id, err := s.cron.AddFunc(cronExpr, func() {
		s.log.WithFields(map[string]interface{}{"job_key": jobKey}).Info("scheduled job firing")
		fn(context.Background())
	})
	if err != nil {
		return fmt.Errorf("schedule job %q: %w", jobKey, err)
	}
	s.entries[jobKey] = id
	return nil
}

// Unschedule removes jobKey's cron entry, if any.
func (s *Scheduler) Unschedule(jobKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[jobKey]; ok {
		s.cron.Remove(id)
		delete(s.entries, jobKey)
	}
}
