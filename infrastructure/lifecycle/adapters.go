package lifecycle

import (
	"context"
	"net/http"
	"time"
)

// RunLoop adapts a blocking Run(ctx) error method (the process synchronizer's
// sweep-then-subscribe loop) into a Module: Start launches it in a goroutine
// and returns immediately, Stop cancels it and waits for the goroutine to
// return or ctx to expire, whichever comes first.
type RunLoop struct {
	name   string
	run    func(ctx context.Context) error
	onErr  func(error)
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunLoop wraps run as a Module named name. onErr, if non-nil, receives
// any error Run returns once the loop exits (nil included, for clean exits).
func NewRunLoop(name string, run func(ctx context.Context) error, onErr func(error)) *RunLoop {
	return &RunLoop{name: name, run: run, onErr: onErr}
}

func (r *RunLoop) Name() string { return r.name }

func (r *RunLoop) Start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		err := r.run(loopCtx)
		if r.onErr != nil {
			r.onErr(err)
		}
	}()
	return nil
}

func (r *RunLoop) Stop(ctx context.Context) error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	select {
	case <-r.done:
	case <-ctx.Done():
	}
	return nil
}

// CronScheduler is the subset of scheduler.Scheduler lifecycle needs,
// avoiding an import cycle between infrastructure/lifecycle and
// internal/scheduler.
type CronScheduler interface {
	Start()
	Stop(ctx context.Context)
}

// Cron adapts a CronScheduler (non-blocking Start, context-aware Stop) into
// a Module.
type Cron struct {
	name string
	s    CronScheduler
}

// NewCron wraps s as a Module named name.
func NewCron(name string, s CronScheduler) *Cron {
	return &Cron{name: name, s: s}
}

func (c *Cron) Name() string { return c.name }

func (c *Cron) Start(ctx context.Context) error {
	c.s.Start()
	return nil
}

func (c *Cron) Stop(ctx context.Context) error {
	c.s.Stop(ctx)
	return nil
}

// HTTPServer adapts an *http.Server's ListenAndServe/Shutdown pair into a
// Module. Start returns ListenAndServe's error if it fails within 200ms
// (for example, the address is already in use); otherwise it returns nil
// after that wait, without checking that the listener is accepting, and any
// later error is reported through onErr.
type HTTPServer struct {
	name   string
	srv    *http.Server
	onErr  func(error)
	result chan error
}

// NewHTTPServer wraps srv as a Module named name.
func NewHTTPServer(name string, srv *http.Server, onErr func(error)) *HTTPServer {
	return &HTTPServer{name: name, srv: srv, onErr: onErr}
}

func (h *HTTPServer) Name() string { return h.name }

func (h *HTTPServer) Start(ctx context.Context) error {
	h.result = make(chan error, 1)
	go func() {
		err := h.srv.ListenAndServe()
		if err == http.ErrServerClosed {
			err = nil
		}
		h.result <- err
	}()
	select {
	case err := <-h.result:
		return err
	case <-time.After(200 * time.Millisecond):
		go func() {
			if err := <-h.result; err != nil && h.onErr != nil {
				h.onErr(err)
			}
		}()
		return nil
	}
}

func (h *HTTPServer) Stop(ctx context.Context) error {
	return h.srv.Shutdown(ctx)
}
