// Package signal is the process-wide termination controller: OS signals
// and fatal task errors both route through it, so every task can select on
// one Done() channel regardless of what triggered shutdown (spec §5, §7).
package signal

import (
	"context"
	"fmt"
	"os"
	goSignal "os/signal"
	"sync"
)

// Controller cancels Done() on the first shutdown signal (SIGINT/SIGTERM/
// SIGHUP; only os.Interrupt on Windows) or the first Fatal call, whichever
// comes first, and remembers the cause.
type Controller struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	cause error

	sigCh chan os.Signal
}

// NewController starts listening for shutdown signals and returns a ready
// Controller.
func NewController() *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		ctx:    ctx,
		cancel: cancel,
		sigCh:  make(chan os.Signal, 1),
	}
	goSignal.Notify(c.sigCh, shutdownSignals()...)
	go func() {
		if sig, ok := <-c.sigCh; ok {
			c.Fatal(fmt.Errorf("received signal: %s", sig))
		}
	}()
	return c
}

// Fatal records err as the termination cause, if one isn't already
// recorded, and cancels Done(). The signal watcher calls it on a shutdown
// signal, and cmd/anytun calls it when the packet pipeline or the sync
// server stops with an error, so the whole process exits (spec §5's
// fail-stop contract).
func (c *Controller) Fatal(err error) {
	c.mu.Lock()
	if c.cause == nil {
		c.cause = err
	}
	c.mu.Unlock()
	c.cancel()
}

// Err returns the recorded fatal cause, or nil if termination has not
// been triggered by an error.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cause
}

// Done returns a channel closed once termination has been triggered, by
// signal or by Fatal.
func (c *Controller) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Context returns a context canceled at the same moment Done() closes.
func (c *Controller) Context() context.Context {
	return c.ctx
}

// Stop releases the OS signal subscription and cancels Done() without
// recording a cause, for a clean programmatic shutdown.
func (c *Controller) Stop() {
	goSignal.Stop(c.sigCh)
	c.cancel()
}
