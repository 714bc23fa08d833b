// Package generation runs report generations on behalf of HTTP and CLI
// callers: it records each run, optionally serializes identical runs and
// mirrors successful outputs.
package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/orsg/prisme/internal/engine"
	"github.com/orsg/prisme/internal/history"
	"github.com/orsg/prisme/internal/pkg/distlock"
	"github.com/orsg/prisme/internal/pkg/logger"
)

// Publisher mirrors a finished report somewhere else.
type Publisher interface {
	Publish(ctx context.Context, dir, name string) (string, error)
}

// LockFactory returns a fresh lock for key.
type LockFactory func(key string) distlock.DistLock

// Options configures an Orchestrator. Every field is optional.
type Options struct {
	History     history.Store
	Publisher   Publisher
	OutputDir   string
	Locks       LockFactory
	LockWait    time.Duration // how long to wait for an identical run to finish
	LockTTL     time.Duration // TTL re-applied while a run holds an expiring lock
	MaxLogLines int
}

// Outcome is a generation result tagged with its history id.
type Outcome struct {
	ID string `json:"id"`
	engine.Result
}

// Orchestrator wraps a ReportGenerator with bookkeeping.
type Orchestrator struct {
	gen  engine.ReportGenerator
	opts Options
}

// New creates an orchestrator. A nil History gets an in-memory store.
func New(gen engine.ReportGenerator, opts Options) *Orchestrator {
	if opts.History == nil {
		opts.History = history.NewMemoryStore(0)
	}
	if opts.LockWait <= 0 {
		opts.LockWait = 15 * time.Minute
	}
	return &Orchestrator{gen: gen, opts: opts}
}

// Generator exposes the wrapped generator.
func (o *Orchestrator) Generator() engine.ReportGenerator { return o.gen }

// History exposes the run store.
func (o *Orchestrator) History() history.Store { return o.opts.History }

// Run performs one generation. The caller's cancellation is ignored once the
// run is accepted: a disconnected client never kills a started process.
func (o *Orchestrator) Run(ctx context.Context, datasetID, year string) (Outcome, error) {
	ctx = context.WithoutCancel(ctx)
	id := uuid.NewString()
	log := logger.With("run_id", id, "dataset", datasetID, "year", year)

	if err := o.opts.History.Create(ctx, history.Record{ID: id, Dataset: datasetID, Year: year}); err != nil {
		log.Warn("history create failed", "error", err)
	}

	if o.opts.Locks != nil {
		lock := o.opts.Locks(datasetID + ":" + year)
		waitCtx, cancel := context.WithTimeout(ctx, o.opts.LockWait)
		err := distlock.Wait(waitCtx, lock, 250*time.Millisecond)
		cancel()
		if err != nil {
			msg := fmt.Sprintf("another generation of %s %s is still running", datasetID, year)
			o.finish(ctx, id, history.Outcome{Status: history.StatusFailed, Error: msg}, log)
			return Outcome{ID: id}, fmt.Errorf("%s: %w", msg, err)
		}
		defer func() {
			if err := lock.Release(ctx); err != nil {
				log.Warn("generation lock release failed", "error", err)
			}
		}()
		defer o.keepAlive(ctx, lock, log)()
	}

	if err := o.opts.History.MarkRunning(ctx, id); err != nil {
		log.Warn("history update failed", "error", err)
	}

	res, err := o.gen.Generate(ctx, datasetID, year)
	if err != nil {
		o.finish(ctx, id, history.Outcome{Status: history.StatusFailed, Error: err.Error()}, log)
		return Outcome{ID: id}, err
	}

	status := history.StatusFailed
	if res.Success {
		status = history.StatusCompleted
	}
	o.finish(ctx, id, history.Outcome{
		Status:   status,
		Filename: res.Filename,
		Error:    res.Error,
		Logs:     history.TrimLogs(res.Logs, o.opts.MaxLogLines),
	}, log)

	if res.Success && o.opts.Publisher != nil {
		if uri, perr := o.opts.Publisher.Publish(ctx, o.opts.OutputDir, res.Filename); perr != nil {
			log.Warn("report publish failed", "file", res.Filename, "error", perr)
		} else {
			log.Info("report published", "uri", uri)
		}
	}

	return Outcome{ID: id, Result: res}, nil
}

// keepAlive refreshes an expiring lock every third of its TTL until the
// returned stop func is called. Locks without a TTL are left alone.
func (o *Orchestrator) keepAlive(ctx context.Context, lock distlock.DistLock, log *logger.Logger) func() {
	ext, ok := lock.(distlock.Extender)
	if !ok || o.opts.LockTTL <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(o.opts.LockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := ext.Extend(ctx, o.opts.LockTTL); err != nil {
					log.Warn("generation lock refresh failed", "error", err)
				}
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}

func (o *Orchestrator) finish(ctx context.Context, id string, out history.Outcome, log *logger.Logger) {
	if err := o.opts.History.Finish(ctx, id, out); err != nil {
		log.Warn("history finish failed", "error", err)
	}
}
