package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task is a unit of periodic work.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// TaskFunc adapts a function to Task.
type TaskFunc struct {
	TaskName string
	Fn       func(ctx context.Context) error
}

func (f TaskFunc) Name() string                  { return f.TaskName }
func (f TaskFunc) Run(ctx context.Context) error { return f.Fn(ctx) }

// Observer receives the outcome of each run.
type Observer interface {
	ObserveTask(name string, d time.Duration, err error)
}

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Time between runs (default: 60s)
	Timeout  time.Duration // Per-run timeout (default: 2m)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 60 * time.Second,
		Timeout:  2 * time.Minute,
	}
}

// Poller periodically runs a Task.
type Poller struct {
	cfg      Config
	task     Task
	logger   *slog.Logger
	observer Observer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, task Task, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Poller{
		cfg:    cfg,
		task:   task,
		logger: logger.With("task", task.Name()),
	}
}

// SetObserver registers an observer for run outcomes. Call before Start.
func (p *Poller) SetObserver(o Observer) {
	p.observer = o
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("poller started",
		"interval", p.cfg.Interval,
		"timeout", p.cfg.Timeout,
	)

	return nil
}

// Stop stops scheduling new runs and waits for the in-flight run, if any,
// until ctx expires.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Run immediately on start.
	p.runOnce()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.runOnce()
		}
	}
}

// runOnce executes the task with the per-run timeout.
func (p *Poller) runOnce() {
	start := time.Now()

	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	err := p.task.Run(ctx)
	elapsed := time.Since(start)

	if p.observer != nil {
		p.observer.ObserveTask(p.task.Name(), elapsed, err)
	}

	if err != nil {
		p.logger.Warn("task run failed",
			"err", err,
			"duration", elapsed,
		)
		return
	}

	p.logger.Debug("task run complete", "duration", elapsed)
}
