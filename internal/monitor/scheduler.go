package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "stockwatch/pkg/logx"
)

const minInterval = time.Second

// Scheduler drives the engine's RunCycle at a fixed interval. Cycles never
// overlap: a tick arriving while a cycle is still running is delayed until
// that cycle finishes (cron.DelayIfStillRunning), and Stop waits for the
// in-flight cycle before the timer dies.
type Scheduler struct {
	interval time.Duration
	run      func(ctx context.Context) error
	log      logx.Logger

	mu        sync.Mutex
	c         *cron.Cron
	runCtx    context.Context
	runCancel context.CancelFunc
	kickWG    sync.WaitGroup
}

func NewScheduler(interval time.Duration, run func(ctx context.Context) error, log logx.Logger) *Scheduler {
	if interval < minInterval {
		interval = 5 * time.Minute
	}
	return &Scheduler{interval: interval, run: run, log: log}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}

	s.runCtx, s.runCancel = context.WithCancel(ctx)
	job := func() {
		if s.runCtx.Err() != nil {
			return
		}
		if err := s.run(s.runCtx); err != nil {
			s.log.Error("cycle failed", logx.Err(err))
		}
	}

	// The chain serializes every invocation of wrapped, including the
	// immediate kick below, through one mutex.
	chain := cron.NewChain(cron.DelayIfStillRunning(cronLogger{s.log}))
	wrapped := chain.Then(cron.FuncJob(job))

	s.c = cron.New()
	s.c.Schedule(cron.Every(s.interval), wrapped)
	s.c.Start()

	// cron fires only after a full interval; run the first cycle now.
	s.kickWG.Add(1)
	go func() {
		defer s.kickWG.Done()
		wrapped.Run()
	}()

	s.log.Info("scheduler started", logx.Duration("interval", s.interval))
	return nil
}

// Stop halts the timer and blocks until the in-flight cycle (if any)
// completes, preserving the per-area atomicity of observation updates.
// A ctx deadline abandons the wait and cancels the cycle instead.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.c
	cancel := s.runCancel
	s.c = nil
	s.runCancel = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	kicked := make(chan struct{})
	go func() {
		s.kickWG.Wait()
		close(kicked)
	}()

	drained := c.Stop().Done()
	for _, ch := range []<-chan struct{}{drained, kicked} {
		select {
		case <-ch:
		case <-ctx.Done():
			if cancel != nil {
				cancel()
			}
			return fmt.Errorf("scheduler stop: %w", ctx.Err())
		}
	}
	if cancel != nil {
		cancel()
	}
	s.log.Info("scheduler stopped")
	return nil
}

// cronLogger adapts logx to cron's logger so DelayIfStillRunning can report
// delayed ticks.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, logx.Any("kv", kv))
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Warn("cron: "+msg, logx.Err(err), logx.Any("kv", kv))
}
