// Package app wires the process together: config, logging, store,
// inventory client, reconciliation engine, scheduler, Telegram transport
// and the command router.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"stockwatch/internal/bot"
	"stockwatch/internal/config"
	"stockwatch/internal/dispatch"
	"stockwatch/internal/inventory"
	"stockwatch/internal/monitor"
	"stockwatch/internal/store"
	"stockwatch/internal/transport"
	"stockwatch/internal/transport/telegram"
	logx "stockwatch/pkg/logx"
)

type StopReason string

const (
	StopUnknown    StopReason = "unknown"
	StopSignal     StopReason = "signal"
	StopFatalError StopReason = "fatal_error"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	log  logx.Logger
	logs *logx.Service

	st      *store.Store
	inv     *inventory.Client
	gate    *dispatch.Gate
	engine  *monitor.Engine
	sched   *monitor.Scheduler
	adapter *telegram.Adapter
	router  *bot.Router

	updates chan transport.Update

	runMu     sync.Mutex
	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validate(context.Background(), cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(store.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "store")))
	if err != nil {
		return nil, err
	}

	invTimeout, err := config.ParseDurationOrDefault("inventory.timeout", cfg.Inventory.Timeout, 20*time.Second)
	if err != nil {
		return nil, err
	}
	inv := inventory.NewClient(inventory.Config{
		BaseURL:   cfg.Inventory.BaseURL,
		UserAgent: cfg.Inventory.UserAgent,
		Timeout:   invTimeout,
		RetryMax:  cfg.Inventory.RetryMax,
	}, log.With(logx.String("comp", "inventory")))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	sendSpacing, err := config.ParseDurationOrDefault("monitor.send_spacing", cfg.Monitor.SendSpacing, 2*time.Second)
	if err != nil {
		return nil, err
	}
	gate := dispatch.NewGate(dispatch.Config{SendSpacing: sendSpacing},
		markdownMessenger{adapter}, st, log.With(logx.String("comp", "dispatch")))

	engCfg, err := engineConfig(cfg)
	if err != nil {
		return nil, err
	}
	eng := monitor.NewEngine(engCfg, st, inv, gate, log.With(logx.String("comp", "monitor")))

	interval, err := config.ParseDurationOrDefault("monitor.interval", cfg.Monitor.Interval, 5*time.Minute)
	if err != nil {
		return nil, err
	}
	sched := monitor.NewScheduler(interval, eng.RunCycle, log.With(logx.String("comp", "scheduler")))

	router := bot.NewRouter(adapter, st, inv, log.With(logx.String("comp", "bot")))

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		st:      st,
		inv:     inv,
		gate:    gate,
		engine:  eng,
		sched:   sched,
		adapter: adapter,
		router:  router,
		updates: make(chan transport.Update, 256),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.runCtx != nil {
		return nil
	}
	a.runCtx, a.runCancel = context.WithCancel(ctx)

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(validate)

	if err := a.adapter.Start(a.runCtx, a.updates); err != nil {
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.router.Run(a.runCtx, a.updates)
	}()

	if err := a.sched.Start(a.runCtx); err != nil {
		return err
	}

	// hot reload fan-out
	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-a.runCtx.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(newCfg)
			}
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(a.runCtx); err != nil && a.runCtx.Err() == nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	a.log.Info("app started")
	return nil
}

// applyConfig handles a validated hot reload. Logging and the monitor knobs
// apply live; transport, storage and the cycle interval need a restart.
func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	engCfg, err := engineConfig(cfg)
	if err != nil {
		a.log.Warn("invalid monitor config; keeping previous", logx.Err(err))
	} else {
		a.engine.Apply(engCfg)
	}

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.runCtx == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Stop the scheduler first so no new cycle starts mid-shutdown.
	step(a.log, "scheduler", 10*time.Second, ctx, func(c context.Context) error { return a.sched.Stop(c) })

	a.runCancel()

	step(a.log, "adapter", 2*time.Second, ctx, func(c context.Context) error { return a.adapter.Stop(c) })
	step(a.log, "goroutines", 2*time.Second, ctx, func(c context.Context) error {
		done := make(chan struct{})
		go func() { a.wg.Wait(); close(done) }()
		select {
		case <-done:
			return nil
		case <-c.Done():
			return c.Err()
		}
	})
	step(a.log, "store", 1*time.Second, ctx, func(context.Context) error { return a.st.Close() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	a.runCtx, a.runCancel = nil, nil
	return nil
}

// step bounds one shutdown stage so a stalled component cannot hold the
// whole stop hostage.
func step(log logx.Logger, name string, max time.Duration, ctx context.Context, fn func(context.Context) error) {
	start := time.Now()
	stepCtx := ctx
	var cancel context.CancelFunc
	if max > 0 {
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem > 0 && rem < max {
				max = rem
			}
		}
		stepCtx, cancel = context.WithTimeout(ctx, max)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		} else {
			log.Debug("stop step done", logx.String("name", name), logx.Duration("took", time.Since(start)))
		}
	case <-stepCtx.Done():
		log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Duration("elapsed", time.Since(start)))
	}
}

// markdownMessenger narrows the transport adapter to the dispatch gate's
// Messenger: alert bodies are always Markdown.
type markdownMessenger struct {
	adapter *telegram.Adapter
}

func (m markdownMessenger) Send(ctx context.Context, userID int64, text string) error {
	return m.adapter.SendText(ctx, transport.ChatTarget{ChatID: userID}, text, &transport.SendOptions{
		ParseMode:      "Markdown",
		DisablePreview: true,
	})
}

func engineConfig(cfg *config.Config) (monitor.Config, error) {
	fetchTimeout, err := config.ParseDurationOrDefault("monitor.fetch_timeout", cfg.Monitor.FetchTimeout, 30*time.Second)
	if err != nil {
		return monitor.Config{}, err
	}
	fetchSpacing, err := config.ParseDurationOrDefault("monitor.fetch_spacing", cfg.Monitor.FetchSpacing, 2*time.Second)
	if err != nil {
		return monitor.Config{}, err
	}
	return monitor.Config{
		LowStockThreshold: cfg.Monitor.LowStockThreshold,
		FetchTimeout:      fetchTimeout,
		FetchSpacing:      fetchSpacing,
	}, nil
}

// validate rejects a config before it is committed (boot and hot reload).
func validate(_ context.Context, cfg *config.Config) error {
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		return fmt.Errorf("storage.path is required")
	}
	if cfg.Monitor.LowStockThreshold < 0 {
		return fmt.Errorf("monitor.low_stock_threshold must be >= 0")
	}
	if cfg.Inventory.RetryMax < 0 {
		return fmt.Errorf("inventory.retry_max must be >= 0")
	}
	for _, f := range []struct{ path, raw string }{
		{"telegram.poll_timeout", cfg.Telegram.PollTimeout},
		{"monitor.interval", cfg.Monitor.Interval},
		{"monitor.fetch_timeout", cfg.Monitor.FetchTimeout},
		{"monitor.fetch_spacing", cfg.Monitor.FetchSpacing},
		{"monitor.send_spacing", cfg.Monitor.SendSpacing},
		{"inventory.timeout", cfg.Inventory.Timeout},
		{"storage.busy_timeout", cfg.Storage.BusyTimeout},
	} {
		if _, err := config.ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	return nil
}
