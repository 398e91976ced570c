package monitor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"stockwatch/internal/inventory"
	"stockwatch/internal/store"
	logx "stockwatch/pkg/logx"
)

// Store is the slice of the state store the engine needs.
type Store interface {
	ActiveAreas(ctx context.Context) ([]store.Area, error)
	SubscribersForArea(ctx context.Context, areaID string) ([]store.Subscriber, error)
	ObservationsForArea(ctx context.Context, areaID string) (map[string]store.Observation, error)
	ApplyCycleResult(ctx context.Context, areaID string, products []store.Product, obs []store.Observation) error
}

// Dispatcher consumes the intents of one area after its baseline committed.
type Dispatcher interface {
	Dispatch(ctx context.Context, intents []Intent) Result
}

type Config struct {
	LowStockThreshold int
	FetchTimeout      time.Duration
	// FetchSpacing is the minimum gap between successive inventory fetches,
	// applied across areas within a cycle to stay under upstream rate limits.
	FetchSpacing time.Duration
}

func (c Config) withDefaults() Config {
	if c.LowStockThreshold <= 0 {
		c.LowStockThreshold = DefaultLowStockThreshold
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if c.FetchSpacing <= 0 {
		c.FetchSpacing = 2 * time.Second
	}
	return c
}

type Engine struct {
	st     Store
	source inventory.Source
	gate   Dispatcher
	log    logx.Logger

	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter
}

func NewEngine(cfg Config, st Store, source inventory.Source, gate Dispatcher, log logx.Logger) *Engine {
	e := &Engine{st: st, source: source, gate: gate, log: log}
	e.Apply(cfg)
	return e
}

// Apply swaps the engine config at runtime (config hot reload).
func (e *Engine) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	e.mu.Lock()
	e.cfg = cfg
	e.limiter = rate.NewLimiter(rate.Every(cfg.FetchSpacing), 1)
	e.mu.Unlock()
}

func (e *Engine) snapshotCfg() (Config, *rate.Limiter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg, e.limiter
}

// RunCycle reconciles every delivery area that has at least one active
// subscriber. Fetch and persistence failures are per-area and fail-soft; an
// invariant violation in subscription state aborts the cycle and is returned
// to the operator.
func (e *Engine) RunCycle(ctx context.Context) error {
	cycleID := uuid.NewString()[:8]
	start := time.Now()
	log := e.log.With(logx.String("cycle", cycleID))

	areas, err := e.st.ActiveAreas(ctx)
	if err != nil {
		return fmt.Errorf("load active areas: %w", err)
	}
	if len(areas) == 0 {
		log.Debug("no areas with active subscribers")
		return nil
	}

	stats := CycleStats{Areas: len(areas)}
	for _, area := range areas {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		res, err := e.reconcileArea(ctx, log, area)
		if err != nil {
			if errors.Is(err, store.ErrInvariant) {
				// Corrupt subscription state: surface, do not continue blind.
				return err
			}
			// Errors never cross area boundaries.
			log.Warn("area skipped", logx.String("area", area.AreaID), logx.Err(err))
			stats.AreasSkipped++
			continue
		}
		stats.Sent += res.Sent
		stats.Failed += res.Failed
		stats.Intents += res.Sent + res.Failed + res.Deduped
	}

	stats.Duration = time.Since(start)
	log.Info("cycle completed",
		logx.Int("areas", stats.Areas),
		logx.Int("skipped", stats.AreasSkipped),
		logx.Int("intents", stats.Intents),
		logx.Int("sent", stats.Sent),
		logx.Int("failed", stats.Failed),
		logx.Duration("dur", stats.Duration))
	return nil
}

func (e *Engine) reconcileArea(ctx context.Context, log logx.Logger, area store.Area) (Result, error) {
	cfg, limiter := e.snapshotCfg()

	// Pace fetches across areas; the inventory API is shared.
	if err := limiter.Wait(ctx); err != nil {
		return Result{}, err
	}

	fctx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
	snapshot, err := e.source.FetchSnapshot(fctx, area.AreaID, area.Pincode)
	cancel()
	if err != nil {
		return Result{}, fmt.Errorf("fetch snapshot: %w", err)
	}

	subs, err := e.st.SubscribersForArea(ctx, area.AreaID)
	if err != nil {
		return Result{}, err
	}
	if len(subs) == 0 {
		// Last subscriber left between area listing and now.
		return Result{}, nil
	}

	prior, err := e.st.ObservationsForArea(ctx, area.AreaID)
	if err != nil {
		return Result{}, fmt.Errorf("load observations: %w", err)
	}

	// Subscribers grouped per SKU for the fan-out.
	bySKU := make(map[string][]store.Subscriber, len(subs))
	for _, sub := range subs {
		bySKU[sub.ProductSKU] = append(bySKU[sub.ProductSKU], sub)
	}

	now := time.Now().UnixMilli()
	products := make([]store.Product, 0, len(snapshot))
	observations := make([]store.Observation, 0, len(snapshot))
	var intents []Intent
	inSnapshot := make(map[string]bool, len(snapshot))

	for _, p := range snapshot {
		inSnapshot[p.SKU] = true
		products = append(products, store.Product{
			SKU:   p.SKU,
			Name:  p.Name,
			Price: p.Price,
			Category: sql.NullString{
				String: p.Category,
				Valid:  p.Category != "",
			},
		})
		observations = append(observations, store.Observation{
			ProductSKU: p.SKU,
			AreaID:     area.AreaID,
			Quantity:   p.Quantity,
			InStock:    p.InStock(),
			Price:      p.Price,
			ObservedMS: now,
		})

		watchers := bySKU[p.SKU]
		if len(watchers) == 0 {
			continue
		}

		var prev *store.Observation
		if o, ok := prior[p.SKU]; ok {
			prev = &o
		}
		kind := Classify(prev, p, cfg.LowStockThreshold)
		if kind == TransitionNone {
			continue
		}

		delta := p.Quantity
		if prev != nil {
			delta = p.Quantity - prev.Quantity
		}
		for _, w := range watchers {
			intents = append(intents, Intent{
				UserID:      w.UserID,
				SKU:         p.SKU,
				Kind:        kind,
				ProductName: p.Name,
				Price:       p.Price,
				Pincode:     w.Pincode,
				Quantity:    p.Quantity,
				Delta:       delta,
			})
		}
	}

	// A subscribed SKU the provider stopped listing gets no new observation
	// and no intent, but it must not go unnoticed.
	for sku := range bySKU {
		if !inSnapshot[sku] {
			log.Warn("subscribed product missing from snapshot",
				logx.String("area", area.AreaID), logx.String("sku", sku))
		}
	}

	// Baseline update and intent handoff are one unit: if the write fails,
	// nothing is dispatched and the next cycle re-diffs the same baseline.
	if err := e.st.ApplyCycleResult(ctx, area.AreaID, products, observations); err != nil {
		return Result{}, fmt.Errorf("persist area state: %w", err)
	}

	if len(intents) == 0 {
		log.Debug("area reconciled, no transitions",
			logx.String("area", area.AreaID), logx.Int("products", len(snapshot)))
		return Result{}, nil
	}

	res := e.gate.Dispatch(ctx, intents)
	log.Info("area reconciled",
		logx.String("area", area.AreaID),
		logx.Int("products", len(snapshot)),
		logx.Int("intents", len(intents)),
		logx.Int("sent", res.Sent),
		logx.Int("failed", res.Failed))
	return res, nil
}
