package monitor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"stockwatch/internal/inventory"
	"stockwatch/internal/store"
	logx "stockwatch/pkg/logx"
)

type fakeStore struct {
	areas    []store.Area
	subs     map[string][]store.Subscriber // areaID -> subscribers
	obs      map[string]map[string]store.Observation
	subsErr  map[string]error
	applyErr error
	applied  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subs:    map[string][]store.Subscriber{},
		obs:     map[string]map[string]store.Observation{},
		subsErr: map[string]error{},
	}
}

func (f *fakeStore) ActiveAreas(context.Context) ([]store.Area, error) { return f.areas, nil }

func (f *fakeStore) SubscribersForArea(_ context.Context, areaID string) ([]store.Subscriber, error) {
	if err := f.subsErr[areaID]; err != nil {
		return nil, err
	}
	return f.subs[areaID], nil
}

func (f *fakeStore) ObservationsForArea(_ context.Context, areaID string) (map[string]store.Observation, error) {
	out := map[string]store.Observation{}
	for sku, o := range f.obs[areaID] {
		out[sku] = o
	}
	return out, nil
}

func (f *fakeStore) ApplyCycleResult(_ context.Context, areaID string, _ []store.Product, obs []store.Observation) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	m := map[string]store.Observation{}
	for _, o := range obs {
		m[o.ProductSKU] = o
	}
	f.obs[areaID] = m
	f.applied++
	return nil
}

type fakeSource struct {
	snapshots map[string][]inventory.Product // areaID -> snapshot
	errs      map[string]error
}

func (f *fakeSource) FetchSnapshot(_ context.Context, areaID, _ string) ([]inventory.Product, error) {
	if err := f.errs[areaID]; err != nil {
		return nil, err
	}
	return f.snapshots[areaID], nil
}

func (f *fakeSource) ResolveArea(context.Context, string) (inventory.AreaInfo, error) {
	return inventory.AreaInfo{}, inventory.ErrAreaNotFound
}

type fakeGate struct {
	batches [][]Intent
}

func (f *fakeGate) Dispatch(_ context.Context, intents []Intent) Result {
	f.batches = append(f.batches, intents)
	return Result{Sent: len(intents)}
}

func (f *fakeGate) all() []Intent {
	var out []Intent
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

func testEngine(st *fakeStore, src *fakeSource, gate *fakeGate) *Engine {
	cfg := Config{FetchSpacing: time.Millisecond, FetchTimeout: time.Second}
	return NewEngine(cfg, st, src, gate, logx.Nop())
}

func TestRunCycleEmitsOncePerTransition(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.areas = []store.Area{{AreaID: "a1", Pincode: "110001"}}
	st.subs["a1"] = []store.Subscriber{{UserID: 1, ProductSKU: "SKU1", Pincode: "110001"}}

	src := &fakeSource{snapshots: map[string][]inventory.Product{
		"a1": {{SKU: "SKU1", Name: "Whey", Quantity: 8, Price: 100}},
	}}
	gate := &fakeGate{}
	e := testEngine(st, src, gate)

	if err := e.RunCycle(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	got := gate.all()
	if len(got) != 1 {
		t.Fatalf("expected 1 intent, got %d", len(got))
	}
	if got[0].Kind != TransitionBackInStock || got[0].UserID != 1 || got[0].SKU != "SKU1" {
		t.Fatalf("unexpected intent: %+v", got[0])
	}

	// Same snapshot again: baseline already committed, nothing fires.
	if err := e.RunCycle(context.Background()); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if len(gate.all()) != 1 {
		t.Fatalf("second cycle re-dispatched: %d intents total", len(gate.all()))
	}
}

func TestRunCycleFansOutPerSubscriber(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.areas = []store.Area{{AreaID: "a1", Pincode: "110001"}}
	st.subs["a1"] = []store.Subscriber{
		{UserID: 1, ProductSKU: "SKU1", Pincode: "110001"},
		{UserID: 2, ProductSKU: "SKU1", Pincode: "110001"},
	}
	st.obs["a1"] = map[string]store.Observation{
		"SKU1": {ProductSKU: "SKU1", AreaID: "a1", Quantity: 3, InStock: true},
	}

	src := &fakeSource{snapshots: map[string][]inventory.Product{
		"a1": {{SKU: "SKU1", Name: "Whey", Quantity: 0}},
	}}
	gate := &fakeGate{}
	e := testEngine(st, src, gate)

	if err := e.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	got := gate.all()
	if len(got) != 2 {
		t.Fatalf("expected 2 intents, got %d", len(got))
	}
	for _, in := range got {
		if in.Kind != TransitionSoldOut {
			t.Fatalf("expected sold_out, got %q", in.Kind)
		}
	}
}

func TestRunCycleAreaFailureIsIsolated(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.areas = []store.Area{{AreaID: "bad"}, {AreaID: "good"}}
	st.subs["bad"] = []store.Subscriber{{UserID: 1, ProductSKU: "SKU1"}}
	st.subs["good"] = []store.Subscriber{{UserID: 2, ProductSKU: "SKU2"}}

	src := &fakeSource{
		snapshots: map[string][]inventory.Product{
			"good": {{SKU: "SKU2", Name: "Milk", Quantity: 4}},
		},
		errs: map[string]error{"bad": fmt.Errorf("upstream down")},
	}
	gate := &fakeGate{}
	e := testEngine(st, src, gate)

	if err := e.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle should fail soft: %v", err)
	}
	got := gate.all()
	if len(got) != 1 || got[0].UserID != 2 {
		t.Fatalf("expected the healthy area to dispatch, got %+v", got)
	}
}

func TestRunCycleInvariantViolationIsFatal(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.areas = []store.Area{{AreaID: "a1"}, {AreaID: "a2"}}
	st.subsErr["a1"] = fmt.Errorf("%w: 2 active subscriptions for user=1 sku=SKU1", store.ErrInvariant)

	src := &fakeSource{snapshots: map[string][]inventory.Product{"a1": {}, "a2": {}}}
	gate := &fakeGate{}
	e := testEngine(st, src, gate)

	err := e.RunCycle(context.Background())
	if !errors.Is(err, store.ErrInvariant) {
		t.Fatalf("expected invariant error, got %v", err)
	}
	if len(gate.all()) != 0 {
		t.Fatalf("dispatched despite invariant violation")
	}
}

func TestRunCycleNoDispatchWhenPersistFails(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.areas = []store.Area{{AreaID: "a1"}}
	st.subs["a1"] = []store.Subscriber{{UserID: 1, ProductSKU: "SKU1"}}
	st.applyErr = fmt.Errorf("disk full")

	src := &fakeSource{snapshots: map[string][]inventory.Product{
		"a1": {{SKU: "SKU1", Quantity: 5}},
	}}
	gate := &fakeGate{}
	e := testEngine(st, src, gate)

	if err := e.RunCycle(context.Background()); err != nil {
		t.Fatalf("persist failure must fail soft: %v", err)
	}
	if len(gate.all()) != 0 {
		t.Fatalf("dispatched before baseline committed")
	}
	if st.applied != 0 {
		t.Fatalf("baseline committed despite write failure")
	}
}

func TestRunCycleSkipsUnsubscribedSKUs(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.areas = []store.Area{{AreaID: "a1"}}
	st.subs["a1"] = []store.Subscriber{{UserID: 1, ProductSKU: "SKU1"}}

	src := &fakeSource{snapshots: map[string][]inventory.Product{
		"a1": {
			{SKU: "SKU1", Quantity: 5},
			{SKU: "SKU2", Quantity: 9},
		},
	}}
	gate := &fakeGate{}
	e := testEngine(st, src, gate)

	if err := e.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	got := gate.all()
	if len(got) != 1 || got[0].SKU != "SKU1" {
		t.Fatalf("expected only the subscribed SKU, got %+v", got)
	}
	// The full snapshot is still persisted as the new baseline.
	if len(st.obs["a1"]) != 2 {
		t.Fatalf("expected 2 observations persisted, got %d", len(st.obs["a1"]))
	}
}
