package inventory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	logx "stockwatch/pkg/logx"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:  srv.URL,
		Timeout:  2 * time.Second,
		RetryMax: 3,
	}, logx.Nop())
}

func TestResolveAreaPrefersExactPincode(t *testing.T) {
	t.Parallel()
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/entity/pincode" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"records":[
			{"pincode":"110002","substore":"delhi-b","city":"Delhi","state":"DL"},
			{"pincode":"110001","substore":"delhi","city":"Delhi","state":"DL"}
		]}`)
	}))

	area, err := c.ResolveArea(context.Background(), "110001")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if area.Name != "delhi" || area.Pincode != "110001" {
		t.Fatalf("expected the exact match, got %+v", area)
	}
	if area.AreaID == "" {
		t.Fatalf("missing area id: %+v", area)
	}
}

func TestResolveAreaUnknownPincode(t *testing.T) {
	t.Parallel()
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"records":[]}`)
	}))

	_, err := c.ResolveArea(context.Background(), "999999")
	if !errors.Is(err, ErrAreaNotFound) {
		t.Fatalf("expected ErrAreaNotFound, got %v", err)
	}
}

func TestResolveAreaEmptySubstore(t *testing.T) {
	t.Parallel()
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"records":[{"pincode":"110001","substore":""}]}`)
	}))

	_, err := c.ResolveArea(context.Background(), "110001")
	if !errors.Is(err, ErrAreaNotFound) {
		t.Fatalf("expected ErrAreaNotFound, got %v", err)
	}
}

func TestFetchSnapshotDropsDuplicateSKUs(t *testing.T) {
	t.Parallel()
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":[
			{"sku":"SKU1","name":"Whey","available":8,"price":2499},
			{"sku":"SKU1","name":"Whey","available":8,"price":2499},
			{"sku":"","name":"junk","available":1},
			{"sku":"SKU2","name":"Milk","available":0,"price":70}
		]}`)
	}))

	got, err := c.FetchSnapshot(context.Background(), "delhi", "110001")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 products after dedup, got %d", len(got))
	}
	if !got[0].InStock() || got[1].InStock() {
		t.Fatalf("unexpected stock flags: %+v", got)
	}
}

func TestFetchSnapshotRetriesServerErrors(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"data":[{"sku":"SKU1","name":"Whey","available":5}]}`)
	}))

	got, err := c.FetchSnapshot(context.Background(), "delhi", "110001")
	if err != nil {
		t.Fatalf("fetch after retries: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 product, got %d", len(got))
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}

func TestFetchSnapshotDoesNotRetryBadRequest(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))

	_, err := c.FetchSnapshot(context.Background(), "delhi", "110001")
	if err == nil {
		t.Fatalf("expected error")
	}
	if IsTransient(err) {
		t.Fatalf("4xx must not be transient: %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("expected 1 attempt, got %d", n)
	}
}

func TestFetchSnapshotNotFound(t *testing.T) {
	t.Parallel()
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := c.FetchSnapshot(context.Background(), "nowhere", "000000")
	if !errors.Is(err, ErrAreaNotFound) {
		t.Fatalf("expected ErrAreaNotFound, got %v", err)
	}
}

func TestFetchSnapshotCancelledContext(t *testing.T) {
	t.Parallel()
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchSnapshot(ctx, "delhi", "110001")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsTransient(err) {
		t.Fatalf("cancellation should surface as transient: %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()
	if !IsTransient(&TransientError{Op: "get", Err: fmt.Errorf("boom")}) {
		t.Fatalf("TransientError must be transient")
	}
	if !IsTransient(fmt.Errorf("wrap: %w", &TransientError{Op: "get", Err: fmt.Errorf("boom")})) {
		t.Fatalf("wrapped TransientError must be transient")
	}
	if IsTransient(errors.New("plain")) {
		t.Fatalf("plain error must not be transient")
	}
}

func TestSubstoreIDFallback(t *testing.T) {
	t.Parallel()
	if id := substoreID("delhi"); id == "" {
		t.Fatalf("known alias resolved empty")
	}
	if id := substoreID("never-seen-before"); id != "never-seen-before" {
		t.Fatalf("unknown alias should pass through, got %q", id)
	}
}
