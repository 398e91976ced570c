package bot

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"stockwatch/internal/inventory"
	"stockwatch/internal/store"
	"stockwatch/internal/transport"
	logx "stockwatch/pkg/logx"
)

type fakeAdapter struct {
	sent []string
}

func (f *fakeAdapter) Start(context.Context, chan<- transport.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                          { return nil }

func (f *fakeAdapter) SendText(_ context.Context, _ transport.ChatTarget, text string, _ *transport.SendOptions) error {
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeAdapter) last(t *testing.T) string {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatalf("no reply sent")
	}
	return f.sent[len(f.sent)-1]
}

type fakeInventory struct {
	areas map[string]inventory.AreaInfo
}

func (f *fakeInventory) FetchSnapshot(context.Context, string, string) ([]inventory.Product, error) {
	return nil, nil
}

func (f *fakeInventory) ResolveArea(_ context.Context, pincode string) (inventory.AreaInfo, error) {
	a, ok := f.areas[pincode]
	if !ok {
		return inventory.AreaInfo{}, inventory.ErrAreaNotFound
	}
	return a, nil
}

func testRouter(t *testing.T) (*Router, *fakeAdapter, *store.Store) {
	t.Helper()
	st, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), "bot.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ad := &fakeAdapter{}
	inv := &fakeInventory{areas: map[string]inventory.AreaInfo{
		"110001": {AreaID: "area-delhi", Name: "delhi", Pincode: "110001"},
	}}
	return NewRouter(ad, st, inv, logx.Nop()), ad, st
}

func send(r *Router, userID int64, text string) {
	r.handleMessage(context.Background(), &transport.Message{
		ChatID:       userID,
		FromID:       userID,
		FromUsername: "tester",
		FromName:     "Tester",
		Text:         text,
	})
}

func TestStartRegistersUser(t *testing.T) {
	t.Parallel()
	r, ad, st := testRouter(t)

	send(r, 1, "/start")

	if _, err := st.GetUser(context.Background(), 1); err != nil {
		t.Fatalf("user not registered: %v", err)
	}
	if !strings.Contains(ad.last(t), "Tester") {
		t.Fatalf("greeting should address the user: %q", ad.last(t))
	}
}

func TestSetPincodeFlow(t *testing.T) {
	t.Parallel()
	r, ad, st := testRouter(t)

	send(r, 1, "/start")
	send(r, 1, "/setpincode 110001")

	u, err := st.GetUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.AreaID.String != "area-delhi" || u.Pincode.String != "110001" {
		t.Fatalf("area not stored: %+v", u)
	}
	if !strings.Contains(ad.last(t), "110001") {
		t.Fatalf("confirmation should echo the pincode: %q", ad.last(t))
	}
}

func TestSetPincodeUnserviceable(t *testing.T) {
	t.Parallel()
	r, ad, st := testRouter(t)

	send(r, 1, "/start")
	send(r, 1, "/setpincode 999999")

	if !strings.Contains(ad.last(t), "not serviceable") {
		t.Fatalf("expected unserviceable reply: %q", ad.last(t))
	}
	u, _ := st.GetUser(context.Background(), 1)
	if u.AreaID.Valid {
		t.Fatalf("area must not be set for an unserviceable pincode: %+v", u)
	}
}

func TestSubscribeRequiresPincode(t *testing.T) {
	t.Parallel()
	r, ad, _ := testRouter(t)

	send(r, 1, "/start")
	send(r, 1, "/subscribe SKU1")

	if !strings.Contains(ad.last(t), "/setpincode") {
		t.Fatalf("expected pincode prompt: %q", ad.last(t))
	}
}

func TestSubscribeUnknownSKU(t *testing.T) {
	t.Parallel()
	r, ad, _ := testRouter(t)

	send(r, 1, "/start")
	send(r, 1, "/setpincode 110001")
	send(r, 1, "/subscribe NOPE")

	if !strings.Contains(ad.last(t), "Unknown SKU") {
		t.Fatalf("expected unknown SKU reply: %q", ad.last(t))
	}
}

func TestSubscribeAndStop(t *testing.T) {
	t.Parallel()
	r, ad, st := testRouter(t)
	ctx := context.Background()

	// Seed the product cache as a reconciliation cycle would.
	if err := st.ApplyCycleResult(ctx, "area-delhi",
		[]store.Product{{SKU: "SKU1", Name: "Whey", Price: 2499}}, nil); err != nil {
		t.Fatalf("seed products: %v", err)
	}

	send(r, 1, "/start")
	send(r, 1, "/setpincode 110001")
	send(r, 1, "/subscribe SKU1")

	if !strings.Contains(ad.last(t), "Subscribed") {
		t.Fatalf("expected subscription confirmation: %q", ad.last(t))
	}
	subs, _ := st.UserSubscriptions(ctx, 1)
	if len(subs) != 1 {
		t.Fatalf("expected 1 subscription, got %d", len(subs))
	}

	send(r, 1, "/stop")
	subs, _ = st.UserSubscriptions(ctx, 1)
	if len(subs) != 0 {
		t.Fatalf("stop should clear subscriptions, got %d", len(subs))
	}
}

func TestMyStatusListsSubscriptions(t *testing.T) {
	t.Parallel()
	r, ad, st := testRouter(t)
	ctx := context.Background()

	if err := st.ApplyCycleResult(ctx, "area-delhi",
		[]store.Product{{SKU: "SKU1", Name: "Whey"}}, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	send(r, 1, "/start")
	send(r, 1, "/setpincode 110001")
	send(r, 1, "/subscribe SKU1")
	send(r, 1, "/mystatus")

	msg := ad.last(t)
	if !strings.Contains(msg, "110001") || !strings.Contains(msg, "SKU1") {
		t.Fatalf("status missing details: %q", msg)
	}
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()
	r, ad, _ := testRouter(t)
	send(r, 1, "/frobnicate")
	if !strings.Contains(ad.last(t), "/help") {
		t.Fatalf("expected help hint: %q", ad.last(t))
	}
}

func TestNonCommandIgnored(t *testing.T) {
	t.Parallel()
	r, ad, _ := testRouter(t)
	send(r, 1, "just chatting")
	if len(ad.sent) != 0 {
		t.Fatalf("plain text should be ignored, got %v", ad.sent)
	}
}

func TestCommandWithBotMention(t *testing.T) {
	t.Parallel()
	r, _, st := testRouter(t)
	send(r, 1, "/start@stockwatchbot")
	if _, err := st.GetUser(context.Background(), 1); err != nil {
		t.Fatalf("mention-suffixed command not handled: %v", err)
	}
}
