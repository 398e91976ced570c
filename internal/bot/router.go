// Package bot implements the Telegram command surface: registration, area
// selection and subscription management. It only mutates User/Subscription
// records; the reconciliation engine picks the changes up at the start of
// its next cycle.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"stockwatch/internal/inventory"
	"stockwatch/internal/store"
	"stockwatch/internal/transport"
	logx "stockwatch/pkg/logx"
)

type Router struct {
	adapter transport.Adapter
	st      *store.Store
	inv     inventory.Source
	log     logx.Logger

	runMu   sync.Mutex
	running bool
}

func NewRouter(adapter transport.Adapter, st *store.Store, inv inventory.Source, log logx.Logger) *Router {
	return &Router{adapter: adapter, st: st, inv: inv, log: log}
}

// Run consumes updates until ctx is cancelled or the channel closes.
func (r *Router) Run(ctx context.Context, updates <-chan transport.Update) {
	r.runMu.Lock()
	if r.running {
		r.runMu.Unlock()
		return
	}
	r.running = true
	r.runMu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-updates:
			if !ok {
				return
			}
			if up.Message == nil {
				continue
			}
			r.handleMessage(ctx, up.Message)
		}
	}
}

func (r *Router) handleMessage(ctx context.Context, m *transport.Message) {
	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	cmd, arg, _ := strings.Cut(text, " ")
	cmd = strings.ToLower(cmd)
	// strip a bot mention suffix ("/products@somebot")
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	arg = strings.TrimSpace(arg)

	var err error
	switch cmd {
	case "/start":
		err = r.cmdStart(ctx, m)
	case "/help":
		err = r.reply(ctx, m, helpText, true)
	case "/setpincode":
		err = r.cmdSetPincode(ctx, m, arg)
	case "/products":
		err = r.cmdProducts(ctx, m)
	case "/subscribe":
		err = r.cmdSubscribe(ctx, m, arg)
	case "/unsubscribe":
		err = r.cmdUnsubscribe(ctx, m, arg)
	case "/mystatus":
		err = r.cmdStatus(ctx, m)
	case "/stop":
		err = r.cmdStop(ctx, m)
	default:
		err = r.reply(ctx, m, "Unknown command. Try /help.", false)
	}
	if err != nil {
		r.log.Warn("command failed",
			logx.String("cmd", cmd),
			logx.Int64("user", m.FromID),
			logx.Err(err))
	}
}

const helpText = `*Stock alert bot*

/setpincode <pincode> — choose your delivery area
/products — list tracked products and current stock
/subscribe <sku> — get alerts for a product
/unsubscribe <sku> — stop alerts for a product
/mystatus — your area and subscriptions
/stop — stop all alerts`

func (r *Router) cmdStart(ctx context.Context, m *transport.Message) error {
	if err := r.st.UpsertUser(ctx, m.FromID, m.FromUsername, m.FromName); err != nil {
		return err
	}
	name := m.FromName
	if name == "" {
		name = "there"
	}
	msg := fmt.Sprintf("Hi %s! 👋\n\nI watch the shop's stock and alert you the moment a product you care about changes availability.\n\nStart with /setpincode, then /subscribe. See /help for everything.", name)
	return r.reply(ctx, m, msg, false)
}

func (r *Router) cmdSetPincode(ctx context.Context, m *transport.Message, arg string) error {
	if arg == "" {
		return r.reply(ctx, m, "Usage: /setpincode <pincode>", false)
	}
	if err := r.st.UpsertUser(ctx, m.FromID, m.FromUsername, m.FromName); err != nil {
		return err
	}

	area, err := r.inv.ResolveArea(ctx, arg)
	if errors.Is(err, inventory.ErrAreaNotFound) {
		return r.reply(ctx, m, fmt.Sprintf("Pincode %s is not serviceable. 😔", arg), false)
	}
	if err != nil {
		_ = r.reply(ctx, m, "Could not check that pincode right now, please try again in a bit.", false)
		return err
	}

	if err := r.st.SetUserArea(ctx, m.FromID, area.Pincode, area.AreaID, area.Name); err != nil {
		return err
	}
	msg := fmt.Sprintf("📍 Pincode set to *%s* (%s).\n\nNow /subscribe to the products you want alerts for.", area.Pincode, area.Name)
	return r.reply(ctx, m, msg, true)
}

func (r *Router) cmdProducts(ctx context.Context, m *transport.Message) error {
	user, err := r.st.GetUser(ctx, m.FromID)
	if err != nil || !user.AreaID.Valid {
		return r.reply(ctx, m, "Set your pincode first: /setpincode <pincode>", false)
	}

	products, err := r.st.Products(ctx)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		return r.reply(ctx, m, "No products known yet — the next stock check will fill this in.", false)
	}

	obs, err := r.st.ObservationsForArea(ctx, user.AreaID.String)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("*Products*\n")
	for _, p := range products {
		mark := "⚪"
		qty := ""
		if o, ok := obs[p.SKU]; ok {
			if o.InStock {
				mark = "🟢"
				qty = fmt.Sprintf(" (%d left)", o.Quantity)
			} else {
				mark = "🔴"
			}
		}
		fmt.Fprintf(&b, "%s `%s` — %s ₹%.0f%s\n", mark, p.SKU, p.Name, p.Price, qty)
	}
	b.WriteString("\nSubscribe with /subscribe <sku>")
	return r.reply(ctx, m, b.String(), true)
}

func (r *Router) cmdSubscribe(ctx context.Context, m *transport.Message, sku string) error {
	if sku == "" {
		return r.reply(ctx, m, "Usage: /subscribe <sku> — see /products for SKUs", false)
	}
	user, err := r.st.GetUser(ctx, m.FromID)
	if err != nil || !user.AreaID.Valid {
		return r.reply(ctx, m, "Set your pincode first: /setpincode <pincode>", false)
	}

	p, err := r.st.ProductBySKU(ctx, sku)
	if errors.Is(err, store.ErrNotFound) {
		return r.reply(ctx, m, fmt.Sprintf("Unknown SKU `%s` — see /products.", sku), true)
	}
	if err != nil {
		return err
	}

	if err := r.st.Subscribe(ctx, m.FromID, p.SKU); err != nil {
		return err
	}
	return r.reply(ctx, m, fmt.Sprintf("🔔 Subscribed to *%s*. You'll hear from me on every stock change.", p.Name), true)
}

func (r *Router) cmdUnsubscribe(ctx context.Context, m *transport.Message, sku string) error {
	if sku == "" {
		return r.reply(ctx, m, "Usage: /unsubscribe <sku>", false)
	}
	if err := r.st.Unsubscribe(ctx, m.FromID, sku); err != nil {
		return err
	}
	return r.reply(ctx, m, fmt.Sprintf("🔕 Unsubscribed from `%s`.", sku), true)
}

func (r *Router) cmdStatus(ctx context.Context, m *transport.Message) error {
	user, err := r.st.GetUser(ctx, m.FromID)
	if errors.Is(err, store.ErrNotFound) {
		return r.reply(ctx, m, "You're not registered yet — send /start.", false)
	}
	if err != nil {
		return err
	}

	subs, err := r.st.UserSubscriptions(ctx, m.FromID)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("*Your status*\n")
	if user.Pincode.Valid {
		fmt.Fprintf(&b, "📍 Pincode: %s (%s)\n", user.Pincode.String, user.AreaName.String)
	} else {
		b.WriteString("📍 Pincode: not set\n")
	}
	if len(subs) == 0 {
		b.WriteString("🔔 Subscriptions: none")
	} else {
		fmt.Fprintf(&b, "🔔 Subscriptions (%d):\n", len(subs))
		for _, s := range subs {
			fmt.Fprintf(&b, "  • `%s`\n", s.ProductSKU)
		}
	}
	return r.reply(ctx, m, b.String(), true)
}

func (r *Router) cmdStop(ctx context.Context, m *transport.Message) error {
	if err := r.st.ClearSubscriptions(ctx, m.FromID); err != nil {
		return err
	}
	return r.reply(ctx, m, "All alerts stopped. Come back any time with /subscribe. 👋", false)
}

func (r *Router) reply(ctx context.Context, m *transport.Message, text string, markdown bool) error {
	opt := &transport.SendOptions{DisablePreview: true}
	if markdown {
		opt.ParseMode = "Markdown"
	}
	return r.adapter.SendText(ctx, transport.ChatTarget{ChatID: m.ChatID}, text, opt)
}
