// Package dispatch turns notification intents into outbound Telegram
// messages: in-batch dedup, send spacing, per-recipient failure isolation
// and the sent-alert history.
package dispatch

import (
	"context"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"stockwatch/internal/monitor"
	logx "stockwatch/pkg/logx"
)

// Messenger delivers one rendered message to one user.
type Messenger interface {
	Send(ctx context.Context, userID int64, text string) error
}

// Store is the slice of the state store the gate needs: the alert history
// and the deactivation of users who blocked the bot.
type Store interface {
	RecordAlert(ctx context.Context, userID int64, sku, kind string, quantity int) error
	SetUserActive(ctx context.Context, userID int64, active bool) error
}

type Config struct {
	// SendSpacing is the minimum gap between consecutive outbound sends
	// (courtesy to the messaging provider). Default 2s.
	SendSpacing time.Duration
}

type Gate struct {
	msgr    Messenger
	st      Store
	log     logx.Logger
	limiter *rate.Limiter
}

func NewGate(cfg Config, msgr Messenger, st Store, log logx.Logger) *Gate {
	if cfg.SendSpacing <= 0 {
		cfg.SendSpacing = 2 * time.Second
	}
	return &Gate{
		msgr:    msgr,
		st:      st,
		log:     log,
		limiter: rate.NewLimiter(rate.Every(cfg.SendSpacing), 1),
	}
}

// Dispatch sends one message per intent. Send failures are per-recipient:
// logged, counted and skipped, never retried within the batch and never
// rolled back (a missed notification beats a duplicate-flood loop).
// Duplicate (user, SKU, kind) intents within the batch collapse to one send.
func (g *Gate) Dispatch(ctx context.Context, intents []monitor.Intent) monitor.Result {
	var res monitor.Result

	type sentKey struct {
		user int64
		sku  string
		kind monitor.Transition
	}
	seen := make(map[sentKey]bool, len(intents))

	for _, in := range intents {
		if ctx.Err() != nil {
			g.log.Warn("dispatch interrupted", logx.Err(ctx.Err()), logx.Int("remaining", len(intents)-res.Sent-res.Failed-res.Deduped))
			return res
		}

		k := sentKey{user: in.UserID, sku: in.SKU, kind: in.Kind}
		if seen[k] {
			res.Deduped++
			continue
		}
		seen[k] = true

		if err := g.limiter.Wait(ctx); err != nil {
			return res
		}

		text := renderMessage(in)
		if err := g.msgr.Send(ctx, in.UserID, text); err != nil {
			res.Failed++
			g.log.Warn("notification send failed",
				logx.Int64("user", in.UserID),
				logx.String("sku", in.SKU),
				logx.String("kind", string(in.Kind)),
				logx.Err(err))
			// A blocked bot means every future send fails too; stop
			// considering this user until they come back.
			if isBlockedErr(err) {
				if derr := g.st.SetUserActive(ctx, in.UserID, false); derr != nil {
					g.log.Warn("deactivate blocked user failed", logx.Int64("user", in.UserID), logx.Err(derr))
				} else {
					g.log.Info("user deactivated (blocked the bot)", logx.Int64("user", in.UserID))
				}
			}
			continue
		}

		res.Sent++
		if err := g.st.RecordAlert(ctx, in.UserID, in.SKU, string(in.Kind), in.Quantity); err != nil {
			g.log.Warn("record alert failed", logx.Int64("user", in.UserID), logx.String("sku", in.SKU), logx.Err(err))
		}
		g.log.Debug("notification sent",
			logx.Int64("user", in.UserID),
			logx.String("sku", in.SKU),
			logx.String("kind", string(in.Kind)))
	}

	return res
}

func isBlockedErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "blocked")
}
