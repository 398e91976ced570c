package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/codeGROOVE-dev/retry"

	logx "stockwatch/pkg/logx"
)

const (
	defaultBaseURL   = "https://shop.example.com"
	defaultUserAgent = "stockwatch/1.0"
	defaultTimeout   = 20 * time.Second
)

type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	RetryMax  int
}

// Client is the HTTP implementation of Source.
type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

var _ Source = (*Client)(nil)

func NewClient(cfg Config, log logx.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 3
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

type pincodeResponse struct {
	Records []struct {
		Pincode  string `json:"pincode"`
		Substore string `json:"substore"`
		City     string `json:"city"`
		State    string `json:"state"`
	} `json:"records"`
}

type productsResponse struct {
	Data []Product `json:"data"`
}

func (c *Client) ResolveArea(ctx context.Context, pincode string) (AreaInfo, error) {
	u := fmt.Sprintf("%s/entity/pincode?q=%s", c.cfg.BaseURL, url.QueryEscape(pincode))

	var resp pincodeResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return AreaInfo{}, err
	}
	if len(resp.Records) == 0 {
		return AreaInfo{}, fmt.Errorf("pincode %s: %w", pincode, ErrAreaNotFound)
	}

	// Prefer an exact pincode match; partial lookups may return neighbours first.
	rec := resp.Records[0]
	for _, r := range resp.Records {
		if r.Pincode == pincode {
			rec = r
			break
		}
	}
	if rec.Substore == "" {
		return AreaInfo{}, fmt.Errorf("pincode %s: %w", pincode, ErrAreaNotFound)
	}

	return AreaInfo{
		AreaID:  substoreID(rec.Substore),
		Name:    rec.Substore,
		Pincode: pincode,
		City:    rec.City,
		State:   rec.State,
	}, nil
}

func (c *Client) FetchSnapshot(ctx context.Context, areaID, pincode string) ([]Product, error) {
	u := fmt.Sprintf("%s/api/1/entity/ms.products?substore=%s&pincode=%s",
		c.cfg.BaseURL, url.QueryEscape(areaID), url.QueryEscape(pincode))

	start := time.Now()
	var resp productsResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	// Drop duplicate SKUs; upstream occasionally repeats rows across pages.
	seen := make(map[string]bool, len(resp.Data))
	out := make([]Product, 0, len(resp.Data))
	for _, p := range resp.Data {
		if p.SKU == "" || seen[p.SKU] {
			continue
		}
		seen[p.SKU] = true
		out = append(out, p)
	}

	c.log.Debug("snapshot fetched",
		logx.String("area", areaID),
		logx.Int("products", len(out)),
		logx.Duration("dur", time.Since(start)))
	return out, nil
}

// getJSON performs a GET with bounded retries. Network errors, 429 and 5xx
// are retried; anything else fails fast.
func (c *Client) getJSON(ctx context.Context, rawURL string, into any) error {
	attempts := uint(c.cfg.RetryMax)
	if attempts == 0 {
		attempts = 1
	}

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Accept", "application/json")
			req.Header.Set("User-Agent", c.cfg.UserAgent)

			resp, err := c.http.Do(req)
			if err != nil {
				return &TransientError{Op: "get", Err: err}
			}
			defer func() { _ = resp.Body.Close() }()

			switch {
			case resp.StatusCode == http.StatusOK:
				// fall through to decode
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				return &TransientError{Op: "get", Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
			case resp.StatusCode == http.StatusNotFound:
				return retry.Unrecoverable(ErrAreaNotFound)
			default:
				return retry.Unrecoverable(fmt.Errorf("HTTP %d", resp.StatusCode))
			}

			if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode response: %w", err))
			}
			return nil
		},
		retry.Attempts(attempts),
		retry.LastErrorOnly(true),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(10*time.Second),
		retry.MaxJitter(time.Second),
		retry.Context(ctx),
		retry.RetryIf(IsTransient),
		retry.OnRetry(func(n uint, err error) {
			c.log.Debug("inventory fetch retry", logx.Int("attempt", int(n)+1), logx.Err(err))
		}),
	)
	if err != nil && ctx.Err() != nil {
		// Context cancellation trumps whatever the last attempt saw.
		return &TransientError{Op: "get", Err: ctx.Err()}
	}
	return err
}
