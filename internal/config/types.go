package config

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Monitor   MonitorConfig   `json:"monitor"`
	Inventory InventoryConfig `json:"inventory"`
	Storage   StorageConfig   `json:"storage"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// MonitorConfig controls the stock reconciliation loop.
//
// All durations are Go duration strings (e.g. "30s", "5m").
//
// Defaults (when fields are omitted/zero):
//   - interval: "5m"
//   - fetch_timeout: "30s"
//   - fetch_spacing: "2s" (minimum gap between inventory fetches)
//   - low_stock_threshold: 5
type MonitorConfig struct {
	Interval          string `json:"interval,omitempty"`
	FetchTimeout      string `json:"fetch_timeout,omitempty"`
	FetchSpacing      string `json:"fetch_spacing,omitempty"`
	LowStockThreshold int    `json:"low_stock_threshold,omitempty"`

	// SendSpacing throttles outbound Telegram sends (default "2s").
	SendSpacing string `json:"send_spacing,omitempty"`
}

type InventoryConfig struct {
	BaseURL string `json:"base_url,omitempty"`
	// Timeout is the HTTP client timeout per request (default "20s").
	Timeout   string `json:"timeout,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	// RetryMax bounds retry attempts for transient fetch errors (default 3).
	RetryMax int `json:"retry_max,omitempty"`
}

// StorageConfig controls the sqlite state store.
//
// Example:
//
//	"storage": { "path": "./stockwatch.db" }
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}
