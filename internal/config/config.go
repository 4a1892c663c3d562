// Package config holds the service's typed configuration, loaded from
// environment variables (with an optional .env file) the way the
// predecessor node's params package does.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// RPC holds the HTTP/WebSocket surface settings.
type RPC struct {
	ListenAddr       string
	RequireAuth      bool
	APIKeys          []string
	RateLimitPerMin  int
	RateLimitEnabled bool
}

// Metrics holds Prometheus exposition settings.
type Metrics struct {
	Enabled bool
	Addr    string
}

// Registry holds market-catalog refresh settings.
type Registry struct {
	CatalogURL      string
	RefreshInterval time.Duration
	FetchTimeout    time.Duration
}

// Oracle holds oracle/CEX price-poller settings.
type Oracle struct {
	PriceURL     string
	PollInterval time.Duration
	FetchTimeout time.Duration
}

// Book holds order-book capacity tunables.
type Book struct {
	MaxTotalOrders    int
	MaxLevelsPerSide  int
	MaxOrdersPerLevel int
	MaxPrice          float64
	MaxSize           float64
}

// Breaker holds circuit-breaker tunables.
type Breaker struct {
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
	ErrorWindow      time.Duration
}

// MarkPrice holds the mark-price ticker cadence and EMA time constants.
type MarkPrice struct {
	TickInterval time.Duration
	BasisTau     time.Duration
	MidTau       time.Duration
}

type Config struct {
	LogFile   string
	RPC       RPC
	Metrics   Metrics
	Registry  Registry
	Oracle    Oracle
	Book      Book
	Breaker   Breaker
	MarkPrice MarkPrice
}

func Default() Config {
	return Config{
		LogFile: "data/mdfeed.log",
		RPC: RPC{
			ListenAddr:       ":8080",
			RequireAuth:      false,
			RateLimitEnabled: false,
			RateLimitPerMin:  600,
		},
		Metrics: Metrics{
			Enabled: false,
			Addr:    ":8081",
		},
		Registry: Registry{
			RefreshInterval: 300 * time.Second,
			FetchTimeout:    10 * time.Second,
		},
		Oracle: Oracle{
			PollInterval: 2 * time.Second,
			FetchTimeout: 500 * time.Millisecond,
		},
		Book: Book{
			MaxTotalOrders:    10_000,
			MaxLevelsPerSide:  1_000,
			MaxOrdersPerLevel: 100,
			MaxPrice:          1e12,
			MaxSize:           1e12,
		},
		Breaker: Breaker{
			FailureThreshold: 10,
			SuccessThreshold: 3,
			OpenTimeout:      30 * time.Second,
			ErrorWindow:      60 * time.Second,
		},
		MarkPrice: MarkPrice{
			TickInterval: 1 * time.Second,
			BasisTau:     150 * time.Second, // 2.5 min
			MidTau:       30 * time.Second,  // 0.5 min
		},
	}
}

// LoadFromEnv loads an optional .env file (envPath == "" loads ".env" from
// the working directory) and layers environment-variable overrides on top
// of Default(), mirroring the predecessor's params.LoadFromEnv.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("RPC_ADDR"); v != "" {
		cfg.RPC.ListenAddr = v
	}
	if v := os.Getenv("REQUIRE_AUTH"); v != "" {
		cfg.RPC.RequireAuth = v == "true"
	}
	if v := os.Getenv("API_KEYS"); v != "" {
		cfg.RPC.APIKeys = splitCSV(v)
	}
	if v := os.Getenv("RATE_LIMIT_ENABLED"); v != "" {
		cfg.RPC.RateLimitEnabled = v == "true"
	}
	if v := envInt("RATE_LIMIT_PER_MIN"); v > 0 {
		cfg.RPC.RateLimitPerMin = v
	}
	if v := os.Getenv("ENABLE_METRICS"); v != "" {
		cfg.Metrics.Enabled = v == "true"
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("CATALOG_URL"); v != "" {
		cfg.Registry.CatalogURL = v
	}
	if v := envDurationMs("REGISTRY_REFRESH_MS"); v > 0 {
		cfg.Registry.RefreshInterval = v
	}
	if v := os.Getenv("ORACLE_URL"); v != "" {
		cfg.Oracle.PriceURL = v
	}
	if v := envDurationMs("ORACLE_POLL_MS"); v > 0 {
		cfg.Oracle.PollInterval = v
	}
	if v := envInt("BOOK_MAX_TOTAL_ORDERS"); v > 0 {
		cfg.Book.MaxTotalOrders = v
	}
	if v := envInt("BOOK_MAX_LEVELS_PER_SIDE"); v > 0 {
		cfg.Book.MaxLevelsPerSide = v
	}
	if v := envInt("BOOK_MAX_ORDERS_PER_LEVEL"); v > 0 {
		cfg.Book.MaxOrdersPerLevel = v
	}
	if v := envInt("BREAKER_FAILURE_THRESHOLD"); v > 0 {
		cfg.Breaker.FailureThreshold = v
	}
	if v := envInt("BREAKER_SUCCESS_THRESHOLD"); v > 0 {
		cfg.Breaker.SuccessThreshold = v
	}
	if v := envDurationMs("BREAKER_OPEN_TIMEOUT_MS"); v > 0 {
		cfg.Breaker.OpenTimeout = v
	}

	return cfg
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envDurationMs(key string) time.Duration {
	n := envInt(key)
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Millisecond
}
