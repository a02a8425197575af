// Package config provides application configuration loaded from environment variables.
// Use the package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        // e.g. "8080"
	Env          string        // "development" | "production"
	ReadTimeout  time.Duration // default 10s
	WriteTimeout time.Duration // default 10s
}

// RedisConfig holds shared state store connection settings.
type RedisConfig struct {
	Addr     string // host:port, default "localhost:6379"
	Password string
	DB       int
}

// GameConfig holds the per-round game parameters.
type GameConfig struct {
	Markets       []string      // markets to run round loops for
	Multipliers   []float64     // ordered multiplier slot values, length ≥ 2
	StockCount    int           // symbols selected per round
	BetTime       time.Duration // BETTING phase duration
	DeltaTime     time.Duration // ACCUMULATION phase duration
	DropTime      time.Duration // DROPPING phase duration
	PayoutTime    time.Duration // PAYOUT phase duration
	LeaseTTL      time.Duration // gameloop lease TTL, default 10s
	RoundKeyTTL   time.Duration // TTL on ancillary round keys, default 300s
	PayoutWorkers int           // bounded parallelism for wallet credits
}

// RTPConfig holds the payout-governor settings.
type RTPConfig struct {
	Desired            float64 // target payout percentage, e.g. 96.5
	ThresholdPlayCount int64   // min plays before the governor activates
	LimitPlayCount     int64   // plays at which counters auto-reset
}

// WalletConfig holds the wallet gateway settings.
type WalletConfig struct {
	BaseURL         string
	Timeout         time.Duration // default 5s
	SignatureSecret string
}

// FeedConfig holds market-data feed settings.
type FeedConfig struct {
	FreshnessWindow time.Duration // snapshot max age for health, default 5s
	IngestEnabled   bool          // run the built-in exchange ingester
	Symbols         []string      // symbols the ingester publishes
	PollInterval    time.Duration // ingester interval, default 1s
	FetchTimeout    time.Duration // per-exchange HTTP timeout, default 2s
	BinanceURL      string
	BybitURL        string
	OKXURL          string
}

// AuthConfig holds realtime session authentication settings.
type AuthConfig struct {
	JWTSecret      string        // optional fallback; empty disables JWT auth
	SessionTTL     time.Duration // session store entry lifetime
	AllowedOrigins []string      // WS origins; empty = allow all (dev)
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server ServerConfig
	Redis  RedisConfig
	Game   GameConfig
	RTP    RTPConfig
	Wallet WalletConfig
	Feed   FeedConfig
	Auth   AuthConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// Returns the first validation error encountered.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Game.Markets) == 0 {
		errs = append(errs, errors.New("MARKETS must name at least one market"))
	}
	if len(c.Game.Multipliers) < 2 {
		errs = append(errs, fmt.Errorf(
			"PLINKO_MULTIPLIERS must list at least 2 values, got %d", len(c.Game.Multipliers)))
	}
	if c.Game.StockCount < 1 {
		errs = append(errs, fmt.Errorf(
			"PLINKO_STOCK_COUNT must be >= 1, got %d", c.Game.StockCount))
	}
	for _, d := range []struct {
		name string
		val  time.Duration
	}{
		{"PLINKO_BET_TIME_MS", c.Game.BetTime},
		{"PLINKO_DELTA_TIME_MS", c.Game.DeltaTime},
		{"PLINKO_DROP_TIME_MS", c.Game.DropTime},
		{"PLINKO_PAYOUT_TIME_MS", c.Game.PayoutTime},
	} {
		if d.val <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", d.name))
		}
	}

	if c.RTP.Desired <= 0 || c.RTP.Desired > 200 {
		errs = append(errs, fmt.Errorf(
			"DESIRED_RTP must be in (0, 200], got %.2f", c.RTP.Desired))
	}
	if c.RTP.LimitPlayCount > 0 && c.RTP.LimitPlayCount < c.RTP.ThresholdPlayCount {
		errs = append(errs, fmt.Errorf(
			"LIMIT_PLAYCOUNT (%d) must not be below THRESHOLD_PLAYCOUNT (%d)",
			c.RTP.LimitPlayCount, c.RTP.ThresholdPlayCount))
	}

	if c.IsProd() && c.Wallet.BaseURL == "" {
		errs = append(errs, errors.New("WALLET_BASE_URL must be set in production"))
	}
	if c.IsProd() && c.Wallet.SignatureSecret == "" {
		errs = append(errs, errors.New("WALLET_SIGNATURE_SECRET must be set in production"))
	}

	if c.Feed.IngestEnabled {
		if len(c.Feed.Symbols) == 0 {
			errs = append(errs, errors.New("FEED_SYMBOLS must be set when FEED_INGEST_ENABLED=true"))
		} else if c.Game.StockCount > len(c.Feed.Symbols) {
			errs = append(errs, fmt.Errorf(
				"PLINKO_STOCK_COUNT (%d) exceeds the %d configured FEED_SYMBOLS",
				c.Game.StockCount, len(c.Feed.Symbols)))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from environment variables.
// Panics if loading fails — call this early in main() to catch misconfigurations
// at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Internal loader
// ──────────────────────────────────────────────────────────────────────────────

func load() (*Config, error) {
	cfg := &Config{}

	// ── Server ────────────────────────────────────────────────────────────────
	cfg.Server = ServerConfig{
		Port:         getEnv("SERVER_PORT", "8080"),
		Env:          getEnv("ENVIRONMENT", "development"),
		ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	redisDB, err := getInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("REDIS_DB: %w", err)
	}
	cfg.Redis = RedisConfig{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       redisDB,
	}

	// ── Game ──────────────────────────────────────────────────────────────────
	multipliers, err := getFloatList("PLINKO_MULTIPLIERS",
		[]float64{4, 2, 1.4, 0, 0.5, 0, 1.2, 1.5, 5})
	if err != nil {
		return nil, fmt.Errorf("PLINKO_MULTIPLIERS: %w", err)
	}
	stockCount, err := getInt("PLINKO_STOCK_COUNT", 3)
	if err != nil {
		return nil, fmt.Errorf("PLINKO_STOCK_COUNT: %w", err)
	}
	payoutWorkers, err := getInt("PAYOUT_WORKERS", 8)
	if err != nil {
		return nil, fmt.Errorf("PAYOUT_WORKERS: %w", err)
	}

	cfg.Game = GameConfig{
		Markets:       getStringList("MARKETS", []string{"CryptoStream"}),
		Multipliers:   multipliers,
		StockCount:    stockCount,
		BetTime:       getMillis("PLINKO_BET_TIME_MS", 20000*time.Millisecond),
		DeltaTime:     getMillis("PLINKO_DELTA_TIME_MS", 10000*time.Millisecond),
		DropTime:      getMillis("PLINKO_DROP_TIME_MS", 10000*time.Millisecond),
		PayoutTime:    getMillis("PLINKO_PAYOUT_TIME_MS", 5000*time.Millisecond),
		LeaseTTL:      getDuration("GAMELOOP_LEASE_TTL", 10*time.Second),
		RoundKeyTTL:   getDuration("ROUND_KEY_TTL", 300*time.Second),
		PayoutWorkers: payoutWorkers,
	}

	// ── RTP ───────────────────────────────────────────────────────────────────
	desired, err := getFloat("DESIRED_RTP", 96.5)
	if err != nil {
		return nil, fmt.Errorf("DESIRED_RTP: %w", err)
	}
	threshold, err := getInt("THRESHOLD_PLAYCOUNT", 100)
	if err != nil {
		return nil, fmt.Errorf("THRESHOLD_PLAYCOUNT: %w", err)
	}
	limit, err := getInt("LIMIT_PLAYCOUNT", 100000)
	if err != nil {
		return nil, fmt.Errorf("LIMIT_PLAYCOUNT: %w", err)
	}
	cfg.RTP = RTPConfig{
		Desired:            desired,
		ThresholdPlayCount: int64(threshold),
		LimitPlayCount:     int64(limit),
	}

	// ── Wallet ────────────────────────────────────────────────────────────────
	cfg.Wallet = WalletConfig{
		BaseURL:         getEnv("WALLET_BASE_URL", "http://localhost:9000"),
		Timeout:         getMillis("WALLET_TIMEOUT_MS", 5*time.Second),
		SignatureSecret: getEnv("WALLET_SIGNATURE_SECRET", ""),
	}

	// ── Feed ──────────────────────────────────────────────────────────────────
	freshSecs, err := getInt("SNAPSHOT_FRESHNESS_SECONDS", 5)
	if err != nil {
		return nil, fmt.Errorf("SNAPSHOT_FRESHNESS_SECONDS: %w", err)
	}
	cfg.Feed = FeedConfig{
		FreshnessWindow: time.Duration(freshSecs) * time.Second,
		IngestEnabled:   getEnv("FEED_INGEST_ENABLED", "false") == "true",
		Symbols:         getStringList("FEED_SYMBOLS", []string{"BTC", "ETH", "SOL", "BNB", "XRP"}),
		PollInterval:    getDuration("FEED_POLL_INTERVAL", 1*time.Second),
		FetchTimeout:    getDuration("FEED_FETCH_TIMEOUT", 2*time.Second),
		BinanceURL:      getEnv("FEED_BINANCE_URL", "https://api.binance.com"),
		BybitURL:        getEnv("FEED_BYBIT_URL", "https://api.bybit.com"),
		OKXURL:          getEnv("FEED_OKX_URL", "https://www.okx.com"),
	}

	// ── Auth ──────────────────────────────────────────────────────────────────
	cfg.Auth = AuthConfig{
		JWTSecret:      getEnv("JWT_ACCESS_SECRET", ""),
		SessionTTL:     getDuration("SESSION_TTL", 30*time.Minute),
		AllowedOrigins: getStringList("WS_ALLOWED_ORIGINS", nil),
	}

	return cfg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float %q", v)
	}
	return f, nil
}

// getDuration parses an env var as a Go duration string (e.g. "15m", "2s").
// Falls back to defaultVal if the variable is unset or empty.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Fall back to default; do not crash on parse error
		return defaultVal
	}
	return d
}

// getMillis parses an env var holding an integer millisecond count.
// Falls back to defaultVal if unset or unparsable.
func getMillis(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return defaultVal
	}
	return time.Duration(ms) * time.Millisecond
}

// getStringList parses a comma-separated env var, trimming whitespace and
// dropping empty entries.
func getStringList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

// getFloatList parses a comma-separated env var of floats.
func getFloatList(key string, defaultVal []float64) ([]float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	var out []float64
	for _, part := range strings.Split(v, ",") {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q", p)
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return defaultVal, nil
	}
	return out, nil
}
