package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", Env: "development"},
		Game: GameConfig{
			Markets:     []string{"CryptoStream"},
			Multipliers: []float64{4, 2, 1.4, 0, 0.5, 0, 1.2, 1.5, 5},
			StockCount:  3,
			BetTime:     20 * time.Second,
			DeltaTime:   10 * time.Second,
			DropTime:    10 * time.Second,
			PayoutTime:  5 * time.Second,
		},
		RTP: RTPConfig{Desired: 96.5, ThresholdPlayCount: 100, LimitPlayCount: 100000},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		keyword string
	}{
		{"no markets", func(c *Config) { c.Game.Markets = nil }, "MARKETS"},
		{"one multiplier", func(c *Config) { c.Game.Multipliers = []float64{1} }, "PLINKO_MULTIPLIERS"},
		{"zero stock count", func(c *Config) { c.Game.StockCount = 0 }, "PLINKO_STOCK_COUNT"},
		{"zero bet time", func(c *Config) { c.Game.BetTime = 0 }, "PLINKO_BET_TIME_MS"},
		{"absurd rtp", func(c *Config) { c.RTP.Desired = 250 }, "DESIRED_RTP"},
		{"limit below threshold", func(c *Config) {
			c.RTP.ThresholdPlayCount = 500
			c.RTP.LimitPlayCount = 100
		}, "LIMIT_PLAYCOUNT"},
		{"prod without wallet", func(c *Config) { c.Server.Env = "production" }, "WALLET_BASE_URL"},
		{"ingest without symbols", func(c *Config) { c.Feed.IngestEnabled = true }, "FEED_SYMBOLS"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("invalid config accepted")
			}
			if !strings.Contains(err.Error(), tc.keyword) {
				t.Errorf("error %q does not mention %s", err, tc.keyword)
			}
		})
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_MILLIS", "1500")
	if got := getMillis("TEST_MILLIS", time.Second); got != 1500*time.Millisecond {
		t.Errorf("getMillis = %v, want 1.5s", got)
	}
	if got := getMillis("TEST_MILLIS_UNSET", time.Second); got != time.Second {
		t.Errorf("getMillis default = %v, want 1s", got)
	}

	t.Setenv("TEST_FLOATS", "4, 2,1.4 ,0")
	floats, err := getFloatList("TEST_FLOATS", nil)
	if err != nil || len(floats) != 4 || floats[2] != 1.4 {
		t.Errorf("getFloatList = %v, %v", floats, err)
	}

	t.Setenv("TEST_LIST", " BTC , ETH ,,SOL")
	if got := getStringList("TEST_LIST", nil); len(got) != 3 || got[1] != "ETH" {
		t.Errorf("getStringList = %v", got)
	}
}
