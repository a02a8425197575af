package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/evetabi/plinko/internal/config"
	"github.com/evetabi/plinko/internal/domain"
	"github.com/evetabi/plinko/internal/store"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Exchange definitions
// ──────────────────────────────────────────────────────────────────────────────

const (
	exchangeBinance = "binance"
	exchangeBybit   = "bybit"
	exchangeOKX     = "okx"
)

// exchangeDef describes a single price-feed source.
type exchangeDef struct {
	name   string
	weight decimal.Decimal // 0–100
	fetch  func(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// ──────────────────────────────────────────────────────────────────────────────
// Ingester
// ──────────────────────────────────────────────────────────────────────────────

// Ingester polls spot prices for the configured symbols from multiple
// exchanges, computes a weighted average per symbol, and publishes the
// snapshot to every configured market's feed key. Partial exchange failures
// are handled by re-normalising the weights over the available sources; a
// symbol with no source at all keeps its previous price out of the snapshot,
// which the freshness check upstream will catch.
type Ingester struct {
	client    *http.Client
	storeCli  *store.Client
	cfg       *config.FeedConfig
	markets   []string
	exchanges []exchangeDef
	logger    *slog.Logger
}

// NewIngester constructs an Ingester publishing to the given markets.
func NewIngester(storeCli *store.Client, cfg *config.Config, logger *slog.Logger) *Ingester {
	ing := &Ingester{
		client:   &http.Client{Timeout: cfg.Feed.FetchTimeout},
		storeCli: storeCli,
		cfg:      &cfg.Feed,
		markets:  cfg.Game.Markets,
		logger:   logger,
	}

	// Even exchange weighting; the upstream averaging renormalises when one
	// source drops out, so the exact split only matters when all are healthy.
	ing.exchanges = []exchangeDef{
		{name: exchangeBinance, weight: decimal.NewFromInt(50), fetch: ing.fetchBinance},
		{name: exchangeBybit, weight: decimal.NewFromInt(30), fetch: ing.fetchBybit},
		{name: exchangeOKX, weight: decimal.NewFromInt(20), fetch: ing.fetchOKX},
	}
	return ing
}

// Run polls until ctx is cancelled. Call it as a goroutine from main().
func (ing *Ingester) Run(ctx context.Context) {
	ticker := time.NewTicker(ing.cfg.PollInterval)
	defer ticker.Stop()

	ing.logger.Info("feed ingester started",
		"symbols", ing.cfg.Symbols, "interval", ing.cfg.PollInterval)

	for {
		select {
		case <-ctx.Done():
			ing.logger.Info("feed ingester: shutting down")
			return
		case <-ticker.C:
			ing.pollOnce(ctx)
		}
	}
}

// pollOnce fetches all symbols, assembles a snapshot, and writes it to the
// feed key of every market this process serves.
func (ing *Ingester) pollOnce(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, ing.cfg.FetchTimeout)
	defer cancel()

	type symResult struct {
		symbol string
		price  decimal.Decimal
		err    error
	}

	resultCh := make(chan symResult, len(ing.cfg.Symbols))
	var wg sync.WaitGroup
	for _, sym := range ing.cfg.Symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			price, err := ing.weightedPrice(fetchCtx, symbol)
			resultCh <- symResult{symbol: symbol, price: price, err: err}
		}(sym)
	}
	wg.Wait()
	close(resultCh)

	snap := &domain.Snapshot{
		Symbols:    make(map[string]domain.SymbolPrice, len(ing.cfg.Symbols)),
		CapturedAt: time.Now().UTC(),
	}
	for r := range resultCh {
		if r.err != nil {
			ing.logger.Warn("feed: symbol fetch failed", "symbol", r.symbol, "err", r.err)
			continue
		}
		f, _ := r.price.Float64()
		snap.Symbols[r.symbol] = domain.SymbolPrice{Price: f}
	}
	if len(snap.Symbols) == 0 {
		ing.logger.Warn("feed: no symbols fetched, snapshot not published")
		return
	}

	for _, market := range ing.markets {
		// Feed key TTL is generous; staleness is judged by capturedAt.
		if err := ing.storeCli.SetJSON(ctx, store.FeedKey(market), snap, 5*time.Minute); err != nil {
			ing.logger.Warn("feed: publish failed", "market", market, "err", err)
		}
	}
}

// weightedPrice fetches one symbol from all exchanges in parallel and returns
// the weighted average over the sources that answered.
func (ing *Ingester) weightedPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	type result struct {
		name  string
		price decimal.Decimal
		err   error
	}

	resultCh := make(chan result, len(ing.exchanges))
	for _, ex := range ing.exchanges {
		ex := ex
		go func() {
			p, err := ex.fetch(ctx, symbol)
			resultCh <- result{name: ex.name, price: p, err: err}
		}()
	}

	var sumWeighted, sumWeights decimal.Decimal
	for range ing.exchanges {
		r := <-resultCh
		if r.err != nil || r.price.IsZero() {
			continue
		}
		for _, ex := range ing.exchanges {
			if ex.name == r.name {
				sumWeighted = sumWeighted.Add(r.price.Mul(ex.weight))
				sumWeights = sumWeights.Add(ex.weight)
			}
		}
	}

	if sumWeights.IsZero() {
		return decimal.Zero, fmt.Errorf("feed: all exchange fetches failed for %s", symbol)
	}
	return sumWeighted.Div(sumWeights), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Exchange fetchers
// ──────────────────────────────────────────────────────────────────────────────

// fetchBinance fetches the {symbol}/USDT spot price from Binance REST API.
//
//	GET /api/v3/ticker/price?symbol=BTCUSDT
//	{"symbol":"BTCUSDT","price":"87350.00"}
func (ing *Ingester) fetchBinance(ctx context.Context, symbol string) (decimal.Decimal, error) {
	url := ing.cfg.BinanceURL + "/api/v3/ticker/price?symbol=" + symbol + "USDT"
	body, err := ing.doGet(ctx, url)
	if err != nil {
		return decimal.Zero, fmt.Errorf("binance: %w", err)
	}

	var resp struct {
		Price string `json:"price"`
	}
	if err = json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("binance parse: %w", err)
	}
	if resp.Price == "" {
		return decimal.Zero, fmt.Errorf("binance: empty price field")
	}
	price, err := decimal.NewFromString(resp.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("binance decimal: %w", err)
	}
	return price, nil
}

// fetchBybit fetches the {symbol}/USDT spot price from Bybit REST API.
//
//	GET /v5/market/tickers?category=spot&symbol=BTCUSDT
//	{"result":{"list":[{"lastPrice":"87350.00",...}]}}
func (ing *Ingester) fetchBybit(ctx context.Context, symbol string) (decimal.Decimal, error) {
	url := ing.cfg.BybitURL + "/v5/market/tickers?category=spot&symbol=" + symbol + "USDT"
	body, err := ing.doGet(ctx, url)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bybit: %w", err)
	}

	var resp struct {
		Result struct {
			List []struct {
				LastPrice string `json:"lastPrice"`
			} `json:"list"`
		} `json:"result"`
	}
	if err = json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("bybit parse: %w", err)
	}
	if len(resp.Result.List) == 0 || resp.Result.List[0].LastPrice == "" {
		return decimal.Zero, fmt.Errorf("bybit: empty result list")
	}
	price, err := decimal.NewFromString(resp.Result.List[0].LastPrice)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bybit decimal: %w", err)
	}
	return price, nil
}

// fetchOKX fetches the {symbol}/USDT spot price from OKX REST API.
//
//	GET /api/v5/market/ticker?instId=BTC-USDT
//	{"data":[{"last":"87350.00",...}]}
func (ing *Ingester) fetchOKX(ctx context.Context, symbol string) (decimal.Decimal, error) {
	url := ing.cfg.OKXURL + "/api/v5/market/ticker?instId=" + symbol + "-USDT"
	body, err := ing.doGet(ctx, url)
	if err != nil {
		return decimal.Zero, fmt.Errorf("okx: %w", err)
	}

	var resp struct {
		Data []struct {
			Last string `json:"last"`
		} `json:"data"`
	}
	if err = json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("okx parse: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].Last == "" {
		return decimal.Zero, fmt.Errorf("okx: empty data field")
	}
	price, err := decimal.NewFromString(resp.Data[0].Last)
	if err != nil {
		return decimal.Zero, fmt.Errorf("okx decimal: %w", err)
	}
	return price, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// HTTP helper
// ──────────────────────────────────────────────────────────────────────────────

// doGet performs an HTTP GET with the ingester's client and returns the body
// bytes, or an error for any non-200 status code.
func (ing *Ingester) doGet(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "evetabi-plinko/1.0")

	resp, err := ing.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
