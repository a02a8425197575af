package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/evetabi/plinko/internal/api/handler"
	"github.com/evetabi/plinko/internal/config"
	"github.com/evetabi/plinko/internal/domain"
	"github.com/gin-gonic/gin"
)

type fakeState struct {
	states map[string]*domain.RoundState
}

func (f *fakeState) LoadRoundState(_ context.Context, market string) (*domain.RoundState, error) {
	if s, ok := f.states[market]; ok {
		return s, nil
	}
	return nil, domain.ErrNoRound
}

type fakeMetrics struct {
	m domain.RTPMetrics
}

func (f *fakeMetrics) Metrics(_ context.Context, _ string) domain.RTPMetrics { return f.m }

func newTestRouter(states map[string]*domain.RoundState, m domain.RTPMetrics) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := handler.NewMarketHandler(
		&fakeState{states: states},
		&fakeMetrics{m: m},
		&config.GameConfig{Markets: []string{"CryptoStream", "TechStream"}},
	)
	r := gin.New()
	r.GET("/api/markets", h.List)
	r.GET("/api/markets/:market/state", h.GetState)
	r.GET("/api/markets/:market/rtp", h.GetRTP)
	return r
}

func doGet(t *testing.T, r *gin.Engine, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return w, body
}

func TestListMarkets(t *testing.T) {
	r := newTestRouter(map[string]*domain.RoundState{
		"CryptoStream": {Phase: domain.PhaseBetting, RoundID: "round-1"},
	}, domain.RTPMetrics{})

	w, body := doGet(t, r, "/api/markets")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	rows, ok := body["data"].([]interface{})
	if !ok || len(rows) != 2 {
		t.Fatalf("data = %v, want 2 markets", body["data"])
	}
	first := rows[0].(map[string]interface{})
	if first["name"] != "CryptoStream" || first["phase"] != "BETTING" {
		t.Errorf("first row = %v", first)
	}
	// TechStream has no round; its row carries the name only.
	second := rows[1].(map[string]interface{})
	if second["name"] != "TechStream" {
		t.Errorf("second row = %v", second)
	}
	if _, present := second["phase"]; present {
		t.Errorf("idle market leaked a phase: %v", second)
	}
}

func TestGetState(t *testing.T) {
	r := newTestRouter(map[string]*domain.RoundState{
		"CryptoStream": {Phase: domain.PhaseDropping, RoundID: "round-9"},
	}, domain.RTPMetrics{})

	w, body := doGet(t, r, "/api/markets/CryptoStream/state")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", w.Code, body)
	}
	data := body["data"].(map[string]interface{})
	if data["phase"] != "DROPPING" || data["roundId"] != "round-9" {
		t.Errorf("data = %v", data)
	}

	w, body = doGet(t, r, "/api/markets/TechStream/state")
	if w.Code != http.StatusNotFound || body["code"] != "ERR_NO_ROUND" {
		t.Errorf("idle market: status %d body %v", w.Code, body)
	}

	w, body = doGet(t, r, "/api/markets/Bogus/state")
	if w.Code != http.StatusNotFound || body["code"] != "ERR_UNKNOWN_MARKET" {
		t.Errorf("unknown market: status %d body %v", w.Code, body)
	}
}

func TestGetRTP(t *testing.T) {
	r := newTestRouter(nil, domain.RTPMetrics{
		TotalBet: 50000, TotalWon: 48000, PlayCount: 1000, CurrentRTP: 96,
	})

	w, body := doGet(t, r, "/api/markets/CryptoStream/rtp")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	data := body["data"].(map[string]interface{})
	if data["currentRTP"].(float64) != 96 || data["playCount"].(float64) != 1000 {
		t.Errorf("data = %v", data)
	}
}
