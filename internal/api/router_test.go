package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-signals/internal/engine"
	"trading-signals/internal/metrics"
	"trading-signals/internal/model"
)

type memSource struct{ bars map[string][]model.Bar }

func (m *memSource) Name() string { return "mem" }
func (m *memSource) Close() error { return nil }
func (m *memSource) Bars(_ context.Context, q model.BarQuery) ([]model.Bar, error) {
	b, ok := m.bars[q.Ticker]
	if !ok {
		return nil, model.ErrUnknownSymbol
	}
	return q.Window(b), nil
}

func descending(from float64, n int) []model.Bar {
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.Bar, n)
	for i := range out {
		c := from - float64(i)
		out[i] = model.Bar{Time: t0.Add(time.Duration(i) * time.Hour), Open: c, High: c + 0.5, Low: c - 0.5, Close: c}
	}
	return out
}

func newTestRouter(t *testing.T) (*http.ServeMux, *Hub) {
	t.Helper()
	src := &memSource{bars: map[string][]model.Bar{
		"BTC-USD":  descending(130, 31),
		"ETH-USD":  descending(50, 5),
		"EURUSD=X": descending(130, 40),
	}}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	hub := NewHub(m)
	svc := engine.NewService(engine.ServiceConfig{Source: src, Metrics: m, Publisher: hub})
	btc, _ := model.ResolveSymbol(model.MarketCrypto, "BTC")
	eth, _ := model.ResolveSymbol(model.MarketCrypto, "ETH")
	return NewRouter(Deps{Service: svc, Hub: hub, Symbols: []model.Instrument{btc, eth}, ScanConcurrency: 2}), hub
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestSignals(t *testing.T) {
	mux, hub := newTestRouter(t)

	rec := do(t, mux, http.MethodGet, "/api/v1/signals?market=crypto&symbol=btc", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var rep engine.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, "BTC-USD", rep.Instrument.Ticker)
	assert.Equal(t, "BUY", string(rep.Result.Verdict.Overall))
	assert.Equal(t, 130.0-30, rep.Result.Quote.Price)
	assert.EqualValues(t, 1, hub.Seq())
}

func TestSignals_Errors(t *testing.T) {
	mux, _ := newTestRouter(t)
	tests := []struct {
		target string
		code   int
	}{
		{"/api/v1/signals", http.StatusBadRequest},
		{"/api/v1/signals?market=stocks&symbol=AAPL", http.StatusBadRequest},
		{"/api/v1/signals?symbol=DOGE", http.StatusNotFound},
		{"/api/v1/signals?symbol=ETH", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		rec := do(t, mux, http.MethodGet, tt.target, "")
		assert.Equal(t, tt.code, rec.Code, tt.target)
	}

	rec := do(t, mux, http.MethodGet, "/api/v1/signals?symbol=ETH", "")
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.NoResult)
}

func TestScan(t *testing.T) {
	mux, _ := newTestRouter(t)

	rec := do(t, mux, http.MethodPost, "/api/v1/scan", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Results []engine.ScanResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Results, 2)
	assert.NotNil(t, out.Results[0].Report)
	assert.True(t, out.Results[1].NoResult)

	rec = do(t, mux, http.MethodPost, "/api/v1/scan", `{"symbols":[{"market":"forex","symbol":"EUR/USD"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Results, 1)
	assert.Equal(t, "EURUSD=X", out.Results[0].Instrument.Ticker)

	rec = do(t, mux, http.MethodPost, "/api/v1/scan", `{"symbols":[{"market":"bonds","symbol":"X"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, mux, http.MethodPost, "/api/v1/scan", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSymbolsAndSourceCheck(t *testing.T) {
	mux, _ := newTestRouter(t)

	rec := do(t, mux, http.MethodGet, "/api/v1/symbols", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var syms map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &syms))
	assert.Contains(t, syms["forex"], "EUR/USD")
	assert.Contains(t, syms["crypto"], "BTC")

	rec = do(t, mux, http.MethodGet, "/api/v1/markets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var mk struct {
		Markets []marketStatus `json:"markets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mk))
	require.Len(t, mk.Markets, 2)
	assert.Equal(t, model.MarketCrypto, mk.Markets[1].Market)
	assert.True(t, mk.Markets[1].Open)

	rec = do(t, mux, http.MethodGet, "/api/v1/source/check", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var chk sourceCheck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chk))
	assert.True(t, chk.OK)
	assert.Equal(t, 31, chk.Bars)
	assert.Equal(t, "mem", chk.Source)

	rec = do(t, mux, http.MethodGet, "/api/v1/source/check?symbol=DOGE", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	mux, _ := newTestRouter(t)
	assert.Equal(t, http.StatusOK, do(t, mux, http.MethodGet, "/api/v1/health", "").Code)
	assert.Equal(t, http.StatusOK, do(t, mux, http.MethodGet, "/metrics", "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, mux, http.MethodOptions, "/api/v1/scan", "").Code)
}

func TestWriteJSON_UnencodableValue(t *testing.T) {
	var logs bytes.Buffer
	rt := &router{Deps: Deps{Logger: slog.New(slog.NewTextHandler(&logs, nil))}}

	rec := httptest.NewRecorder()
	rt.writeJSON(rec, http.StatusOK, map[string]float64{"score": math.NaN()})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "encode response")
	assert.Contains(t, logs.String(), "encode response")

	rec = httptest.NewRecorder()
	rt.writeJSON(rec, http.StatusAccepted, map[string]float64{"score": 1.5})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"score":1.5}`, rec.Body.String())
}

func TestStreamMissed(t *testing.T) {
	mux, _ := newTestRouter(t)
	do(t, mux, http.MethodGet, "/api/v1/signals?symbol=BTC", "")
	do(t, mux, http.MethodGet, "/api/v1/signals?market=forex&symbol=EUR/USD", "")

	rec := do(t, mux, http.MethodGet, "/api/v1/stream/missed?from=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Seq       int64      `json:"seq"`
		Envelopes []Envelope `json:"envelopes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.EqualValues(t, 2, out.Seq)
	require.Len(t, out.Envelopes, 1)
	assert.Equal(t, "signals:forex:EUR/USD", out.Envelopes[0].Channel)

	assert.Equal(t, http.StatusBadRequest, do(t, mux, http.MethodGet, "/api/v1/stream/missed?from=x", "").Code)
}

func TestStream_WebSocket(t *testing.T) {
	mux, hub := newTestRouter(t)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// Seed a latest value for the initial-state replay.
	do(t, mux, http.MethodGet, "/api/v1/signals?symbol=BTC", "")

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream?symbols=crypto:BTC"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	assert.True(t, env.Initial)
	assert.Equal(t, "signals:crypto:BTC", env.Channel)

	// A forex report is filtered out; the next BTC report arrives live.
	do(t, mux, http.MethodGet, "/api/v1/signals?market=forex&symbol=EUR/USD", "")
	do(t, mux, http.MethodGet, "/api/v1/signals?symbol=BTC", "")

	require.NoError(t, conn.ReadJSON(&env))
	assert.False(t, env.Initial)
	assert.Equal(t, "signals:crypto:BTC", env.Channel)
	assert.EqualValues(t, 3, env.Seq)

	var rep engine.Report
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	assert.Equal(t, "BUY", string(rep.Result.Verdict.Overall))
	assert.Equal(t, 1, hub.ClientCount())
}
