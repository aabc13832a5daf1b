// Package api exposes the signal engine over HTTP: on-demand evaluation,
// multi-symbol scans, the WebSocket verdict stream and operational endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trading-signals/internal/engine"
	"trading-signals/internal/markethours"
	"trading-signals/internal/metrics"
	"trading-signals/internal/model"
)

// Deps wires the router. Service is required; the rest are optional.
type Deps struct {
	Service         *engine.Service
	Hub             *Hub
	Health          *metrics.HealthStatus
	Symbols         []model.Instrument // default scan list
	ScanConcurrency int
	RequestTimeout  time.Duration
	Logger          *slog.Logger
}

type router struct {
	Deps
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// NewRouter sets up the HTTP routes for the API server.
func NewRouter(d Deps) *http.ServeMux {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}
	rt := &router{Deps: d}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", rt.health)
	mux.HandleFunc("GET /api/v1/signals", rt.signals)
	mux.HandleFunc("POST /api/v1/scan", rt.scan)
	mux.HandleFunc("GET /api/v1/symbols", rt.symbols)
	mux.HandleFunc("GET /api/v1/markets", rt.markets)
	mux.HandleFunc("GET /api/v1/source/check", rt.sourceCheck)
	mux.HandleFunc("OPTIONS /api/v1/", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.WriteHeader(http.StatusNoContent)
	})
	if d.Hub != nil {
		mux.HandleFunc("GET /api/v1/stream", d.Hub.ServeWS)
		mux.HandleFunc("GET /api/v1/stream/missed", rt.missed)
	}
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// writeJSON marshals v before writing the status. Encode failures are logged
// and answered with 500.
func (rt *router) writeJSON(w http.ResponseWriter, code int, v any) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	body, err := json.Marshal(v)
	if err != nil {
		rt.Logger.Error("encode response", "status", code, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		body, _ = json.Marshal(errorBody{Error: "encode response: " + err.Error()})
		w.Write(append(body, '\n'))
		return
	}
	w.WriteHeader(code)
	if _, err := w.Write(append(body, '\n')); err != nil {
		rt.Logger.Debug("write response", "error", err)
	}
}

type errorBody struct {
	Error    string `json:"error"`
	NoResult bool   `json:"no_result,omitempty"`
}

func (rt *router) health(w http.ResponseWriter, r *http.Request) {
	if rt.Health != nil {
		SetCORS(w)
		rt.Health.ServeHTTP(w, r)
		return
	}
	rt.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func instrumentFrom(r *http.Request, fallbackMarket, fallbackSymbol string) (model.Instrument, error) {
	q := r.URL.Query()
	market, symbol := q.Get("market"), q.Get("symbol")
	if market == "" {
		market = fallbackMarket
	}
	if symbol == "" {
		symbol = fallbackSymbol
	}
	if symbol == "" {
		return model.Instrument{}, errors.New("symbol is required")
	}
	return model.ResolveSymbol(model.Market(market), symbol)
}

// signals runs one evaluation: GET /api/v1/signals?market=crypto&symbol=BTC
func (rt *router) signals(w http.ResponseWriter, r *http.Request) {
	inst, err := instrumentFrom(r, string(model.MarketCrypto), "")
	if err != nil {
		rt.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), rt.RequestTimeout)
	defer cancel()
	rep, err := rt.Service.Evaluate(ctx, inst)
	if err != nil {
		code := statusFor(err)
		rt.writeJSON(w, code, errorBody{Error: err.Error(), NoResult: errors.Is(err, engine.ErrNoResult)})
		return
	}
	rt.writeJSON(w, http.StatusOK, rep)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrNoResult):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrUnknownSymbol):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		// Malformed bars and source failures are upstream data problems.
		return http.StatusBadGateway
	}
}

type scanRequest struct {
	Symbols []struct {
		Market string `json:"market"`
		Symbol string `json:"symbol"`
	} `json:"symbols"`
	Concurrency int `json:"concurrency"`
}

// scan evaluates many instruments: POST /api/v1/scan. An empty body scans
// the configured symbol list.
func (rt *router) scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			rt.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid scan request: " + err.Error()})
			return
		}
	}

	insts := rt.Symbols
	if len(req.Symbols) > 0 {
		insts = make([]model.Instrument, 0, len(req.Symbols))
		for _, s := range req.Symbols {
			inst, err := model.ResolveSymbol(model.Market(s.Market), s.Symbol)
			if err != nil {
				rt.writeJSON(w, http.StatusBadRequest, errorBody{Error: s.Market + ":" + s.Symbol + ": " + err.Error()})
				return
			}
			insts = append(insts, inst)
		}
	}
	concurrency := rt.ScanConcurrency
	if req.Concurrency > 0 && (concurrency <= 0 || req.Concurrency < concurrency) {
		concurrency = req.Concurrency
	}

	ctx, cancel := context.WithTimeout(r.Context(), rt.RequestTimeout)
	defer cancel()
	start := time.Now()
	results, err := rt.Service.ScanAll(ctx, insts, concurrency)
	if err != nil {
		rt.writeJSON(w, statusFor(err), errorBody{Error: err.Error()})
		return
	}
	rt.Logger.Info("scan complete", "symbols", len(insts), "duration", time.Since(start))
	rt.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (rt *router) symbols(w http.ResponseWriter, r *http.Request) {
	rt.writeJSON(w, http.StatusOK, map[string][]string{
		string(model.MarketForex):  model.KnownSymbols(model.MarketForex),
		string(model.MarketCrypto): model.KnownSymbols(model.MarketCrypto),
	})
}

type marketStatus struct {
	Market    model.Market `json:"market"`
	Open      bool         `json:"open"`
	Status    string       `json:"status"`
	NextOpen  *time.Time   `json:"next_open,omitempty"`
	NextClose *time.Time   `json:"next_close,omitempty"`
}

// markets reports trading sessions: GET /api/v1/markets
func (rt *router) markets(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	out := make([]marketStatus, 0, 2)
	for _, m := range []model.Market{model.MarketForex, model.MarketCrypto} {
		st := marketStatus{Market: m, Open: markethours.IsOpen(m, now), Status: markethours.StatusString(m, now)}
		if !st.Open {
			next := markethours.NextOpen(m, now)
			st.NextOpen = &next
		} else if c := markethours.NextClose(m, now); !c.IsZero() {
			st.NextClose = &c
		}
		out = append(out, st)
	}
	rt.writeJSON(w, http.StatusOK, map[string]any{"markets": out})
}

type sourceCheck struct {
	Source     string           `json:"source"`
	Instrument model.Instrument `json:"instrument"`
	OK         bool             `json:"ok"`
	Bars       int              `json:"bars"`
	Error      string           `json:"error,omitempty"`
}

// sourceCheck queries the bar source: GET /api/v1/source/check[?market=&symbol=]
// defaults to crypto:BTC.
func (rt *router) sourceCheck(w http.ResponseWriter, r *http.Request) {
	inst, err := instrumentFrom(r, string(model.MarketCrypto), "BTC")
	if err != nil {
		rt.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), rt.RequestTimeout)
	defer cancel()

	out := sourceCheck{Source: rt.Service.SourceName(), Instrument: inst}
	n, err := rt.Service.CheckSource(ctx, inst)
	if err != nil {
		out.Error = err.Error()
		rt.writeJSON(w, http.StatusServiceUnavailable, out)
		return
	}
	out.OK, out.Bars = n > 0, n
	code := http.StatusOK
	if !out.OK {
		code = http.StatusServiceUnavailable
	}
	rt.writeJSON(w, code, out)
}

// missed returns buffered stream envelopes: GET /api/v1/stream/missed?from=N[&to=M]
func (rt *router) missed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := strconv.ParseInt(q.Get("from"), 10, 64)
	if err != nil {
		rt.writeJSON(w, http.StatusBadRequest, errorBody{Error: "from must be an integer sequence number"})
		return
	}
	to := rt.Hub.Seq()
	if s := q.Get("to"); s != "" {
		if to, err = strconv.ParseInt(s, 10, 64); err != nil {
			rt.writeJSON(w, http.StatusBadRequest, errorBody{Error: "to must be an integer sequence number"})
			return
		}
	}

	frames := rt.Hub.Missed(from, to)
	out := make([]json.RawMessage, len(frames))
	for i, f := range frames {
		out[i] = f
	}
	rt.writeJSON(w, http.StatusOK, map[string]any{"seq": rt.Hub.Seq(), "envelopes": out})
}
