package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// StoreCheck checks that one backing store answers.
type StoreCheck func(ctx context.Context) error

// RedisCheck pings a Redis client.
func RedisCheck(rdb *goredis.Client) StoreCheck {
	return func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
}

// SQLCheck pings a database handle.
func SQLCheck(db *sql.DB) StoreCheck {
	return db.PingContext
}

// CheckResult is the outcome of the most recent check of one store.
type CheckResult struct {
	OK        bool      `json:"ok"`
	LatencyMs float64   `json:"latency_ms"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// HealthStatus tracks whether the bar source is serving and whether the
// stores behind it answer their checks.
type HealthStatus struct {
	mu        sync.RWMutex
	source    string
	sourceOK  bool
	lastRun   time.Time
	startedAt time.Time
	checks    map[string]StoreCheck
	results   map[string]CheckResult
	now       func() time.Time
}

// NewHealthStatus returns a healthy status for the named bar source.
func NewHealthStatus(source string) *HealthStatus {
	return &HealthStatus{
		source:    source,
		sourceOK:  true,
		startedAt: time.Now(),
		checks:    make(map[string]StoreCheck),
		results:   make(map[string]CheckResult),
		now:       time.Now,
	}
}

func (h *HealthStatus) SetSourceOK(v bool) {
	h.mu.Lock()
	h.sourceOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SourceOK() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sourceOK
}

func (h *HealthStatus) SetLastRun(t time.Time) {
	h.mu.Lock()
	h.lastRun = t
	h.mu.Unlock()
}

func (h *HealthStatus) LastRun() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastRun
}

// AddCheck registers a store check under name. A nil check is ignored.
func (h *HealthStatus) AddCheck(name string, p StoreCheck) {
	if p == nil {
		return
	}
	h.mu.Lock()
	h.checks[name] = p
	h.mu.Unlock()
}

// CheckNow runs every check once, each bounded by timeout.
func (h *HealthStatus) CheckNow(ctx context.Context, timeout time.Duration) {
	h.mu.RLock()
	checks := make(map[string]StoreCheck, len(h.checks))
	for n, p := range h.checks {
		checks[n] = p
	}
	h.mu.RUnlock()

	for name, p := range checks {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		start := h.now()
		err := p(pctx)
		cancel()

		res := CheckResult{
			OK:        err == nil,
			LatencyMs: float64(h.now().Sub(start).Microseconds()) / 1000.0,
			CheckedAt: h.now().UTC(),
		}
		if err != nil {
			res.Error = err.Error()
		}
		h.mu.Lock()
		h.results[name] = res
		h.mu.Unlock()
	}
}

// StartLivenessChecker checks the registered stores every interval until
// ctx is done.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, interval time.Duration) {
	go func() {
		h.CheckNow(ctx, 2*time.Second)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.CheckNow(ctx, 2*time.Second)
			}
		}
	}()
}

type healthReport struct {
	Status    string                 `json:"status"`
	Uptime    string                 `json:"uptime"`
	Source    string                 `json:"source"`
	SourceOK  bool                   `json:"source_ok"`
	LastRunAt string                 `json:"last_run_at,omitempty"`
	Stores    map[string]CheckResult `json:"stores,omitempty"`
	Failing   []string               `json:"failing,omitempty"`
}

// ServeHTTP reports health as JSON. The status is "degraded" with a 503 when
// the source is failing or a store check failed.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	rep := healthReport{
		Status:   "ok",
		Uptime:   h.now().Sub(h.startedAt).Round(time.Second).String(),
		Source:   h.source,
		SourceOK: h.sourceOK,
	}
	if !h.lastRun.IsZero() {
		rep.LastRunAt = h.lastRun.UTC().Format(time.RFC3339)
	}
	if len(h.results) > 0 {
		rep.Stores = make(map[string]CheckResult, len(h.results))
		for name, res := range h.results {
			rep.Stores[name] = res
			if !res.OK {
				rep.Failing = append(rep.Failing, name)
			}
		}
	}
	h.mu.RUnlock()
	sort.Strings(rep.Failing)

	code := http.StatusOK
	if !rep.SourceOK || len(rep.Failing) > 0 {
		rep.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(rep)
}
