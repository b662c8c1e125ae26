// Package health serves liveness, readiness and status endpoints.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"warden/pkg/platform/httputil"
)

// Version is set at build time via ldflags.
var Version = "dev"

type CheckFunc func(ctx context.Context) error

type check struct {
	name     string
	fn       CheckFunc
	optional bool
}

type CheckOption func(*check)

// Optional marks a dependency the service can run without, such as a cache
// with an in-process fallback. Its failure degrades readiness but keeps 200.
func Optional() CheckOption {
	return func(c *check) { c.optional = true }
}

type Handler struct {
	started time.Time
	env     string
	timeout time.Duration

	mu     sync.RWMutex
	checks []check
}

func New(environment string) *Handler {
	return &Handler{started: time.Now(), env: environment, timeout: 2 * time.Second}
}

// RegisterCheck adds a dependency to the readiness check. Registering a name
// twice replaces the earlier check; nil checks are ignored.
func (h *Handler) RegisterCheck(name string, fn CheckFunc, opts ...CheckOption) {
	if fn == nil {
		return
	}
	c := check{name: name, fn: fn}
	for _, opt := range opts {
		opt(&c)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.checks {
		if h.checks[i].name == name {
			h.checks[i] = c
			return
		}
	}
	h.checks = append(h.checks, c)
	sort.Slice(h.checks, func(i, j int) bool { return h.checks[i].name < h.checks[j].name })
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.HandleStatus)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}

func (h *Handler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

type CheckResult struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
	Optional  bool   `json:"optional,omitempty"`
}

type ReadinessResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Ready runs every check concurrently under the check timeout. Status is
// "ready", "degraded" when only optional checks failed, or "not_ready".
func (h *Handler) Ready(ctx context.Context) ReadinessResponse {
	h.mu.RLock()
	checks := append([]check(nil), h.checks...)
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	results := make([]CheckResult, len(checks))
	var g errgroup.Group
	for i, c := range checks {
		g.Go(func() error {
			start := time.Now()
			res := CheckResult{Status: "up", Optional: c.optional}
			if err := c.fn(ctx); err != nil {
				res.Status, res.Error = "down", err.Error()
			}
			res.LatencyMS = time.Since(start).Milliseconds()
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	resp := ReadinessResponse{Status: "ready", Checks: make(map[string]CheckResult, len(checks))}
	for i, c := range checks {
		res := results[i]
		resp.Checks[c.name] = res
		switch {
		case res.Status == "up":
		case c.optional:
			if resp.Status == "ready" {
				resp.Status = "degraded"
			}
		default:
			resp.Status = "not_ready"
		}
	}
	return resp
}

func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	resp := h.Ready(r.Context())
	status := http.StatusOK
	if resp.Status == "not_ready" {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}

type StatusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Timestamp     string `json:"timestamp"`
}

func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	now := time.Now()
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{
		Status:        "healthy",
		Version:       Version,
		Environment:   h.env,
		UptimeSeconds: int64(now.Sub(h.started).Seconds()),
		Timestamp:     now.UTC().Format(time.RFC3339),
	})
}
