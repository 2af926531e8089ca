package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/ignite/feed-aggregator/internal/pkg/httputil"
	"github.com/ignite/feed-aggregator/internal/storage"
	"github.com/redis/go-redis/v9"
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status  string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Version string                    `json:"version"`
	Uptime  string                    `json:"uptime"`
	Checks  map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck is the result of probing one dependency.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

const (
	healthVersion = "1.0.0"
	notConfigured = "not configured"
)

// probe is one dependency check. A nil ping means the dependency is not in
// use.
type probe struct {
	name    string
	timeout time.Duration
	slow    time.Duration
	ping    func(ctx context.Context) error
	idle    string // message when ping is nil
}

// HealthChecker probes the item database, Redis and the settings store that
// holds the blacklist.
type HealthChecker struct {
	probes    []probe
	startTime time.Time
}

// NewHealthChecker creates a checker. Any dependency may be nil.
func NewHealthChecker(db *sql.DB, redisClient *redis.Client, store storage.Pinger, storeType string) *HealthChecker {
	hc := &HealthChecker{startTime: time.Now()}

	dbProbe := probe{name: "database", timeout: 3 * time.Second, slow: time.Second}
	if db != nil {
		dbProbe.ping = db.PingContext
	}

	redisProbe := probe{name: "redis", timeout: 2 * time.Second, slow: 500 * time.Millisecond}
	if redisClient != nil {
		redisProbe.ping = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	storeProbe := probe{
		name:    "settings_store",
		timeout: 3 * time.Second,
		slow:    time.Second,
		idle:    fmt.Sprintf("%s backend has no remote dependency", storeType),
	}
	if store != nil {
		storeProbe.ping = store.Ping
	}

	hc.probes = []probe{dbProbe, redisProbe, storeProbe}
	return hc
}

// HandleHealth reports every check. It always answers 200; use
// /health/ready when a failing dependency must fail the request.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	httputil.OK(w, HealthStatus{
		Status:  determineOverallStatus(checks),
		Version: healthVersion,
		Uptime:  time.Since(hc.startTime).Round(time.Second).String(),
		Checks:  checks,
	})
}

// HandleLiveness answers 200 while the process is up.
//
//	GET /health/live
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "alive"})
}

// HandleReadiness answers 503 when a critical dependency is down.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	overall := determineOverallStatus(checks)

	ready := overall != "unhealthy"
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	httputil.JSON(w, code, map[string]any{
		"ready":  ready,
		"status": overall,
		"checks": checks,
	})
}

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	type result struct {
		name  string
		check ComponentCheck
	}
	ch := make(chan result, len(hc.probes))
	for _, p := range hc.probes {
		go func(p probe) { ch <- result{p.name, p.run(ctx)} }(p)
	}

	checks := make(map[string]ComponentCheck, len(hc.probes))
	for range hc.probes {
		r := <-ch
		checks[r.name] = r.check
	}
	return checks
}

func (p probe) run(ctx context.Context) ComponentCheck {
	if p.ping == nil {
		if p.idle != "" {
			return ComponentCheck{Status: "up", Message: p.idle}
		}
		return ComponentCheck{Status: "down", Message: notConfigured}
	}

	pingCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err := p.ping(pingCtx)
	latency := time.Since(start)

	switch {
	case err != nil:
		return ComponentCheck{Status: "down", Latency: latency.String(), Message: fmt.Sprintf("ping failed: %v", err)}
	case latency > p.slow:
		return ComponentCheck{Status: "degraded", Latency: latency.String(), Message: fmt.Sprintf("slow response (%s)", latency)}
	default:
		return ComponentCheck{Status: "up", Latency: latency.String(), Message: "connected"}
	}
}

// determineOverallStatus is "unhealthy" when the database or the settings
// store is down, "degraded" when anything else is degraded or down, and
// "healthy" otherwise. Unconfigured dependencies are ignored.
func determineOverallStatus(checks map[string]ComponentCheck) string {
	for _, name := range []string{"database", "settings_store"} {
		if c, ok := checks[name]; ok && c.Status == "down" && c.Message != notConfigured {
			return "unhealthy"
		}
	}
	for _, c := range checks {
		if c.Status == "degraded" || (c.Status == "down" && c.Message != notConfigured) {
			return "degraded"
		}
	}
	return "healthy"
}
