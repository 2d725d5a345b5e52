package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// Pinger is a dependency the health endpoints probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"

	// memoryDegradedRatio marks the process degraded when the heap in use
	// passes this share of memory obtained from the OS.
	memoryDegradedRatio = 0.9

	probeTimeout = 3 * time.Second
)

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	database Pinger
	redis    Pinger
	started  time.Time
	now      func() time.Time
}

// NewHealthHandler creates a health handler. A nil redis pinger is reported
// as not configured and does not fail readiness.
func NewHealthHandler(database, redis Pinger) *HealthHandler {
	return &HealthHandler{database: database, redis: redis, started: time.Now(), now: time.Now}
}

// Live handles the liveness probe.
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// Ready reports whether every configured dependency answers.
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	checks := h.probe(c.Request.Context())

	status, code := "ready", http.StatusOK
	for _, chk := range checks {
		if chk.Status == statusUnhealthy {
			status, code = "not_ready", http.StatusServiceUnavailable
			break
		}
	}
	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

// ServiceCheck is the outcome of probing one dependency.
type ServiceCheck struct {
	Status         string `json:"status"`
	ResponseTimeMS int64  `json:"responseTimeMs"`
	Error          string `json:"error,omitempty"`
}

// MemoryCheck summarizes Go runtime memory.
type MemoryCheck struct {
	Status     string  `json:"status"`
	HeapAlloc  uint64  `json:"heapAlloc"`
	HeapInUse  uint64  `json:"heapInUse"`
	Sys        uint64  `json:"sys"`
	UsageRatio float64 `json:"usageRatio"`
	NumGC      uint32  `json:"numGc"`
	Goroutines int     `json:"goroutines"`
}

// DetailedHealth is the body of GET /health.
type DetailedHealth struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Uptime    string         `json:"uptime"`
	UptimeSec int64          `json:"uptimeSeconds"`
	Services  HealthServices `json:"services"`
}

// HealthServices groups the per-dependency checks.
type HealthServices struct {
	Database ServiceCheck `json:"database"`
	Redis    ServiceCheck `json:"redis"`
	Memory   MemoryCheck  `json:"memory"`
}

// Detailed reports every dependency plus runtime memory.
// GET /health
func (h *HealthHandler) Detailed(c *gin.Context) {
	checks := h.probe(c.Request.Context())

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	mem := memoryCheck(&ms)

	body := DetailedHealth{
		Status:    overallStatus(checks["database"], checks["redis"], mem),
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Uptime:    h.now().Sub(h.started).Round(time.Second).String(),
		UptimeSec: int64(h.now().Sub(h.started).Seconds()),
		Services: HealthServices{
			Database: checks["database"],
			Redis:    checks["redis"],
			Memory:   mem,
		},
	}

	code := http.StatusOK
	if body.Status == statusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, body)
}

// probe pings the dependencies concurrently.
func (h *HealthHandler) probe(ctx context.Context) map[string]ServiceCheck {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var db, rd ServiceCheck
	var g errgroup.Group
	g.Go(func() error { db = ping(ctx, h.database); return nil })
	g.Go(func() error { rd = ping(ctx, h.redis); return nil })
	_ = g.Wait()

	return map[string]ServiceCheck{"database": db, "redis": rd}
}

func ping(ctx context.Context, p Pinger) ServiceCheck {
	if p == nil {
		return ServiceCheck{Status: "not_configured"}
	}
	start := time.Now()
	err := p.Ping(ctx)
	chk := ServiceCheck{Status: statusHealthy, ResponseTimeMS: time.Since(start).Milliseconds()}
	if err != nil {
		chk.Status = statusUnhealthy
		chk.Error = err.Error()
	}
	return chk
}

func memoryCheck(ms *runtime.MemStats) MemoryCheck {
	mem := MemoryCheck{
		Status:     statusHealthy,
		HeapAlloc:  ms.HeapAlloc,
		HeapInUse:  ms.HeapInuse,
		Sys:        ms.Sys,
		NumGC:      ms.NumGC,
		Goroutines: runtime.NumGoroutine(),
	}
	if ms.Sys > 0 {
		mem.UsageRatio = float64(ms.HeapInuse) / float64(ms.Sys)
	}
	if mem.UsageRatio > memoryDegradedRatio {
		mem.Status = statusDegraded
	}
	return mem
}

// overallStatus is unhealthy when the database is down, degraded when
// anything else is off.
func overallStatus(db, redis ServiceCheck, mem MemoryCheck) string {
	switch {
	case db.Status == statusUnhealthy:
		return statusUnhealthy
	case redis.Status == statusUnhealthy, mem.Status == statusDegraded:
		return statusDegraded
	}
	return statusHealthy
}
