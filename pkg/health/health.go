// Package health provides Kubernetes-style liveness and readiness probes.
//
// Checks run on demand when a probe endpoint is hit, each bounded by its own
// timeout. The readiness state additionally carries a manual ready flag so a
// service can take itself out of rotation during startup and shutdown.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc reports on one component. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

type probe struct {
	name    string
	timeout time.Duration
	check   CheckFunc
}

func (p probe) run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.check(ctx)
}

// Service aggregates liveness and readiness probes for one process.
type Service struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []probe
	readiness []probe
}

// New creates a Service. It starts not ready; call SetReady(true) once
// initialization is complete.
func New() *Service {
	return &Service{}
}

// AddLiveness registers a liveness probe. Liveness answers "is the process
// functional": goroutine leaks, GC stalls, deadlocks.
func (s *Service) AddLiveness(name string, timeout time.Duration, check CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveness = append(s.liveness, probe{name: name, timeout: timeout, check: check})
}

// AddReadiness registers a readiness probe. Readiness answers "can this
// process serve traffic": database connectivity, dependency availability.
func (s *Service) AddReadiness(name string, timeout time.Duration, check CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readiness = append(s.readiness, probe{name: name, timeout: timeout, check: check})
}

// SetReady flips the manual readiness flag. Set it to false at the start of
// graceful shutdown so load balancers drain the instance.
func (s *Service) SetReady(ready bool) {
	s.ready.Store(ready)
}

// LiveEndpoint serves the /livez probe.
func (s *Service) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	probes := make([]probe, len(s.liveness))
	copy(probes, s.liveness)
	s.mu.RUnlock()

	writeStatus(w, runProbes(r.Context(), probes))
}

// ReadyEndpoint serves the /readyz probe. It fails when the manual ready flag
// is off or any readiness probe errors.
func (s *Service) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	probes := make([]probe, len(s.readiness))
	copy(probes, s.readiness)
	s.mu.RUnlock()

	failures := runProbes(r.Context(), probes)
	if !s.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeStatus(w, failures)
}

func runProbes(ctx context.Context, probes []probe) map[string]string {
	failures := make(map[string]string)
	for _, p := range probes {
		if err := p.run(ctx); err != nil {
			failures[p.name] = err.Error()
		}
	}
	return failures
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func writeStatus(w http.ResponseWriter, failures map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	resp := statusResponse{Status: "ok"}
	code := http.StatusOK
	if len(failures) > 0 {
		resp.Status = "unhealthy"
		resp.Checks = failures
		code = http.StatusServiceUnavailable
	}

	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
