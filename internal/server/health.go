package server

import (
	"encoding/json"
	"net/http"

	"github.com/Rafael-Dagostim/studyflow-go/internal/version"
)

// healthResponse is the JSON body of GET /api/health.
type healthResponse struct {
	// Status is always "ok" when the process is serving.
	Status string `json:"status"`
	// Version is the build version.
	Version string `json:"version"`
}

// readyCheck is one dependency's readiness result.
type readyCheck struct {
	// Name identifies the dependency.
	Name string `json:"name"`
	// OK reports whether the probe succeeded.
	OK bool `json:"ok"`
	// Error holds the probe failure when OK is false.
	Error string `json:"error,omitempty"`
}

// readyResponse is the JSON body of GET /api/ready.
type readyResponse struct {
	// Ready is true when every probe passed.
	Ready bool `json:"ready"`
	// Checks lists the individual probe results.
	Checks []readyCheck `json:"checks"`
}

// handleHealth serves the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthResponse{Status: "ok", Version: version.Version})
}

// handleReady runs the configured dependency probes and reports 503 when
// any of them fails.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := readyResponse{Ready: true}
	for _, p := range s.cfg.Pingers {
		check := readyCheck{Name: p.Name(), OK: true}
		if err := p.Ping(r.Context()); err != nil {
			check.OK = false
			check.Error = err.Error()
			resp.Ready = false
		}
		resp.Checks = append(resp.Checks, check)
	}

	w.Header().Set("Content-Type", "application/json")
	if !resp.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(resp)
}
