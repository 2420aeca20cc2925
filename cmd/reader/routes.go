package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BlackPool25/corereader-go/internal/health"
	"github.com/BlackPool25/corereader-go/internal/tts"
)

const healthProbeTimeout = 5 * time.Second

// routeDeps are the shared collaborators the ambient HTTP surface reads.
type routeDeps struct {
	catalog *tts.Catalog
	prober  *health.Prober
	ws      http.Handler
}

// registerRoutes wires the ambient HTTP surface described in SPEC_FULL §6:
// liveness, the voice catalog dump, Prometheus metrics, and the WebSocket
// session entrypoint.
func registerRoutes(mux *http.ServeMux, d routeDeps) {
	mux.Handle("/ws", d.ws)
	mux.HandleFunc("/healthz", d.handleHealthz)
	mux.HandleFunc("/voices", d.handleVoices)
	mux.Handle("/metrics", promhttp.Handler())
}

func (d routeDeps) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	statuses := d.prober.ProbeAll(ctx)
	anyHealthy := false
	for _, st := range statuses {
		if st.Status == health.StatusHealthy {
			anyHealthy = true
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if !anyHealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   boolToStatus(anyHealthy),
		"backends": statuses,
	})
}

func (d routeDeps) handleVoices(w http.ResponseWriter, r *http.Request) {
	voices, err := d.catalog.Voices()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"voices": voices})
}

func boolToStatus(ok bool) string {
	if ok {
		return "ok"
	}
	return "degraded"
}
