package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Status is a backend's readiness as last observed by the prober.
type Status string

const (
	StatusUnknown   Status = "unknown"
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// BackendStatus is one backend's probed readiness.
type BackendStatus struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Status Status `json:"status"`
}

// Prober checks synthesis backend readiness: a lightweight GET against a
// remote sidecar's health URL, or a caller-supplied readiness check for the
// in-process ONNX backend (healthy once its session is loaded).
type Prober struct {
	httpClient *http.Client
	registry   *Registry
	localReady func() bool
}

// NewProber creates a prober over registry. localReady reports whether the
// in-process ONNX backend has a loaded session; pass nil if that backend is
// not configured.
func NewProber(registry *Registry, localReady func() bool) *Prober {
	return &Prober{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		registry:   registry,
		localReady: localReady,
	}
}

// Probe checks a single backend's readiness.
func (p *Prober) Probe(ctx context.Context, name string) (*BackendStatus, error) {
	meta, ok := p.registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("backend %q not in registry", name)
	}
	st := &BackendStatus{Name: name, Kind: meta.Kind, Status: StatusUnknown}

	switch meta.Kind {
	case "onnx":
		if p.localReady != nil && p.localReady() {
			st.Status = StatusHealthy
		} else {
			st.Status = StatusUnhealthy
		}
	case "http":
		if meta.HealthURL == "" {
			st.Status = StatusUnknown
			return st, nil
		}
		if p.probeHTTP(ctx, meta.HealthURL) {
			st.Status = StatusHealthy
		} else {
			st.Status = StatusUnhealthy
		}
	}
	return st, nil
}

// ProbeAll checks every registered backend.
func (p *Prober) ProbeAll(ctx context.Context) []BackendStatus {
	names := p.registry.Names()
	out := make([]BackendStatus, 0, len(names))
	for _, name := range names {
		st, err := p.Probe(ctx, name)
		if err != nil {
			continue
		}
		out = append(out, *st)
	}
	return out
}

func (p *Prober) probeHTTP(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// AnyHealthy reports whether at least one registered backend is healthy.
// The Session Controller does not call it: a play raises TTSNotReady only
// when the voice catalog fails to load or is empty.
func (p *Prober) AnyHealthy(ctx context.Context) bool {
	for _, st := range p.ProbeAll(ctx) {
		if st.Status == StatusHealthy {
			return true
		}
	}
	return false
}
