package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProbeHTTPBackendHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := NewRegistry(map[string]BackendMeta{
		"sidecar": {Kind: "http", HealthURL: srv.URL},
	})
	p := NewProber(reg, nil)

	st, err := p.Probe(context.Background(), "sidecar")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if st.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %v", st.Status)
	}
}

func TestProbeHTTPBackendUnreachable(t *testing.T) {
	reg := NewRegistry(map[string]BackendMeta{
		"sidecar": {Kind: "http", HealthURL: "http://127.0.0.1:1"},
	})
	p := NewProber(reg, nil)

	st, err := p.Probe(context.Background(), "sidecar")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if st.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %v", st.Status)
	}
}

func TestProbeONNXBackendUsesLocalReady(t *testing.T) {
	reg := NewRegistry(map[string]BackendMeta{
		"local": {Kind: "onnx"},
	})
	p := NewProber(reg, func() bool { return true })

	st, err := p.Probe(context.Background(), "local")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if st.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %v", st.Status)
	}
}

func TestAnyHealthyFalseWhenAllUnhealthy(t *testing.T) {
	reg := NewRegistry(map[string]BackendMeta{
		"local": {Kind: "onnx"},
	})
	p := NewProber(reg, func() bool { return false })

	if p.AnyHealthy(context.Background()) {
		t.Fatal("expected no healthy backends")
	}
}
