package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BlackPool25/corereader-go/internal/control"
	"github.com/BlackPool25/corereader-go/internal/health"
	"github.com/BlackPool25/corereader-go/internal/source"
	"github.com/BlackPool25/corereader-go/internal/trace"
	"github.com/BlackPool25/corereader-go/internal/tts"
	"github.com/BlackPool25/corereader-go/internal/ws"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	t := loadTuning("reader.json")
	cfg := loadConfig()

	catalog := tts.NewCatalog(cfg.voicesPath)
	if _, err := catalog.Voices(); err != nil {
		slog.Error("voice catalog load failed", "path", cfg.voicesPath, "error", err)
	}

	onnxReady := false
	registry := health.NewRegistry(map[string]health.BackendMeta{
		"http": {Kind: "http", HealthURL: cfg.sidecarURL + "/healthz"},
		"onnx": {Kind: "onnx"},
	})
	prober := health.NewProber(registry, func() bool { return onnxReady })

	activeModel, err := buildModel(cfg, catalog)
	if err != nil {
		slog.Error("acoustic model init failed", "backend", cfg.backend, "error", err)
		os.Exit(1)
	}
	onnxReady = cfg.backend == "onnx"
	logBackendHealth(prober)

	synth := tts.NewSynthesizer(activeModel, nil)
	defer synth.Close()

	recycler := tts.NewRecycler(synth, func(ctx context.Context) (tts.Model, error) {
		return buildModel(cfg, catalog)
	}, cfg.recycleThreshold)
	synth.SetRecycleNotifier(recycler)
	defer recycler.Close()

	var traceStore *trace.Store
	if cfg.tracePostgresURL != "" {
		var openErr error
		traceStore, openErr = trace.Open(cfg.tracePostgresURL)
		if openErr != nil {
			slog.Error("trace store open failed", "error", openErr)
		} else {
			slog.Info("tracing enabled", "postgres", cfg.tracePostgresURL)
		}
	}

	deps := control.Deps{
		Synth:   synth,
		Catalog: catalog,
		Source:  source.NewHTTPSource(15 * time.Second),
	}
	if cfg.debugRecordSessions {
		deps.DebugRecordDir = cfg.debugRecordDir
	}

	handler := ws.NewHandler(deps, traceStore)

	mux := http.NewServeMux()
	registerRoutes(mux, routeDeps{
		catalog: catalog,
		prober:  prober,
		ws:      handler,
	})

	addr := ":" + cfg.port
	srv := &http.Server{Addr: addr, Handler: mux}

	go awaitShutdown(srv, handler, synth, recycler, traceStore)

	slog.Info("reader starting", "addr", addr, "backend", cfg.backend, "default_prefetch", t.DefaultPrefetch, "default_frame_ms", t.DefaultFrameMs)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("reader stopped")
}

// buildModel constructs (or rebuilds) the active backend's Model. Used both
// at startup and by the Session Recycler to produce a fresh model. Backend
// selection goes through tts.Router so the onnx/http dispatch follows the
// same pluggable-lookup-by-name shape used elsewhere for named backends.
func buildModel(cfg config, catalog *tts.Catalog) (tts.Model, error) {
	onnx := func() (tts.Model, error) { return tts.NewOnnxModel(cfg.modelPath, cfg.intraOpThreads, cfg.interOpThreads, catalog) }
	http := func() (tts.Model, error) { return tts.NewHTTPModel(cfg.sidecarURL, cfg.poolSize), nil }

	router := tts.NewRouter(map[string]func() (tts.Model, error){
		"onnx": onnx,
		"http": http,
	}, "onnx")

	build, err := router.Route(cfg.backend)
	if err != nil {
		return nil, err
	}
	return build()
}

func logBackendHealth(prober *health.Prober) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, st := range prober.ProbeAll(ctx) {
		slog.Info("backend health", "name", st.Name, "kind", st.Kind, "status", st.Status)
	}
}

// awaitShutdown blocks until SIGINT/SIGTERM, then drains the server,
// cancels every in-flight session, and stops the process-wide synthesis
// workers.
func awaitShutdown(srv *http.Server, handler *ws.Handler, synth *tts.Synthesizer, recycler *tts.Recycler, traceStore *trace.Store) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	srv.Shutdown(ctx)
	handler.Shutdown(ctx)

	recycler.Close()
	synth.Close()
	if traceStore != nil {
		traceStore.Close()
	}
}
