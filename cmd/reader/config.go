package main

import (
	"encoding/json"
	"log/slog"
	"os"

	"github.com/BlackPool25/corereader-go/internal/env"
)

// tuning holds knobs loaded from reader.json. These are values that may
// eventually move to a database; for now a JSON file keeps them out of env
// vars, mirroring how the process's deployment-level settings (ports, URLs,
// secrets) stay in the environment.
type tuning struct {
	DefaultPrefetch int     `json:"default_prefetch"`
	DefaultFrameMs  int     `json:"default_frame_ms"`
	DefaultSpeed    float64 `json:"default_speed"`
}

func defaultTuning() tuning {
	return tuning{
		DefaultPrefetch: 3,
		DefaultFrameMs:  200,
		DefaultSpeed:    1.0,
	}
}

// loadTuning reads reader.json if present, otherwise returns defaults.
func loadTuning(path string) tuning {
	t := defaultTuning()
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Info("no config file, using defaults", "path", path)
		return t
	}
	if err = json.Unmarshal(data, &t); err != nil {
		slog.Warn("bad config file, using defaults", "path", path, "error", err)
		return defaultTuning()
	}
	slog.Info("loaded config", "path", path)
	return t
}

// config is the process-wide configuration resolved from env vars.
type config struct {
	port       string
	backend    string // "onnx" or "http"
	sidecarURL string
	poolSize   int

	modelPath      string
	voicesPath     string
	intraOpThreads int
	interOpThreads int

	recycleThreshold int

	tracePostgresURL string

	debugRecordSessions bool
	debugRecordDir      string
}

func loadConfig() config {
	return config{
		port:       env.Str("READER_PORT", "8000"),
		backend:    env.Str("TTS_BACKEND", "onnx"),
		sidecarURL: env.Str("TTS_SIDECAR_URL", "http://localhost:5100"),
		poolSize:   env.Int("TTS_SIDECAR_POOL_SIZE", 10),

		modelPath:      env.Str("TTS_MODEL_PATH", "/models/kokoro.onnx"),
		voicesPath:     env.Str("TTS_VOICES_PATH", "/models/voices.bin"),
		intraOpThreads: env.Int("ORT_INTRA_OP_THREADS", 0),
		interOpThreads: env.Int("ORT_INTER_OP_THREADS", 1),

		recycleThreshold: env.Int("TTS_SESSION_RECYCLE_SENTENCES", 20),

		tracePostgresURL: env.Str("TRACE_POSTGRES_URL", ""),

		debugRecordSessions: env.Bool("DEBUG_RECORD_SESSIONS", false),
		debugRecordDir:      env.Str("DEBUG_RECORD_DIR", "/tmp/reader-debug"),
	}
}
