//go:build cgo

package tts

import (
	"context"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// onnxModel runs the acoustic model in-process via ONNX Runtime. It is
// rebuilt wholesale by the Session Recycler rather than mutated in place, so
// every field here is treated as immutable once constructed.
type onnxModel struct {
	session *ort.DynamicAdvancedSession
	catalog *Catalog
}

// onnxConfig carries the knobs the adapter needs to build or rebuild a
// session: the model path and the intra/inter-op thread counts.
type onnxConfig struct {
	modelPath      string
	intraOpThreads int
	interOpThreads int
}

// NewOnnxModel builds the in-process ONNX acoustic model backend. Only
// available in cgo builds; see synth_http.go for the non-cgo alternative.
func NewOnnxModel(modelPath string, intraOpThreads, interOpThreads int, catalog *Catalog) (Model, error) {
	return newOnnxModel(onnxConfig{
		modelPath:      modelPath,
		intraOpThreads: intraOpThreads,
		interOpThreads: interOpThreads,
	}, catalog)
}

func newOnnxModel(cfg onnxConfig, catalog *Catalog) (*onnxModel, error) {
	if err := ort.InitializeEnvironment(); err != nil && err.Error() != "the ONNX runtime is already initialized" {
		return nil, fmt.Errorf("initialize onnx runtime: %w", err)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer opts.Destroy()
	if cfg.intraOpThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.intraOpThreads); err != nil {
			return nil, fmt.Errorf("set intra-op threads: %w", err)
		}
	}
	if cfg.interOpThreads > 0 {
		if err := opts.SetInterOpNumThreads(cfg.interOpThreads); err != nil {
			return nil, fmt.Errorf("set inter-op threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(
		cfg.modelPath,
		[]string{"tokens", "style", "speed"},
		[]string{"audio"},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("create acoustic model session: %w", err)
	}

	return &onnxModel{session: session, catalog: catalog}, nil
}

// Synthesize implements Model.
func (m *onnxModel) Synthesize(ctx context.Context, sentence, voice string, speed float64) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	style, ok := m.catalog.Embedding(voice)
	if !ok {
		return nil, fmt.Errorf("unknown voice %q", voice)
	}

	tokens := tokenize(sentence)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("tokenization produced no tokens")
	}

	tokenTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(tokens))), tokens)
	if err != nil {
		return nil, fmt.Errorf("create token tensor: %w", err)
	}
	defer tokenTensor.Destroy()

	styleTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(style))), style)
	if err != nil {
		return nil, fmt.Errorf("create style tensor: %w", err)
	}
	defer styleTensor.Destroy()

	speedTensor, err := ort.NewTensor(ort.NewShape(1), []float32{float32(speed)})
	if err != nil {
		return nil, fmt.Errorf("create speed tensor: %w", err)
	}
	defer speedTensor.Destroy()

	maxSamples := int64(len(tokens)) * 1024
	if maxSamples < SampleRate {
		maxSamples = SampleRate
	}
	outputData := make([]float32, maxSamples)
	outputTensor, err := ort.NewTensor(ort.NewShape(1, maxSamples), outputData)
	if err != nil {
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	inputs := []ort.Value{tokenTensor, styleTensor, speedTensor}
	outputs := []ort.Value{outputTensor}
	if err := m.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("acoustic model inference: %w", err)
	}

	return append([]float32(nil), outputTensor.GetData()...), nil
}

// Close implements Model.
func (m *onnxModel) Close() error {
	return m.session.Destroy()
}

// tokenize turns raw sentence text into the model's input token stream. The
// acoustic model is treated as opaque, so this is a minimal encoding of one
// token per Unicode code point rather than a full phonemizer.
func tokenize(sentence string) []int64 {
	tokens := make([]int64, 0, len(sentence))
	for _, r := range sentence {
		tokens = append(tokens, int64(r))
	}
	return tokens
}
