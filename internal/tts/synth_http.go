package tts

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// httpModel calls a remote synthesis sidecar over HTTP. The sidecar is
// expected to respond with raw little-endian PCM16 mono samples at
// SampleRate; httpModel converts them to float32 immediately so all
// downstream processing (fades, silence, final quantization) happens in a
// single float32 pipeline.
type httpModel struct {
	baseURL string
	client  *http.Client
}

// newHTTPModel creates a remote synthesis backend pointed at baseURL.
func newHTTPModel(baseURL string, poolSize int) *httpModel {
	return &httpModel{
		baseURL: baseURL,
		client:  NewPooledHTTPClient(poolSize, 30*time.Second),
	}
}

// NewHTTPModel builds the remote-sidecar acoustic model backend.
func NewHTTPModel(baseURL string, poolSize int) Model {
	return newHTTPModel(baseURL, poolSize)
}

type synthesizeRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice"`
	Speed float64 `json:"speed"`
}

// Synthesize implements Model.
func (m *httpModel) Synthesize(ctx context.Context, sentence, voice string, speed float64) ([]float32, error) {
	body, err := json.Marshal(synthesizeRequest{Text: sentence, Voice: voice, Speed: speed})
	if err != nil {
		return nil, fmt.Errorf("marshal synthesize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create synthesize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesize request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("synthesize sidecar status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read synthesize response: %w", err)
	}

	return pcm16ToFloat32(raw), nil
}

// Close implements Model by closing the pooled HTTP client's idle
// connections.
func (m *httpModel) Close() error {
	m.client.CloseIdleConnections()
	return nil
}

// pcm16ToFloat32 converts little-endian signed PCM16 bytes into normalized
// float32 samples in [-1, 1]. Any trailing odd byte is discarded.
func pcm16ToFloat32(raw []byte) []float32 {
	n := len(raw) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
		out[i] = float32(v) / 32768.0
	}
	return out
}
