//go:build !cgo

package tts

// NewOnnxModel is unavailable in non-cgo builds (no ONNX Runtime bindings).
// Callers configured for the onnx backend under CGO_ENABLED=0 get
// ErrTTSNotReady instead of a link failure; switch TTS_BACKEND to "http" for
// a cgo-free build.
func NewOnnxModel(modelPath string, intraOpThreads, interOpThreads int, catalog *Catalog) (Model, error) {
	return nil, ErrTTSNotReady
}
