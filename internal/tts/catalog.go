package tts

import (
	"archive/zip"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Catalog enumerates voice IDs from a voice-pack archive and, for the local
// ONNX backend, holds the decoded per-voice style embeddings keyed by voice
// ID. Built once and memoized for the process lifetime, mirroring the
// original engine's list_voices() cache.
type Catalog struct {
	path string

	once       sync.Once
	loadErr    error
	voices     []string
	embeddings map[string][]float32
}

// NewCatalog returns a catalog backed by the voice-pack file at path. Loading
// is deferred until the first call to Voices or Embedding.
func NewCatalog(path string) *Catalog {
	return &Catalog{path: path}
}

// NewCatalogFromVoices builds an already-loaded catalog directly from
// in-memory voices/embeddings, bypassing file parsing. Used by tests and by
// backends that resolve their voice list some other way.
func NewCatalogFromVoices(voices []string, embeddings map[string][]float32) *Catalog {
	c := &Catalog{voices: sortedUnique(voices), embeddings: embeddings}
	c.once.Do(func() {})
	return c
}

func (c *Catalog) load() {
	c.once.Do(func() {
		switch strings.ToLower(filepath.Ext(c.path)) {
		case ".bin":
			c.voices, c.embeddings, c.loadErr = loadBinVoicePack(c.path)
		case ".npz":
			c.voices, c.embeddings, c.loadErr = loadNpzVoicePack(c.path)
		case ".json":
			c.voices, c.loadErr = loadJSONVoicePack(c.path)
			c.embeddings = map[string][]float32{}
		default:
			c.loadErr = fmt.Errorf("%w: unrecognized voice-pack extension %q", ErrVoicePackInvalid, c.path)
		}
		if c.loadErr == nil {
			c.voices = sortedUnique(c.voices)
		}
	})
}

// Voices returns the sorted, deduplicated list of voice IDs.
func (c *Catalog) Voices() ([]string, error) {
	c.load()
	return c.voices, c.loadErr
}

// Embedding returns the style embedding for voice, if the catalog's backing
// file carries one (only .bin and .npz do). ok is false for .json catalogs
// or an unknown voice.
func (c *Catalog) Embedding(voice string) ([]float32, bool) {
	c.load()
	emb, ok := c.embeddings[voice]
	return emb, ok
}

// ErrVoicePackInvalid indicates the voice-pack file exists but is not a
// recognized container.
var ErrVoicePackInvalid = fmt.Errorf("voice pack invalid")

func sortedUnique(in []string) []string {
	set := make(map[string]struct{}, len(in))
	for _, v := range in {
		set[v] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// loadBinVoicePack parses the v1.0 voices bundle: a zip archive containing
// one <voice_id>.npy entry per voice, each a flat float32 style vector.
func loadBinVoicePack(path string) ([]string, map[string][]float32, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: expected zip: %s", ErrVoicePackInvalid, err)
	}
	defer r.Close()

	voices := make([]string, 0, len(r.File))
	embeddings := make(map[string][]float32, len(r.File))
	for _, f := range r.File {
		if !strings.HasSuffix(f.Name, ".npy") {
			continue
		}
		voiceID := strings.TrimSuffix(filepath.Base(f.Name), ".npy")
		if voiceID == "" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: open entry %s: %s", ErrVoicePackInvalid, f.Name, err)
		}
		data, err := readNpyFloat32(rc)
		rc.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: decode entry %s: %s", ErrVoicePackInvalid, f.Name, err)
		}
		voices = append(voices, voiceID)
		embeddings[voiceID] = data
	}
	return voices, embeddings, nil
}

// loadNpzVoicePack parses a voices.npz: a zip archive of named <voice_id>.npy
// arrays, functionally identical in layout to the .bin bundle.
func loadNpzVoicePack(path string) ([]string, map[string][]float32, error) {
	return loadBinVoicePack(path)
}

// loadJSONVoicePack parses voices.json: either an object whose keys are
// voice IDs, or an array of voice ID strings. No embeddings are carried by
// this format.
func loadJSONVoicePack(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %s", ErrVoicePackInvalid, path, err)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err == nil {
		voices := make([]string, 0, len(obj))
		for k := range obj {
			voices = append(voices, k)
		}
		return voices, nil
	}

	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		return arr, nil
	}

	return nil, fmt.Errorf("%w: not an object or array: %s", ErrVoicePackInvalid, path)
}

// readNpyFloat32 decodes the minimal subset of the NPY format emitted by the
// voice-pack tooling: a version-1 header followed by a flat little-endian
// float32 array (no multi-dimensional shape handling required here, since
// style vectors are always 1-D).
func readNpyFloat32(r io.Reader) ([]float32, error) {
	magic := make([]byte, 6)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, err
	}
	if string(magic) != "\x93NUMPY" {
		return nil, fmt.Errorf("bad npy magic")
	}

	versionAndLen := make([]byte, 4)
	if _, err := io.ReadFull(r, versionAndLen); err != nil {
		return nil, err
	}
	headerLen := int(binary.LittleEndian.Uint16(versionAndLen[2:4]))

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	rest, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	n := len(rest) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(rest[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}
