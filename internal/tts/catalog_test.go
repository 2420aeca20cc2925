package tts

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeNpyFloat32(w *zip.Writer, name string, samples []float32) error {
	f, err := w.Create(name)
	if err != nil {
		return err
	}
	header := []byte("{'descr': '<f4', 'fortran_order': False, 'shape': (" + "1" + ",), }")
	for len(header)%16 != 15 {
		header = append(header, ' ')
	}
	header = append(header, '\n')

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.WriteByte(1)
	buf.WriteByte(0)
	lenBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(lenBytes, uint16(len(header)))
	buf.Write(lenBytes)
	buf.Write(header)
	for _, s := range samples {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, math.Float32bits(s))
		buf.Write(b)
	}
	_, err = f.Write(buf.Bytes())
	return err
}

func TestCatalogLoadsBinVoicePack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voices-v1.0.bin")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	if err := writeNpyFloat32(zw, "af_bella.npy", []float32{0.1, 0.2, 0.3}); err != nil {
		t.Fatal(err)
	}
	if err := writeNpyFloat32(zw, "af_heart.npy", []float32{0.4, 0.5}); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	cat := NewCatalog(path)
	voices, err := cat.Voices()
	if err != nil {
		t.Fatalf("Voices() error: %v", err)
	}
	if len(voices) != 2 || voices[0] != "af_bella" || voices[1] != "af_heart" {
		t.Fatalf("unexpected voices: %+v", voices)
	}

	emb, ok := cat.Embedding("af_bella")
	if !ok {
		t.Fatal("expected embedding for af_bella")
	}
	if len(emb) != 3 || emb[0] != 0.1 {
		t.Fatalf("unexpected embedding: %+v", emb)
	}
}

func TestCatalogLoadsJSONArrayVoicePack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voices.json")
	if err := os.WriteFile(path, []byte(`["zeta", "alpha", "alpha"]`), 0o644); err != nil {
		t.Fatal(err)
	}

	cat := NewCatalog(path)
	voices, err := cat.Voices()
	if err != nil {
		t.Fatalf("Voices() error: %v", err)
	}
	if len(voices) != 2 || voices[0] != "alpha" || voices[1] != "zeta" {
		t.Fatalf("expected sorted deduplicated [alpha zeta], got %+v", voices)
	}
}

func TestCatalogLoadsJSONObjectVoicePack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voices.json")
	if err := os.WriteFile(path, []byte(`{"bravo": 1, "alpha": 2}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cat := NewCatalog(path)
	voices, err := cat.Voices()
	if err != nil {
		t.Fatalf("Voices() error: %v", err)
	}
	if len(voices) != 2 || voices[0] != "alpha" || voices[1] != "bravo" {
		t.Fatalf("unexpected voices: %+v", voices)
	}
}

func TestCatalogRejectsUnrecognizedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voices.txt")
	if err := os.WriteFile(path, []byte("not a voice pack"), 0o644); err != nil {
		t.Fatal(err)
	}

	cat := NewCatalog(path)
	if _, err := cat.Voices(); err == nil {
		t.Fatal("expected VoicePackInvalid error for unrecognized extension")
	}
}

func TestCatalogMemoizesLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voices.json")
	if err := os.WriteFile(path, []byte(`["solo"]`), 0o644); err != nil {
		t.Fatal(err)
	}

	cat := NewCatalog(path)
	first, err := cat.Voices()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	second, err := cat.Voices()
	if err != nil {
		t.Fatalf("expected memoized result despite file removal, got error: %v", err)
	}
	if len(first) != len(second) || first[0] != second[0] {
		t.Fatalf("memoization mismatch: %+v vs %+v", first, second)
	}
}
