package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPSourceFetchDecodesChapterDoc(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"title":"Chapter One","next_url":"/ch2","paragraphs":["Hello there.","Second paragraph."]}`))
	}))
	defer srv.Close()

	src := NewHTTPSource(0)
	ch, err := src.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if ch.Title != "Chapter One" || len(ch.Paragraphs) != 2 || ch.NextURL != "/ch2" {
		t.Fatalf("unexpected chapter: %+v", ch)
	}
}

func TestHTTPSourceFetchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	src := NewHTTPSource(0)
	if _, err := src.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}
