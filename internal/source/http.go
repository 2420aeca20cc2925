package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// chapterDoc is the JSON shape HTTPSource expects a chapter index service to
// serve: pre-extracted paragraphs, not raw HTML. HTML scraping itself is out
// of scope (see package doc on ChapterSource); this is the minimal concrete
// collaborator that satisfies the interface for a real deployment.
type chapterDoc struct {
	Title      string   `json:"title"`
	NextURL    string   `json:"next_url"`
	PrevURL    string   `json:"prev_url"`
	Paragraphs []string `json:"paragraphs"`
}

// HTTPSource fetches a Chapter by GETting url and decoding a chapterDoc
// JSON body. It does not parse HTML; whatever serves these URLs is expected
// to have already extracted chapter text into paragraphs.
type HTTPSource struct {
	client *http.Client
}

// NewHTTPSource creates an HTTPSource with a bounded request timeout.
func NewHTTPSource(timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPSource{client: &http.Client{Timeout: timeout}}
}

// Fetch implements ChapterSource.
func (s *HTTPSource) Fetch(ctx context.Context, url string) (*Chapter, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create chapter request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch chapter: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("chapter source status %d", resp.StatusCode)
	}

	var doc chapterDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode chapter: %w", err)
	}

	return &Chapter{
		Title:      doc.Title,
		URL:        url,
		NextURL:    doc.NextURL,
		PrevURL:    doc.PrevURL,
		Paragraphs: doc.Paragraphs,
	}, nil
}
