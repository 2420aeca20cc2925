package source

import "context"

// Chapter is one fetched unit of narratable text. HTML scraping and
// chapter-index caching are external collaborators by design; this package
// only names the boundary the streaming TTS pipeline consumes.
type Chapter struct {
	Title      string
	URL        string
	NextURL    string
	PrevURL    string
	Paragraphs []string
}

// ChapterSource fetches a Chapter by URL. Implementations own scraping,
// caching, and rate limiting; none of that is in scope here.
type ChapterSource interface {
	Fetch(ctx context.Context, url string) (*Chapter, error)
}
