package domain

import "context"

// WebAnswer is the raw result of a search-and-answer call.
type WebAnswer struct {
	Answer string `json:"answer"`
	Source string `json:"source"`
}

// WebSearcher is the web-search boundary used by the fallback answering path.
type WebSearcher interface {
	SearchAndAnswer(ctx context.Context, query string) (WebAnswer, error)
}
