package search

import "github.com/google/uuid"

// Hit is one raw full-text match row: the matched node plus its head
// back-pointer and rank score.
type Hit struct {
	ID       uuid.UUID  `bun:"id" json:"id"`
	Label    string     `bun:"label" json:"label"`
	HeadID   *uuid.UUID `bun:"head_id" json:"head_id,omitempty"`
	HeadType *string    `bun:"head_type" json:"head_type,omitempty"`
	Score    float64    `bun:"score" json:"score"`
}

// Head is one resolved head entity in a result page.
type Head struct {
	ID    uuid.UUID `json:"id"`
	Label string    `json:"label"`
	Score float64   `json:"score"`
}

// Result is the search response: the untruncated intersection count and
// the ranked page, capped at the configured page size. Count zero means no
// matches.
type Result struct {
	Count   int    `json:"count"`
	Results []Head `json:"results"`
}

// NoMatches is the empty terminal result.
func NoMatches() *Result {
	return &Result{Count: 0, Results: []Head{}}
}
