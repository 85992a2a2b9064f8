package tailor

import (
	"context"
	"fmt"

	"github.com/hazyhaar/domtailor/docrt"
)

// PageAnalysis is the inspector's derived snapshot of the document. It is
// recomputed on every call and never cached across mutations.
type PageAnalysis struct {
	URL            string          `json:"url"`
	Title          string          `json:"title"`
	WordCount      int             `json:"word_count"`
	ReadingTimeMin int             `json:"reading_time_min"`
	Elements       int             `json:"elements"`
	Images         int             `json:"images"`
	Links          int             `json:"links"`
	Forms          int             `json:"forms"`
	Headings       []docrt.Heading `json:"headings,omitempty"`
	Sections       []docrt.Section `json:"sections,omitempty"`
	NavLinks       []docrt.NavLink `json:"nav_links,omitempty"`
}

// wordsPerMinute is the fixed reading speed behind the estimate.
const wordsPerMinute = 200

// Analyze inspects the current document state: identity, text statistics,
// heading outline, section excerpts and navigation links.
func (s *Session) Analyze(ctx context.Context) (*PageAnalysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.rt.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("tailor: analyze: %w", err)
	}
	res, err := s.rt.Query(ctx, docrt.Query{
		Kind: docrt.QuerySummary,
		Summary: &docrt.SummarySpec{
			ExcerptChars: s.analysis.ExcerptChars,
			MaxNavLinks:  s.analysis.MaxNavLinks,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tailor: analyze: %w", err)
	}
	sum := res.Summary
	if sum == nil {
		sum = &docrt.Summary{}
	}

	return &PageAnalysis{
		URL:            info.URL,
		Title:          info.Title,
		WordCount:      sum.WordCount,
		ReadingTimeMin: readingTime(sum.WordCount),
		Elements:       sum.Elements,
		Images:         sum.Images,
		Links:          sum.Links,
		Forms:          sum.Forms,
		Headings:       sum.Headings,
		Sections:       sum.Sections,
		NavLinks:       sum.NavLinks,
	}, nil
}

// readingTime estimates minutes to read wordCount words, rounded up. Zero
// words reads in zero minutes.
func readingTime(wordCount int) int {
	if wordCount <= 0 {
		return 0
	}
	return (wordCount + wordsPerMinute - 1) / wordsPerMinute
}

// ListElements describes the nodes matching selector, bounded by the
// configured list limit.
func (s *Session) ListElements(ctx context.Context, selector string) ([]docrt.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.rt.Query(ctx, docrt.Query{
		Kind:   docrt.QueryDescribe,
		Target: docrt.TargetSelector(selector),
		Limit:  s.analysis.ListLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("tailor: list elements: %w", err)
	}
	return res.Elements, nil
}

// ListAllStructural returns the document's structural catalog: landmark
// containers first, then headings and common content tags, hard-bounded.
func (s *Session) ListAllStructural(ctx context.Context) ([]docrt.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.rt.Query(ctx, docrt.Query{
		Kind:  docrt.QueryStructural,
		Limit: s.analysis.MaxStructural,
	})
	if err != nil {
		return nil, fmt.Errorf("tailor: list structural: %w", err)
	}
	return res.Elements, nil
}

// HTML returns the serialized markup of the nodes matching selector, or of
// the whole document when selector is empty. Reflects applied
// transformations.
func (s *Session) HTML(ctx context.Context, selector string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := docrt.Query{Kind: docrt.QueryHTML}
	if selector != "" {
		q.Target = docrt.TargetSelector(selector)
	}
	res, err := s.rt.Query(ctx, q)
	if err != nil {
		return "", fmt.Errorf("tailor: html: %w", err)
	}
	return res.HTML, nil
}
