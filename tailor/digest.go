package tailor

import (
	"context"
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/hazyhaar/domtailor/docrt"
)

// newDigestConverter builds the HTML→Markdown converter shared by all
// sessions.
func newDigestConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
}

// Digest renders the current document as Markdown, suitable for handing to
// a planner. Selector narrows the digest to one subtree; empty digests the
// whole document. Falls back to the document's visible text when conversion
// yields nothing.
func (s *Session) Digest(ctx context.Context, selector string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := docrt.Query{Kind: docrt.QueryHTML}
	if selector != "" {
		q.Target = docrt.TargetSelector(selector)
	}
	res, err := s.rt.Query(ctx, q)
	if err != nil {
		return "", fmt.Errorf("tailor: digest: %w", err)
	}
	return s.htmlToMarkdown(ctx, res.HTML, q.Target)
}

// htmlToMarkdown converts, falling back to the text query when the
// conversion fails or produces an empty document. Caller holds mu.
func (s *Session) htmlToMarkdown(ctx context.Context, html string, target docrt.Target) (string, error) {
	if html != "" {
		md, err := s.conv.ConvertString(html, converter.WithDomain(s.url))
		if err == nil && strings.TrimSpace(md) != "" {
			return strings.TrimSpace(md), nil
		}
		if err != nil {
			s.logger.Warn("tailor: markdown conversion failed, falling back to text", "session_id", s.id, "error", err)
		}
	}
	res, err := s.rt.Query(ctx, docrt.Query{Kind: docrt.QueryText, Target: target})
	if err != nil {
		return "", fmt.Errorf("tailor: digest fallback: %w", err)
	}
	return strings.TrimSpace(res.Text), nil
}
