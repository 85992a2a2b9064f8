package tailor

import (
	"context"
	"fmt"

	"github.com/hazyhaar/domtailor/docrt"
)

// Advisor thresholds. The battery is deterministic: one metrics round trip,
// fixed comparisons, no planner involvement.
const (
	manyNavLinks    = 10
	manySmallText   = 5
	manyCrampedText = 10
)

// Suggest runs the fixed heuristic battery against the document and returns
// short natural-language suggestions, at most the configured maximum.
func (s *Session) Suggest(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.rt.Query(ctx, docrt.Query{
		Kind: docrt.QueryMetrics,
		Metrics: &docrt.MetricsSpec{
			SmallFontPx:   s.advisor.SmallFontPx,
			MinTextChars:  s.advisor.MinTextChars,
			SpacingPx:     s.advisor.SpacingPx,
			LongTextChars: s.advisor.LongTextChars,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tailor: suggest: %w", err)
	}
	m := res.Metrics
	if m == nil {
		m = &docrt.Metrics{}
	}

	var out []string
	if m.NavLinks > manyNavLinks {
		out = append(out, fmt.Sprintf("Navigation has %d links; consider grouping them into fewer menus.", m.NavLinks))
	}
	if m.SmallText > manySmallText {
		out = append(out, fmt.Sprintf("%d text elements use fonts smaller than %.0fpx; consider larger text for readability.", m.SmallText, s.advisor.SmallFontPx))
	}
	if m.Headings == 0 {
		out = append(out, "The page has no h1-h3 headings; consider adding heading structure.")
	}
	if m.Cramped > manyCrampedText {
		out = append(out, fmt.Sprintf("%d long text blocks have almost no padding or margin; consider adding whitespace.", m.Cramped))
	}
	if m.ImagesNoAlt > 0 {
		out = append(out, fmt.Sprintf("%d images are missing alt text; consider describing them.", m.ImagesNoAlt))
	}

	if len(out) > s.advisor.MaxSuggestions {
		out = out[:s.advisor.MaxSuggestions]
	}
	return out, nil
}

// RestructureKind names one fixed smart-restructure batch.
type RestructureKind string

const (
	RestructureSimplify    RestructureKind = "simplify"
	RestructureClean       RestructureKind = "clean"
	RestructureFocus       RestructureKind = "focus"
	RestructureReadability RestructureKind = "readability"
	RestructureMobile      RestructureKind = "mobile"
)

// ValidRestructureKind reports whether k names a known batch.
func ValidRestructureKind(k RestructureKind) bool {
	switch k {
	case RestructureSimplify, RestructureClean, RestructureFocus, RestructureReadability, RestructureMobile:
		return true
	}
	return false
}

// restructureBatches maps each kind to its fixed mutation sequence. These
// batches never enter the transformation log: templates capture only
// explicit rules.
var restructureBatches = map[RestructureKind][]docrt.Mutation{
	RestructureSimplify: {
		{
			Kind:   docrt.MutSetStyles,
			Target: docrt.TargetSelector("aside, .sidebar, .side-bar, [class*='sidebar']"),
			Styles: map[string]string{"display": "none"},
		},
		{
			Kind:   docrt.MutSetStyles,
			Target: docrt.TargetSelector(".ad, .ads, .advertisement, [class*='banner']"),
			Styles: map[string]string{"display": "none"},
		},
	},
	RestructureClean: {
		{
			Kind:   docrt.MutRemoveNodes,
			Target: docrt.TargetSelector(".ad, .ads, .advertisement, .banner, .popup, .modal-overlay"),
		},
	},
	RestructureFocus: {
		{
			Kind:   docrt.MutSetStyles,
			Target: docrt.TargetSelector("main, article, [role='main']"),
			Styles: map[string]string{"outline": "2px solid #10b981", "outline-offset": "4px"},
		},
		{
			Kind:   docrt.MutSetStyles,
			Target: docrt.TargetSelector("footer, aside, .comments, .related"),
			Styles: map[string]string{"opacity": "0.4"},
		},
	},
	RestructureReadability: {
		{
			Kind:   docrt.MutSetStyles,
			Target: docrt.TargetSelector("p, li, blockquote"),
			Styles: map[string]string{"line-height": "1.6"},
		},
		{
			Kind:   docrt.MutSetStyles,
			Target: docrt.Target{Selector: "p, li, span, div", MaxFontPx: 14},
			Styles: map[string]string{"font-size": "16px"},
		},
	},
	RestructureMobile: {
		{
			Kind:   docrt.MutSetStyles,
			Target: docrt.TargetSelector("img, video, iframe, table"),
			Styles: map[string]string{"max-width": "100%", "height": "auto"},
		},
		{
			Kind:   docrt.MutSetStyles,
			Target: docrt.TargetSelector("body"),
			Styles: map[string]string{"overflow-x": "hidden"},
		},
	},
}

// SmartRestructure applies the fixed batch named by kind and returns the
// number of elements touched.
func (s *Session) SmartRestructure(ctx context.Context, kind RestructureKind) (int, error) {
	batch, ok := restructureBatches[kind]
	if !ok {
		return 0, fmt.Errorf("tailor: unknown restructure kind %q", kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, m := range batch {
		res, err := s.rt.Mutate(ctx, m)
		if err != nil {
			return total, fmt.Errorf("tailor: restructure %s: %w", kind, err)
		}
		total += res.Count
	}
	return total, nil
}
