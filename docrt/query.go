package docrt

// QueryKind discriminates read requests.
type QueryKind string

const (
	// QueryCount counts nodes matching the target.
	QueryCount QueryKind = "count"

	// QueryDescribe returns element descriptors for nodes matching the
	// target, bounded by Limit.
	QueryDescribe QueryKind = "describe"

	// QueryStructural returns a bounded catalog of the document's
	// structurally interesting elements, landmark tags first.
	QueryStructural QueryKind = "list_structural"

	// QueryText returns the visible text of the first node matching the
	// target, or of the whole body when the target is zero.
	QueryText QueryKind = "text"

	// QueryHTML returns the outer HTML of the first node matching the
	// target, or of the whole document when the target is zero.
	QueryHTML QueryKind = "html"

	// QuerySummary returns the structural summary used by page analysis.
	QuerySummary QueryKind = "summary"

	// QueryMetrics returns the counters used by the heuristic advisor.
	QueryMetrics QueryKind = "metrics"
)

// Target names the nodes a query or mutation operates on: either a CSS
// selector or a structural address, never both. MaxFontPx, when positive,
// restricts matches to nodes whose computed font size is strictly below the
// threshold.
type Target struct {
	Selector  string  `json:"selector,omitempty"`
	Address   Address `json:"address,omitzero"`
	MaxFontPx float64 `json:"max_font_px,omitempty"`
}

// TargetSelector targets nodes by CSS selector.
func TargetSelector(sel string) Target { return Target{Selector: sel} }

// TargetAddress targets one node by structural address.
func TargetAddress(a Address) Target { return Target{Address: a} }

// IsZero reports whether the target names nothing.
func (t Target) IsZero() bool { return t.Selector == "" && t.Address.IsZero() }

// CSS renders the target as a CSS selector. Address targets use the
// canonical address form, which is itself a selector.
func (t Target) CSS() string {
	if t.Selector != "" {
		return t.Selector
	}
	return t.Address.Selector()
}

// Query is one read request.
type Query struct {
	Kind    QueryKind    `json:"kind"`
	Target  Target       `json:"target,omitzero"`
	Limit   int          `json:"limit,omitempty"`
	Summary *SummarySpec `json:"summary,omitempty"`
	Metrics *MetricsSpec `json:"metrics,omitempty"`
}

// SummarySpec bounds a summary query. Bounds are hard truncations applied by
// the runtime; the engine never fails on an oversized document.
type SummarySpec struct {
	ExcerptChars int `json:"excerpt_chars"`
	MaxNavLinks  int `json:"max_nav_links"`
}

// MetricsSpec carries the advisor's fixed thresholds into the runtime so the
// walk happens in one round trip.
type MetricsSpec struct {
	SmallFontPx   float64 `json:"small_font_px"`
	MinTextChars  int     `json:"min_text_chars"`
	SpacingPx     float64 `json:"spacing_px"`
	LongTextChars int     `json:"long_text_chars"`
}

// Result is the uniform reply to queries and mutations. Count is the number
// of nodes matched (queries) or affected (mutations); the other fields are
// kind-specific.
type Result struct {
	Count    int       `json:"count"`
	Elements []Element `json:"elements,omitempty"`
	Text     string    `json:"text,omitempty"`
	HTML     string    `json:"html,omitempty"`
	Summary  *Summary  `json:"summary,omitempty"`
	Metrics  *Metrics  `json:"metrics,omitempty"`
}

// Element is a read snapshot of one document node. Ephemeral: recomputed on
// every inspection call, never persisted.
type Element struct {
	Address string            `json:"address"`
	Tag     string            `json:"tag"`
	Role    string            `json:"role,omitempty"`
	Text    string            `json:"text,omitempty"`
	Classes []string          `json:"classes,omitempty"`
	Attrs   map[string]string `json:"attrs,omitempty"`
	Style   StyleSnapshot     `json:"style"`
}

// StyleSnapshot is the fixed set of computed style properties a descriptor
// carries.
type StyleSnapshot struct {
	Display  string `json:"display,omitempty"`
	Color    string `json:"color,omitempty"`
	FontSize string `json:"font_size,omitempty"`
	Padding  string `json:"padding,omitempty"`
	Margin   string `json:"margin,omitempty"`
	Width    string `json:"width,omitempty"`
	Height   string `json:"height,omitempty"`
}

// Summary is the structural digest behind page analysis. Word count is
// whitespace-tokenized visible text with empty tokens excluded; headings
// preserve document order.
type Summary struct {
	WordCount int       `json:"word_count"`
	Elements  int       `json:"elements"`
	Images    int       `json:"images"`
	Links     int       `json:"links"`
	Forms     int       `json:"forms"`
	Headings  []Heading `json:"headings,omitempty"`
	Sections  []Section `json:"sections,omitempty"`
	NavLinks  []NavLink `json:"nav_links,omitempty"`
}

// Heading is one h1–h6 element in document order.
type Heading struct {
	Level   int    `json:"level"`
	Text    string `json:"text"`
	Address string `json:"address"`
}

// Section is the leading excerpt of one main/section/article node. Empty
// excerpts are dropped by the runtime.
type Section struct {
	Tag     string `json:"tag"`
	Excerpt string `json:"excerpt"`
	Address string `json:"address"`
}

// NavLink is one anchor found inside a navigation-role container.
type NavLink struct {
	Text    string `json:"text"`
	Href    string `json:"href,omitempty"`
	Address string `json:"address"`
}

// Metrics are the advisor's raw counters, computed against MetricsSpec
// thresholds in a single walk.
type Metrics struct {
	NavLinks    int `json:"nav_links"`
	SmallText   int `json:"small_text"`
	Headings    int `json:"headings"`
	Cramped     int `json:"cramped"`
	ImagesNoAlt int `json:"images_no_alt"`
}
