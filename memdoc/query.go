package memdoc

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domtailor/docrt"
)

const (
	descriptorTextMax = 120
	defaultListLimit  = 100
)

func (r *Runtime) describe(q docrt.Query) (*docrt.Result, error) {
	nodes, err := r.match(q.Target)
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 || limit > len(nodes) {
		limit = len(nodes)
	}
	elems := make([]docrt.Element, 0, limit)
	for _, n := range nodes[:limit] {
		elems = append(elems, describeNode(n))
	}
	return &docrt.Result{Count: len(nodes), Elements: elems}, nil
}

func describeNode(n *html.Node) docrt.Element {
	attrs := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		attrs[a.Key] = a.Val
	}
	st := parseStyle(attr(n, "style"))
	el := docrt.Element{
		Address: addressOf(n).Selector(),
		Tag:     n.Data,
		Role:    roleOf(n),
		Text:    truncate(collapse(textContent(n)), descriptorTextMax),
		Attrs:   attrs,
		Style: docrt.StyleSnapshot{
			Display:  st.get("display"),
			Color:    st.get("color"),
			FontSize: st.get("font-size"),
			Padding:  st.get("padding"),
			Margin:   st.get("margin"),
			Width:    st.get("width"),
			Height:   st.get("height"),
		},
	}
	if el.Style.Display == "" {
		el.Style.Display = defaultDisplay(n.Data)
	}
	if el.Style.FontSize == "" {
		el.Style.FontSize = "16px"
	}
	if cls := attr(n, "class"); cls != "" {
		el.Classes = strings.Fields(cls)
	}
	return el
}

// structuralRank orders tags by how structurally interesting they are; lower
// ranks fill the catalog first.
var structuralRank = map[string]int{
	"header": 0, "nav": 1, "main": 2, "section": 3, "article": 4,
	"aside": 5, "footer": 6,
	"h1": 7, "h2": 8, "h3": 9, "h4": 10, "h5": 11, "h6": 12,
	"div": 13, "span": 14, "a": 15, "button": 16, "img": 17,
}

func (r *Runtime) listStructural(limit int) (*docrt.Result, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	buckets := make([][]*html.Node, len(structuralRank))
	walk(r.doc, func(n *html.Node) bool {
		if rank, ok := structuralRank[n.Data]; ok {
			buckets[rank] = append(buckets[rank], n)
		}
		return true
	})
	elems := make([]docrt.Element, 0, limit)
	for _, bucket := range buckets {
		for _, n := range bucket {
			if len(elems) == limit {
				return &docrt.Result{Count: len(elems), Elements: elems}, nil
			}
			elems = append(elems, describeNode(n))
		}
	}
	return &docrt.Result{Count: len(elems), Elements: elems}, nil
}

func (r *Runtime) text(t docrt.Target) (*docrt.Result, error) {
	n, err := r.targetOrBody(t)
	if err != nil || n == nil {
		return &docrt.Result{}, err
	}
	txt := collapse(textContent(n))
	return &docrt.Result{Count: 1, Text: txt}, nil
}

func (r *Runtime) outerHTML(t docrt.Target) (*docrt.Result, error) {
	n := r.doc
	if !t.IsZero() {
		first, err := r.matchFirst(t)
		if err != nil {
			return nil, err
		}
		if first == nil {
			return &docrt.Result{}, nil
		}
		n = first
	}
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return nil, err
	}
	return &docrt.Result{Count: 1, HTML: sb.String()}, nil
}

func (r *Runtime) targetOrBody(t docrt.Target) (*html.Node, error) {
	if t.IsZero() {
		if body := findFirstTag(r.doc, "body"); body != nil {
			return body, nil
		}
		return r.doc, nil
	}
	return r.matchFirst(t)
}

func (r *Runtime) summary(spec *docrt.SummarySpec) (*docrt.Result, error) {
	if spec == nil {
		spec = &docrt.SummarySpec{ExcerptChars: 100, MaxNavLinks: 20}
	}
	sum := &docrt.Summary{}

	body := findFirstTag(r.doc, "body")
	if body != nil {
		sum.WordCount = len(strings.Fields(textContent(body)))
	}

	walk(r.doc, func(n *html.Node) bool {
		sum.Elements++
		switch n.Data {
		case "img":
			sum.Images++
		case "a":
			sum.Links++
			if spec.MaxNavLinks > 0 && len(sum.NavLinks) < spec.MaxNavLinks && insideNav(n) {
				sum.NavLinks = append(sum.NavLinks, docrt.NavLink{
					Text:    collapse(textContent(n)),
					Href:    attr(n, "href"),
					Address: addressOf(n).Selector(),
				})
			}
		case "form":
			sum.Forms++
		case "h1", "h2", "h3", "h4", "h5", "h6":
			sum.Headings = append(sum.Headings, docrt.Heading{
				Level:   int(n.Data[1] - '0'),
				Text:    collapse(textContent(n)),
				Address: addressOf(n).Selector(),
			})
		case "main", "section", "article":
			if excerpt := truncate(collapse(textContent(n)), spec.ExcerptChars); excerpt != "" {
				sum.Sections = append(sum.Sections, docrt.Section{
					Tag:     n.Data,
					Excerpt: excerpt,
					Address: addressOf(n).Selector(),
				})
			}
		}
		return true
	})

	return &docrt.Result{Count: sum.Elements, Summary: sum}, nil
}

// insideNav reports whether n sits under a navigation-role container.
func insideNav(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if p.Data == "nav" || attr(p, "role") == "navigation" {
			return true
		}
	}
	return false
}

// metricsTextTags are the element kinds inspected for undersized or cramped
// text.
var metricsTextTags = map[string]bool{
	"p": true, "span": true, "div": true, "li": true, "a": true,
}

func (r *Runtime) metrics(spec *docrt.MetricsSpec) (*docrt.Result, error) {
	if spec == nil {
		spec = &docrt.MetricsSpec{SmallFontPx: 12, MinTextChars: 20, SpacingPx: 5, LongTextChars: 100}
	}
	m := &docrt.Metrics{}
	count := 0
	walk(r.doc, func(n *html.Node) bool {
		count++
		switch n.Data {
		case "a":
			if insideNav(n) {
				m.NavLinks++
			}
		case "h1", "h2", "h3":
			m.Headings++
		case "img":
			if strings.TrimSpace(attr(n, "alt")) == "" {
				m.ImagesNoAlt++
			}
		}
		if metricsTextTags[n.Data] {
			textLen := len(collapse(textContent(n)))
			if textLen >= spec.MinTextChars && fontPx(n) < spec.SmallFontPx {
				m.SmallText++
			}
			if textLen >= spec.LongTextChars &&
				spacingPx(n, "padding") < spec.SpacingPx &&
				spacingPx(n, "margin") < spec.SpacingPx {
				m.Cramped++
			}
		}
		return true
	})
	return &docrt.Result{Count: count, Metrics: m}, nil
}
