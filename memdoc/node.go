package memdoc

import (
	"slices"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domtailor/docrt"
)

// walk visits every element node in document order until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if n.Type == html.ElementNode {
		if !fn(n) {
			return false
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func findFirstTag(root *html.Node, tag string) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if n.Data == tag {
			found = n
			return false
		}
		return true
	})
	return found
}

// skippedTag lists subtrees whose text is never visible.
func skippedTag(tag string) bool {
	switch tag {
	case "script", "style", "noscript", "template", "head", "iframe":
		return true
	}
	return false
}

// textContent collects the visible text under n, skipping non-rendered
// subtrees and nodes hidden by inline style or the hidden attribute.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			if skippedTag(n.Data) || hiddenNode(n) {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return sb.String()
}

func hiddenNode(n *html.Node) bool {
	if hasAttr(n, "hidden") {
		return true
	}
	return parseStyle(attr(n, "style")).get("display") == "none"
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// collapse trims and squeezes internal whitespace to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most max runes.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// addressOf computes the structural address of n: the id short-circuit when
// the node carries a usable id, otherwise the ordinal path from the root.
func addressOf(n *html.Node) docrt.Address {
	if id := attr(n, "id"); docrt.ValidID(id) {
		return docrt.AddressFromID(id)
	}
	var steps []docrt.Step
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		steps = append(steps, docrt.Step{Tag: cur.Data, Ordinal: childOrdinal(cur)})
	}
	// Built leaf-first; reverse into root-first order.
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return docrt.AddressFromSteps(steps...)
}

// childOrdinal is the 1-based position of n among its parent's element
// children.
func childOrdinal(n *html.Node) int {
	ord := 1
	for sib := n.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if sib.Type == html.ElementNode {
			ord++
		}
	}
	return ord
}

// inlineStyle is an ordered property list parsed from a style attribute.
type inlineStyle struct {
	keys []string
	vals map[string]string
}

func parseStyle(s string) *inlineStyle {
	st := &inlineStyle{vals: map[string]string{}}
	for _, decl := range strings.Split(s, ";") {
		k, v, found := strings.Cut(decl, ":")
		if !found {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		st.set(k, v)
	}
	return st
}

func (st *inlineStyle) get(key string) string { return st.vals[key] }

func (st *inlineStyle) set(key, val string) {
	if _, ok := st.vals[key]; !ok {
		st.keys = append(st.keys, key)
	}
	st.vals[key] = val
}

func (st *inlineStyle) delete(key string) {
	if _, ok := st.vals[key]; !ok {
		return
	}
	delete(st.vals, key)
	for i, k := range st.keys {
		if k == key {
			st.keys = append(st.keys[:i], st.keys[i+1:]...)
			break
		}
	}
}

func (st *inlineStyle) render() string {
	if len(st.keys) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, k := range st.keys {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(st.vals[k])
	}
	return sb.String()
}

// mergeStyles applies a property map onto n's style attribute in sorted key
// order. An empty value clears the property, mirroring element.style
// assignment semantics.
func mergeStyles(n *html.Node, styles map[string]string) {
	st := parseStyle(attr(n, "style"))
	keys := make([]string, 0, len(styles))
	for k := range styles {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		v := styles[k]
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" {
			continue
		}
		if v == "" {
			st.delete(key)
			continue
		}
		st.set(key, v)
	}
	if rendered := st.render(); rendered == "" {
		removeAttr(n, "style")
	} else {
		setAttr(n, "style", rendered)
	}
}

const defaultFontPx = 16

// fontPx approximates the computed font size of n from inline styles,
// resolving em/rem/% against the nearest styled ancestor.
func fontPx(n *html.Node) float64 {
	base := func(of *html.Node) float64 {
		if of.Parent != nil && of.Parent.Type == html.ElementNode {
			return fontPx(of.Parent)
		}
		return defaultFontPx
	}
	raw := parseStyle(attr(n, "style")).get("font-size")
	if raw == "" {
		if n.Parent != nil && n.Parent.Type == html.ElementNode {
			return fontPx(n.Parent)
		}
		return defaultFontPx
	}
	switch {
	case strings.HasSuffix(raw, "px"):
		if v, err := strconv.ParseFloat(strings.TrimSuffix(raw, "px"), 64); err == nil {
			return v
		}
	case strings.HasSuffix(raw, "rem"):
		if v, err := strconv.ParseFloat(strings.TrimSuffix(raw, "rem"), 64); err == nil {
			return v * defaultFontPx
		}
	case strings.HasSuffix(raw, "em"):
		if v, err := strconv.ParseFloat(strings.TrimSuffix(raw, "em"), 64); err == nil {
			return v * base(n)
		}
	case strings.HasSuffix(raw, "%"):
		if v, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64); err == nil {
			return v / 100 * base(n)
		}
	}
	return defaultFontPx
}

// spacingPx approximates padding or margin as the largest px component of
// the inline shorthand; absent properties report 0.
func spacingPx(n *html.Node, prop string) float64 {
	raw := parseStyle(attr(n, "style")).get(prop)
	if raw == "" {
		return 0
	}
	max := 0.0
	for _, part := range strings.Fields(raw) {
		part = strings.TrimSuffix(part, "px")
		if v, err := strconv.ParseFloat(part, 64); err == nil && v > max {
			max = v
		}
	}
	return max
}

var inlineTags = map[string]bool{
	"a": true, "abbr": true, "b": true, "bdi": true, "bdo": true, "br": true,
	"cite": true, "code": true, "em": true, "i": true, "kbd": true,
	"label": true, "mark": true, "q": true, "s": true, "samp": true,
	"small": true, "span": true, "strong": true, "sub": true, "sup": true,
	"time": true, "u": true, "var": true,
}

func defaultDisplay(tag string) string {
	switch {
	case inlineTags[tag]:
		return "inline"
	case tag == "img" || tag == "button" || tag == "input" || tag == "select":
		return "inline-block"
	default:
		return "block"
	}
}

var landmarkRoles = map[string]string{
	"nav":    "navigation",
	"main":   "main",
	"header": "banner",
	"footer": "contentinfo",
	"aside":  "complementary",
	"form":   "form",
}

// roleOf reports the explicit role attribute or the implicit landmark role.
func roleOf(n *html.Node) string {
	if r := attr(n, "role"); r != "" {
		return r
	}
	return landmarkRoles[n.Data]
}
