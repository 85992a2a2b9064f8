package memdoc

import (
	"testing"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domtailor/docrt"
)

func parseNode(t *testing.T, src, selector string) *html.Node {
	t.Helper()
	r, err := Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	n, err := r.matchFirst(docrt.TargetSelector(selector))
	if err != nil || n == nil {
		t.Fatalf("matchFirst(%q): node=%v err=%v", selector, n, err)
	}
	return n
}

func TestParseStyleRoundTrip(t *testing.T) {
	st := parseStyle("color: red; font-size: 10px;; padding: 1px 2px")
	if st.get("color") != "red" || st.get("font-size") != "10px" || st.get("padding") != "1px 2px" {
		t.Errorf("parsed = %v", st.vals)
	}
	st.set("color", "blue")
	st.delete("font-size")
	if got := st.render(); got != "color: blue; padding: 1px 2px" {
		t.Errorf("render = %q", got)
	}
}

func TestFontPx(t *testing.T) {
	tests := []struct {
		style string
		want  float64
	}{
		{"", 16},
		{"font-size: 12px", 12},
		{"font-size: 1.5rem", 24},
		{"font-size: bogus", 16},
	}
	for _, tt := range tests {
		n := parseNode(t, `<html><body><p style="`+tt.style+`">x</p></body></html>`, "p")
		if got := fontPx(n); got != tt.want {
			t.Errorf("fontPx(%q) = %v, want %v", tt.style, got, tt.want)
		}
	}

	// em and % resolve against the nearest styled ancestor.
	n := parseNode(t, `<html><body><div style="font-size: 20px"><p style="font-size: 0.5em">x</p></div></body></html>`, "p")
	if got := fontPx(n); got != 10 {
		t.Errorf("em fontPx = %v, want 10", got)
	}
	n = parseNode(t, `<html><body><p>x</p></body></html>`, "p")
	if got := fontPx(n); got != 16 {
		t.Errorf("inherited default = %v, want 16", got)
	}
}

func TestSpacingPx(t *testing.T) {
	n := parseNode(t, `<html><body><div style="padding: 1px 8px 2px">x</div></body></html>`, "div")
	if got := spacingPx(n, "padding"); got != 8 {
		t.Errorf("padding = %v, want max component 8", got)
	}
	if got := spacingPx(n, "margin"); got != 0 {
		t.Errorf("absent margin = %v, want 0", got)
	}
}

func TestAddressOfBadID(t *testing.T) {
	// An id that cannot serve as a CSS identifier falls back to the path
	// form.
	n := parseNode(t, `<html><body><div id="2col">x</div></body></html>`, "div")
	addr := addressOf(n)
	if addr.ID != "" {
		t.Errorf("expected path form, got id %q", addr.ID)
	}
	if got := addr.Selector(); got != "html > body > div:nth-child(1)" {
		t.Errorf("selector = %q", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncate("héllo wörld", 5); got != "héllo" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("short", 100); got != "short" {
		t.Errorf("truncate = %q", got)
	}
}

func TestHiddenTextExcluded(t *testing.T) {
	r, err := Parse(`<html><body><p>seen</p><p style="display: none">unseen</p><script>var x;</script></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	body := findFirstTag(r.doc, "body")
	got := collapse(textContent(body))
	if got != "seen" {
		t.Errorf("visible text = %q, want %q", got, "seen")
	}
}
