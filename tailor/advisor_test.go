package tailor

import (
	"context"
	"strings"
	"testing"
)

// messyHTML trips three advisor heuristics: a 12-link nav, no h1-h3
// headings, and images without alt text.
const messyHTML = `<!DOCTYPE html>
<html>
<head><title>Portal</title></head>
<body>
<nav>
  <a href="/a">One</a><a href="/b">Two</a><a href="/c">Three</a><a href="/d">Four</a>
  <a href="/e">Five</a><a href="/f">Six</a><a href="/g">Seven</a><a href="/h">Eight</a>
  <a href="/i">Nine</a><a href="/j">Ten</a><a href="/k">Eleven</a><a href="/l">Twelve</a>
</nav>
<div><img src="one.png"><img src="two.png"></div>
<p>Short teaser.</p>
</body>
</html>`

const tinyTextHTML = `<!DOCTYPE html>
<html>
<head><title>Fine Print</title></head>
<body>
<h1>Terms</h1>
<span style="font-size: 10px">tiny legal boilerplate one</span>
<span style="font-size: 10px">tiny legal boilerplate two</span>
<span style="font-size: 10px">tiny legal boilerplate three</span>
<span style="font-size: 10px">tiny legal boilerplate four</span>
<span style="font-size: 10px">tiny legal boilerplate five</span>
<span style="font-size: 10px">tiny legal boilerplate six</span>
</body>
</html>`

func TestSuggestBattery(t *testing.T) {
	e := testEngine(t)
	s := attachPage(t, e, messyHTML, "https://example.com/portal")

	got, err := s.Suggest(context.Background())
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("suggestions = %d, want 3: %v", len(got), got)
	}
	wantSubstrings := []string{
		"Navigation has 12 links",
		"no h1-h3 headings",
		"2 images are missing alt text",
	}
	for i, want := range wantSubstrings {
		if !strings.Contains(got[i], want) {
			t.Errorf("suggestion[%d] = %q, want substring %q", i, got[i], want)
		}
	}
}

func TestSuggestQuietPage(t *testing.T) {
	e := testEngine(t)
	s := attachArticle(t, e)

	got, err := s.Suggest(context.Background())
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("suggestions = %v, want none for a well-formed page", got)
	}
}

func TestSuggestSmallText(t *testing.T) {
	e := testEngine(t)
	s := attachPage(t, e, tinyTextHTML, "https://example.com/terms")

	got, err := s.Suggest(context.Background())
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("suggestions = %d, want 1: %v", len(got), got)
	}
	if !strings.Contains(got[0], "fonts smaller than 12px") {
		t.Errorf("suggestion = %q, want the small-text warning", got[0])
	}
}

func TestSuggestHonorsMaximum(t *testing.T) {
	e := testEngine(t)
	s := attachPage(t, e, messyHTML, "https://example.com/portal")
	s.advisor.MaxSuggestions = 2

	got, err := s.Suggest(context.Background())
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("suggestions = %d, want the configured cap of 2", len(got))
	}
}

func TestSmartRestructureSimplify(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	s := attachArticle(t, e)

	count, err := s.SmartRestructure(ctx, RestructureSimplify)
	if err != nil {
		t.Fatalf("restructure: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2 (sidebar and ad)", count)
	}
	for _, sel := range []string{".sidebar", ".ad"} {
		html, err := s.HTML(ctx, sel)
		if err != nil {
			t.Fatalf("html %s: %v", sel, err)
		}
		if !strings.Contains(html, "display: none") {
			t.Errorf("%s not hidden: %s", sel, html)
		}
	}
	if len(s.Log()) != 0 {
		t.Errorf("log = %+v: batches must not enter the template log", s.Log())
	}
}

func TestSmartRestructureClean(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	s := attachArticle(t, e)

	count, err := s.SmartRestructure(ctx, RestructureClean)
	if err != nil {
		t.Fatalf("restructure: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	html, err := s.HTML(ctx, "")
	if err != nil {
		t.Fatalf("html: %v", err)
	}
	if strings.Contains(html, "compost thermometer") {
		t.Error("ad node survived the clean batch")
	}
}

func TestSmartRestructureUnknownKind(t *testing.T) {
	e := testEngine(t)
	s := attachArticle(t, e)

	if _, err := s.SmartRestructure(context.Background(), RestructureKind("tidy")); err == nil {
		t.Error("unknown kind should fail")
	}
}

func TestValidRestructureKind(t *testing.T) {
	for _, k := range []RestructureKind{RestructureSimplify, RestructureClean, RestructureFocus, RestructureReadability, RestructureMobile} {
		if !ValidRestructureKind(k) {
			t.Errorf("ValidRestructureKind(%q) = false", k)
		}
	}
	if ValidRestructureKind("tidy") {
		t.Error(`ValidRestructureKind("tidy") = true`)
	}
}
