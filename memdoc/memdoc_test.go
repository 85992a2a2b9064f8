package memdoc_test

import (
	"context"
	"strings"
	"testing"

	"github.com/hazyhaar/domtailor/docrt"
	"github.com/hazyhaar/domtailor/memdoc"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Sample Page</title></head>
<body>
  <header><h1>Welcome</h1></header>
  <nav>
    <a href="/a">Home</a>
    <a href="/b">Docs</a>
    <a href="/c">About</a>
  </nav>
  <main id="content">
    <section>
      <h2>First section</h2>
      <p class="lead">Some lead text that opens the page.</p>
      <p>Second paragraph with more words in it.</p>
    </section>
    <article>
      <h2>Story</h2>
      <p>Article body text.</p>
      <img src="/pic.png">
    </article>
  </main>
  <footer><span>fin</span></footer>
</body>
</html>`

func testDoc(t *testing.T, src string) *memdoc.Runtime {
	t.Helper()
	r, err := memdoc.Parse(src, memdoc.WithURL("https://example.test/page"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func query(t *testing.T, r *memdoc.Runtime, q docrt.Query) *docrt.Result {
	t.Helper()
	res, err := r.Query(context.Background(), q)
	if err != nil {
		t.Fatalf("query %s: %v", q.Kind, err)
	}
	return res
}

func mutate(t *testing.T, r *memdoc.Runtime, m docrt.Mutation) *docrt.Result {
	t.Helper()
	res, err := r.Mutate(context.Background(), m)
	if err != nil {
		t.Fatalf("mutate %s: %v", m.Kind, err)
	}
	return res
}

func TestInfo(t *testing.T) {
	r := testDoc(t, samplePage)
	info, err := r.Info(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if info.Title != "Sample Page" {
		t.Errorf("title = %q", info.Title)
	}
	if info.URL != "https://example.test/page" {
		t.Errorf("url = %q", info.URL)
	}
}

func TestAddressRoundTrip(t *testing.T) {
	r := testDoc(t, samplePage)

	res := query(t, r, docrt.Query{Kind: docrt.QueryDescribe, Target: docrt.TargetSelector("p.lead")})
	if res.Count != 1 {
		t.Fatalf("describe count = %d, want 1", res.Count)
	}
	addrStr := res.Elements[0].Address

	addr, err := docrt.ParseAddress(addrStr)
	if err != nil {
		t.Fatalf("returned address %q does not parse: %v", addrStr, err)
	}
	back := query(t, r, docrt.Query{Kind: docrt.QueryDescribe, Target: docrt.TargetAddress(addr)})
	if back.Count != 1 {
		t.Fatalf("resolve %q count = %d, want 1", addrStr, back.Count)
	}
	if got := back.Elements[0].Text; !strings.Contains(got, "lead text") {
		t.Errorf("resolved wrong node, text = %q", got)
	}
}

func TestAddressIDShortCircuit(t *testing.T) {
	r := testDoc(t, samplePage)
	res := query(t, r, docrt.Query{Kind: docrt.QueryDescribe, Target: docrt.TargetSelector("main")})
	if res.Count != 1 {
		t.Fatalf("describe count = %d", res.Count)
	}
	if got := res.Elements[0].Address; got != "#content" {
		t.Errorf("address = %q, want #content", got)
	}
}

func TestStaleAddressResolvesToNothing(t *testing.T) {
	r := testDoc(t, samplePage)
	addr, err := docrt.ParseAddress("html > body > div:nth-child(9) > p:nth-child(4)")
	if err != nil {
		t.Fatal(err)
	}
	res := query(t, r, docrt.Query{Kind: docrt.QueryCount, Target: docrt.TargetAddress(addr)})
	if res.Count != 0 {
		t.Errorf("stale address count = %d, want 0", res.Count)
	}
}

func TestHideKeepsNodesResolvable(t *testing.T) {
	r := testDoc(t, samplePage)
	res := mutate(t, r, docrt.Mutation{
		Kind:   docrt.MutSetStyles,
		Target: docrt.TargetSelector("main p"),
		Styles: map[string]string{"display": "none"},
	})
	if res.Count != 3 {
		t.Fatalf("styled %d nodes, want 3", res.Count)
	}
	after := query(t, r, docrt.Query{Kind: docrt.QueryCount, Target: docrt.TargetSelector("main p")})
	if after.Count != 3 {
		t.Errorf("hidden nodes no longer resolvable: count = %d", after.Count)
	}
}

func TestRemoveDetachesNodes(t *testing.T) {
	r := testDoc(t, samplePage)
	res := mutate(t, r, docrt.Mutation{Kind: docrt.MutRemoveNodes, Target: docrt.TargetSelector("main p")})
	if res.Count != 3 {
		t.Fatalf("removed %d nodes, want 3", res.Count)
	}
	after := query(t, r, docrt.Query{Kind: docrt.QueryCount, Target: docrt.TargetSelector("main p")})
	if after.Count != 0 {
		t.Errorf("count after remove = %d, want 0", after.Count)
	}
	// Removing again is a no-op, not an error.
	again := mutate(t, r, docrt.Mutation{Kind: docrt.MutRemoveNodes, Target: docrt.TargetSelector("main p")})
	if again.Count != 0 {
		t.Errorf("second remove count = %d, want 0", again.Count)
	}
}

func TestStyleMergeAndClear(t *testing.T) {
	r := testDoc(t, `<html><body><p style="color: red; font-size: 10px">x</p></body></html>`)

	mutate(t, r, docrt.Mutation{
		Kind:   docrt.MutSetStyles,
		Target: docrt.TargetSelector("p"),
		Styles: map[string]string{"color": "blue", "margin": "4px"},
	})
	res := query(t, r, docrt.Query{Kind: docrt.QueryDescribe, Target: docrt.TargetSelector("p")})
	st := res.Elements[0].Style
	if st.Color != "blue" || st.FontSize != "10px" || st.Margin != "4px" {
		t.Errorf("merged style = %+v", st)
	}

	mutate(t, r, docrt.Mutation{
		Kind:   docrt.MutSetStyles,
		Target: docrt.TargetSelector("p"),
		Styles: map[string]string{"color": ""},
	})
	res = query(t, r, docrt.Query{Kind: docrt.QueryDescribe, Target: docrt.TargetSelector("p")})
	if got := res.Elements[0].Style.Color; got != "" {
		t.Errorf("color after clear = %q, want empty", got)
	}
}

func TestReplaceContent(t *testing.T) {
	r := testDoc(t, samplePage)
	res := mutate(t, r, docrt.Mutation{
		Kind:     docrt.MutReplaceContent,
		Target:   docrt.TargetSelector("#content article"),
		Fragment: `<h2>Replaced</h2><p>new body</p>`,
	})
	if res.Count != 1 {
		t.Fatalf("replaced %d nodes, want 1", res.Count)
	}
	txt := query(t, r, docrt.Query{Kind: docrt.QueryText, Target: docrt.TargetSelector("article")})
	if txt.Text != "Replaced new body" {
		t.Errorf("article text = %q", txt.Text)
	}
}

func TestMoveNodes(t *testing.T) {
	src := `<html><body><div id="a"><p>one</p></div><div id="b"></div></body></html>`

	tests := []struct {
		pos      docrt.InsertPosition
		wantHTML string
	}{
		{docrt.PosAppend, `<div id="b"><p>one</p></div>`},
		{docrt.PosPrepend, `<div id="b"><p>one</p></div>`},
		{docrt.PosBefore, `<p>one</p><div id="b"></div>`},
		{docrt.PosAfter, `<div id="b"></div><p>one</p>`},
		{docrt.PosReplace, `<p>one</p>`},
	}
	for _, tt := range tests {
		t.Run(string(tt.pos), func(t *testing.T) {
			r := testDoc(t, src)
			res := mutate(t, r, docrt.Mutation{
				Kind:     docrt.MutMoveNodes,
				Target:   docrt.TargetSelector("#a p"),
				Dest:     "#b",
				Position: tt.pos,
			})
			if res.Count != 1 {
				t.Fatalf("moved %d, want 1", res.Count)
			}
			rendered, err := r.Render()
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(rendered, tt.wantHTML) {
				t.Errorf("document %q does not contain %q", rendered, tt.wantHTML)
			}
		})
	}

	t.Run("missing destination is a no-op", func(t *testing.T) {
		r := testDoc(t, src)
		res := mutate(t, r, docrt.Mutation{
			Kind:     docrt.MutMoveNodes,
			Target:   docrt.TargetSelector("#a p"),
			Dest:     "#nope",
			Position: docrt.PosAppend,
		})
		if res.Count != 0 {
			t.Errorf("moved %d, want 0", res.Count)
		}
	})
}

func TestSummary(t *testing.T) {
	r := testDoc(t, samplePage)
	res := query(t, r, docrt.Query{
		Kind:    docrt.QuerySummary,
		Summary: &docrt.SummarySpec{ExcerptChars: 100, MaxNavLinks: 20},
	})
	sum := res.Summary
	if sum == nil {
		t.Fatal("nil summary")
	}
	if sum.Images != 1 || sum.Forms != 0 {
		t.Errorf("counts = %+v", sum)
	}
	if len(sum.NavLinks) != 3 {
		t.Fatalf("nav links = %d, want 3", len(sum.NavLinks))
	}
	wantHeadings := []struct {
		level int
		text  string
	}{{1, "Welcome"}, {2, "First section"}, {2, "Story"}}
	if len(sum.Headings) != len(wantHeadings) {
		t.Fatalf("headings = %+v", sum.Headings)
	}
	for i, want := range wantHeadings {
		if sum.Headings[i].Level != want.level || sum.Headings[i].Text != want.text {
			t.Errorf("heading[%d] = %+v, want %+v", i, sum.Headings[i], want)
		}
	}
	if len(sum.Sections) != 3 { // main + section + article
		t.Errorf("sections = %+v", sum.Sections)
	}
	if sum.WordCount == 0 {
		t.Error("word count is zero")
	}
}

func TestSummaryNavLinkBound(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><body><nav>")
	for i := 0; i < 30; i++ {
		sb.WriteString(`<a href="/x">link</a>`)
	}
	sb.WriteString("</nav></body></html>")

	r := testDoc(t, sb.String())
	res := query(t, r, docrt.Query{
		Kind:    docrt.QuerySummary,
		Summary: &docrt.SummarySpec{ExcerptChars: 100, MaxNavLinks: 20},
	})
	if len(res.Summary.NavLinks) != 20 {
		t.Errorf("nav links = %d, want hard bound 20", len(res.Summary.NavLinks))
	}
}

func TestMetrics(t *testing.T) {
	page := `<html><body>
	  <nav><a>1</a><a>2</a></nav>
	  <p style="font-size: 10px">` + strings.Repeat("small text ", 5) + `</p>
	  <p>` + strings.Repeat("cramped text ", 10) + `</p>
	  <img src="a.png"><img src="b.png" alt="fine"><img src="c.png" alt="">
	</body></html>`
	r := testDoc(t, page)
	res := query(t, r, docrt.Query{
		Kind:    docrt.QueryMetrics,
		Metrics: &docrt.MetricsSpec{SmallFontPx: 12, MinTextChars: 20, SpacingPx: 5, LongTextChars: 100},
	})
	m := res.Metrics
	if m.NavLinks != 2 {
		t.Errorf("nav links = %d, want 2", m.NavLinks)
	}
	if m.SmallText != 1 {
		t.Errorf("small text = %d, want 1", m.SmallText)
	}
	if m.Headings != 0 {
		t.Errorf("headings = %d, want 0", m.Headings)
	}
	if m.Cramped != 1 {
		t.Errorf("cramped = %d, want 1", m.Cramped)
	}
	if m.ImagesNoAlt != 2 {
		t.Errorf("images without alt = %d, want 2", m.ImagesNoAlt)
	}
}

func TestStructuralCatalogPriorityAndBound(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><body><footer>f</footer><nav>n</nav>")
	for i := 0; i < 200; i++ {
		sb.WriteString("<div>x</div>")
	}
	sb.WriteString("</body></html>")

	r := testDoc(t, sb.String())
	res := query(t, r, docrt.Query{Kind: docrt.QueryStructural, Limit: 100})
	if len(res.Elements) != 100 {
		t.Fatalf("catalog size = %d, want 100", len(res.Elements))
	}
	if res.Elements[0].Tag != "nav" || res.Elements[1].Tag != "footer" {
		t.Errorf("landmarks not prioritized: first tags %s, %s", res.Elements[0].Tag, res.Elements[1].Tag)
	}
}

func TestListenersAndReset(t *testing.T) {
	r := testDoc(t, samplePage)

	mutate(t, r, docrt.Mutation{Kind: docrt.MutSetListeners, Mode: "select"})
	if r.Mode() != "select" {
		t.Errorf("mode = %q", r.Mode())
	}

	mutate(t, r, docrt.Mutation{Kind: docrt.MutRemoveNodes, Target: docrt.TargetSelector("nav")})
	if res := query(t, r, docrt.Query{Kind: docrt.QueryCount, Target: docrt.TargetSelector("nav")}); res.Count != 0 {
		t.Fatalf("nav still present: %d", res.Count)
	}

	mutate(t, r, docrt.Mutation{Kind: docrt.MutReset})
	if r.Mode() != "" {
		t.Errorf("mode after reset = %q", r.Mode())
	}
	if res := query(t, r, docrt.Query{Kind: docrt.QueryCount, Target: docrt.TargetSelector("nav")}); res.Count != 1 {
		t.Errorf("nav not restored after reset: %d", res.Count)
	}
}

func TestMaxFontFilter(t *testing.T) {
	page := `<html><body>
	  <p style="font-size: 10px">tiny</p>
	  <p style="font-size: 18px">big</p>
	  <p>default</p>
	</body></html>`
	r := testDoc(t, page)
	res := mutate(t, r, docrt.Mutation{
		Kind:   docrt.MutSetStyles,
		Target: docrt.Target{Selector: "p", MaxFontPx: 14},
		Styles: map[string]string{"font-size": "16px"},
	})
	if res.Count != 1 {
		t.Errorf("bumped %d nodes, want 1 (only the 10px one)", res.Count)
	}
}
