package audit

import (
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/hazyhaar/scrollsync/layout"
)

const fixtureHTML = `<!DOCTYPE html>
<html>
<head><title>Fixture</title></head>
<body>
  <header id="masthead" class="site-header" role="banner">Header</header>
  <div class="header-spacer"></div>
  <main>
    <section class="hero" data-parallax>Hero</section>
    <article class="post">
      <h2 class="post-title">First</h2>
    </article>
    <article class="post">
      <h2 class="post-title">Second</h2>
    </article>
  </main>
  <footer class="site-footer">Footer</footer>
</body>
</html>`

func parseFixture(t *testing.T) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(fixtureHTML))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func TestSelectorSubset(t *testing.T) {
	doc := parseFixture(t)

	cases := []struct {
		selector string
		want     int
	}{
		{"header", 1},
		{"#masthead", 1},
		{".site-header", 1},
		{"header.site-header", 1},
		{"header[role=banner]", 1},
		{"section[data-parallax]", 1},
		{"article.post", 2},
		{"article .post-title", 2},
		{"main footer", 0},
		{".missing", 0},
	}
	for _, tc := range cases {
		got := len(querySelectorAll(doc, tc.selector))
		if got != tc.want {
			t.Errorf("selector %q: got %d matches, want %d", tc.selector, got, tc.want)
		}
	}
}

func TestCheckPasses(t *testing.T) {
	doc := parseFixture(t)
	cfg := &layout.Config{}
	cfg.Page.ID = "fixture"
	cfg.Features.Pinned = []layout.PinnedConfig{
		{ID: "header", FixedSelector: "#masthead", SpacerSelector: ".header-spacer"},
	}
	cfg.Features.Thresholds = []layout.ThresholdConfig{
		{ID: "collapse", Selector: "footer.site-footer"},
		{ID: "static", ActivatePx: 300}, // no selector, nothing to audit
	}
	cfg.Features.Scrubs = []layout.ScrubConfig{
		{ID: "parallax", Selector: "section.hero"},
	}

	rep := Check(cfg, doc)
	if !rep.Passed {
		t.Fatalf("expected pass, got:\n%s", rep.Summary())
	}
	if len(rep.Findings) != 4 {
		t.Fatalf("expected 4 findings, got %d", len(rep.Findings))
	}
}

func TestCheckFlagsMissingAndAmbiguous(t *testing.T) {
	doc := parseFixture(t)
	cfg := &layout.Config{}
	cfg.Features.Thresholds = []layout.ThresholdConfig{
		{ID: "gone", Selector: ".does-not-exist"},
		{ID: "dup", Selector: "article.post"},
	}

	rep := Check(cfg, doc)
	if rep.Passed {
		t.Fatal("expected failure")
	}
	if rep.Findings[0].OK || rep.Findings[0].Count != 0 {
		t.Errorf("missing selector not flagged: %+v", rep.Findings[0])
	}
	if rep.Findings[1].OK || rep.Findings[1].Count != 2 {
		t.Errorf("ambiguous selector not flagged: %+v", rep.Findings[1])
	}
}

func TestCheckHTMLParsesReader(t *testing.T) {
	cfg := &layout.Config{}
	cfg.Features.Scrubs = []layout.ScrubConfig{{ID: "hero", Selector: ".hero"}}

	rep, err := CheckHTML(cfg, strings.NewReader(fixtureHTML))
	if err != nil {
		t.Fatal(err)
	}
	if !rep.Passed {
		t.Fatalf("expected pass:\n%s", rep.Summary())
	}
}
