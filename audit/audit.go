// Package audit statically checks a page's markup against a layout
// configuration: every selector the coordinator will measure or write
// must resolve to exactly one element before the engine is pointed at
// the page. Catching a typo'd selector here is much cheaper than
// debugging a silently inert trigger in production.
package audit

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/scrollsync/layout"
)

// Finding reports one selector check.
type Finding struct {
	FeatureID string `json:"feature_id"`
	Role      string `json:"role"` // fixed | spacer | threshold | scrub | target
	Selector  string `json:"selector"`
	Count     int    `json:"count"`
	OK        bool   `json:"ok"`
	Detail    string `json:"detail,omitempty"`
}

// Report aggregates findings for one page.
type Report struct {
	PageID   string    `json:"page_id"`
	Findings []Finding `json:"findings"`
	Passed   bool      `json:"passed"`
}

// Check audits a config against parsed HTML. Features without selectors
// (static pixel positions, viewport fractions) have nothing to audit and
// produce no findings.
func Check(cfg *layout.Config, doc *html.Node) *Report {
	rep := &Report{PageID: cfg.Page.ID, Passed: true}

	for _, p := range cfg.Features.Pinned {
		rep.add(check(doc, p.ID, "fixed", p.FixedSelector))
		rep.add(check(doc, p.ID, "spacer", p.SpacerSelector))
	}
	for _, t := range cfg.Features.Thresholds {
		if t.Selector != "" {
			rep.add(check(doc, t.ID, "threshold", t.Selector))
		}
		if t.TargetSelector != "" {
			rep.add(check(doc, t.ID, "target", t.TargetSelector))
		}
	}
	for _, s := range cfg.Features.Scrubs {
		if s.Selector != "" {
			rep.add(check(doc, s.ID, "scrub", s.Selector))
		}
		if s.TargetSelector != "" {
			rep.add(check(doc, s.ID, "target", s.TargetSelector))
		}
	}

	return rep
}

// CheckHTML parses raw markup and audits it.
func CheckHTML(cfg *layout.Config, r io.Reader) (*Report, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("audit: parse html: %w", err)
	}
	return Check(cfg, doc), nil
}

// CheckURL fetches the page's markup over HTTP and audits it. This sees
// only server-rendered markup; elements injected by script are invisible
// to a static audit.
func CheckURL(cfg *layout.Config, url string) (*Report, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("audit: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("audit: fetch %s: status %d", url, resp.StatusCode)
	}
	return CheckHTML(cfg, resp.Body)
}

func (r *Report) add(f Finding) {
	r.Findings = append(r.Findings, f)
	if !f.OK {
		r.Passed = false
	}
}

func check(doc *html.Node, featureID, role, selector string) Finding {
	f := Finding{FeatureID: featureID, Role: role, Selector: selector}
	if selector == "" {
		f.Detail = "selector is empty"
		return f
	}
	matches := querySelectorAll(doc, selector)
	f.Count = len(matches)
	switch f.Count {
	case 0:
		f.Detail = "no element matches"
	case 1:
		f.OK = true
	default:
		f.Detail = fmt.Sprintf("%d elements match, expected exactly one", f.Count)
	}
	return f
}

// Summary renders a human-readable report, one line per finding.
func (r *Report) Summary() string {
	var b strings.Builder
	for _, f := range r.Findings {
		status := "ok"
		if !f.OK {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "%-4s %s/%s %q", status, f.FeatureID, f.Role, f.Selector)
		if f.Detail != "" {
			fmt.Fprintf(&b, " (%s)", f.Detail)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
