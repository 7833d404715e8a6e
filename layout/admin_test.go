package layout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/scrollsync/pinned"
	"github.com/hazyhaar/scrollsync/trigger"
)

func adminServer(t *testing.T) (*Coordinator, *httptest.Server) {
	t.Helper()
	b := newFakeBindings()
	c := New(testConfig(), nil)
	c.SetBindings(b)
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(c.AdminRouter())
	t.Cleanup(func() {
		srv.Close()
		c.Stop()
	})
	return c, srv
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func TestAdminTriggersAndRegions(t *testing.T) {
	_, srv := adminServer(t)

	var triggers []trigger.Info
	getJSON(t, srv.URL+"/triggers", &triggers)
	if len(triggers) != 2 {
		t.Fatalf("triggers: %+v", triggers)
	}

	var one trigger.Info
	getJSON(t, srv.URL+"/triggers/header", &one)
	if one.Kind != "threshold" || one.State != "expanded" {
		t.Fatalf("header info: %+v", one)
	}

	var regions []pinned.Info
	getJSON(t, srv.URL+"/regions", &regions)
	if len(regions) != 2 || regions[0].ID != "hero" {
		t.Fatalf("regions: %+v", regions)
	}
	if regions[0].SpacerHeight != 844 {
		t.Fatalf("hero spacer via admin: %v", regions[0].SpacerHeight)
	}
}

func TestAdminUnknownTrigger(t *testing.T) {
	_, srv := adminServer(t)

	resp, err := http.Get(srv.URL + "/triggers/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status: %d", resp.StatusCode)
	}
}

func TestAdminRecompute(t *testing.T) {
	c, srv := adminServer(t)
	before := c.Stats().Refresh.Passes

	resp, err := http.Post(srv.URL+"/recompute", "application/json",
		strings.NewReader(`{"reason":"content_loaded"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status: %d", resp.StatusCode)
	}

	time.Sleep(80 * time.Millisecond)
	if after := c.Stats().Refresh.Passes; after != before+1 {
		t.Fatalf("passes: before=%d after=%d", before, after)
	}
	if got := c.Stats().Refresh.LastReason; got != "content_loaded" {
		t.Fatalf("last reason: %q", got)
	}
}

func TestAdminViewportAndStats(t *testing.T) {
	c, srv := adminServer(t)
	c.OrientationChange(844, 390)
	time.Sleep(80 * time.Millisecond)

	var vp struct {
		StableHeight float64 `json:"stable_height"`
	}
	getJSON(t, srv.URL+"/viewport", &vp)
	if vp.StableHeight != 390 {
		t.Fatalf("viewport via admin: %+v", vp)
	}

	var stats Stats
	getJSON(t, srv.URL+"/stats", &stats)
	if stats.Viewport.Commits != 1 {
		t.Fatalf("stats via admin: %+v", stats.Viewport)
	}
}
