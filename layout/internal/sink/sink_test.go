package sink

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hazyhaar/scrollsync/layout/event"
)

func TestStdoutWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)
	ctx := context.Background()

	if err := s.Send(ctx, event.Event{Type: event.TypeTransition, TriggerID: "header", State: "collapsed"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Send(ctx, event.Event{Type: event.TypePass, Reason: "resize"}); err != nil {
		t.Fatal(err)
	}

	sc := bufio.NewScanner(&buf)
	var lines int
	for sc.Scan() {
		lines++
		var ev event.Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("line %d not JSON: %v", lines, err)
		}
	}
	if lines != 2 {
		t.Fatalf("expected 2 lines, got %d", lines)
	}
}

func TestWebhookPostsAndRetries(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var ev event.Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			t.Errorf("bad body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WithWebhookRetries(2))
	if err := w.Send(context.Background(), event.Event{Type: event.TypePass}); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("expected retry after 502, got %d calls", calls)
	}
}

func TestRouterFanOutContinuesPastFailure(t *testing.T) {
	failing := NewCallback(func(context.Context, event.Event) error {
		return errors.New("down")
	})
	var delivered int
	healthy := NewCallback(func(context.Context, event.Event) error {
		delivered++
		return nil
	})

	r := NewRouter(nil, failing, healthy)
	defer r.Close()
	err := r.Send(context.Background(), event.Event{Type: event.TypePass})

	if err == nil {
		t.Fatal("expected first error returned")
	}
	if delivered != 1 {
		t.Fatalf("healthy sink skipped: %d", delivered)
	}
}

func TestRouterDispatchNeverBlocks(t *testing.T) {
	release := make(chan struct{})
	var delivered int
	slow := NewCallback(func(context.Context, event.Event) error {
		<-release
		delivered++
		return nil
	})

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewRouter(quiet, slow)
	// The drain goroutine is stuck on the first event; everything past
	// queue capacity must be dropped, never waited on.
	for i := 0; i < 300; i++ {
		r.Dispatch(event.Event{Type: event.TypePass})
	}
	if r.Dropped() == 0 {
		t.Fatal("expected drops past queue capacity")
	}

	close(release)
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if got := uint64(delivered) + r.Dropped(); got != 300 {
		t.Fatalf("delivered+dropped = %d, want 300", got)
	}
}

func TestRouterCloseFlushesQueue(t *testing.T) {
	var delivered int
	counting := NewCallback(func(context.Context, event.Event) error {
		delivered++
		return nil
	})

	r := NewRouter(nil, counting)
	for i := 0; i < 10; i++ {
		r.Dispatch(event.Event{Type: event.TypeScrub})
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if delivered != 10 {
		t.Fatalf("events lost on close: delivered %d of 10", delivered)
	}
}
