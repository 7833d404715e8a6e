package layout

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/scrollsync/pinned"
	"github.com/hazyhaar/scrollsync/trigger"
)

// AdminRouter returns the debug HTTP surface for a running coordinator.
// It is read-mostly: the only mutation is POST /recompute, the same
// caller-reported-mutation path RequestRecompute exposes in-process.
func (c *Coordinator) AdminRouter() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "page": c.cfg.Page.ID})
	})

	r.Get("/viewport", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, c.Viewport())
	})

	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, c.Stats())
	})

	r.Get("/triggers", func(w http.ResponseWriter, _ *http.Request) {
		out := []trigger.Info{}
		for in := range c.Triggers() {
			out = append(out, in)
		}
		writeJSON(w, http.StatusOK, out)
	})

	r.Get("/triggers/{id}", func(w http.ResponseWriter, req *http.Request) {
		in, ok := c.triggers.Inspect(chi.URLParam(req, "id"))
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown trigger"})
			return
		}
		writeJSON(w, http.StatusOK, in)
	})

	r.Get("/regions", func(w http.ResponseWriter, _ *http.Request) {
		out := []pinned.Info{}
		for in := range c.Regions() {
			out = append(out, in)
		}
		writeJSON(w, http.StatusOK, out)
	})

	r.Post("/recompute", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Reason string `json:"reason"`
		}
		// Body is optional.
		_ = json.NewDecoder(req.Body).Decode(&body)
		if body.Reason == "" {
			body.Reason = "admin"
		}
		c.RequestRecompute(body.Reason)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "reason": body.Reason})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
