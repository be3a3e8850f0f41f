// Package web provides the HTTP status surface for the scroll-sensor daemon.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/sweeney/scroll-sensor/internal/eventlog"
	"github.com/sweeney/scroll-sensor/internal/status"
)

// historyLimit caps how many transitions the history endpoints return.
const historyLimit = 200

// Server serves the status page, status JSON and transition history over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	log        *eventlog.Store // nil when the history log is disabled
}

// New creates a Server that reads state from the given tracker. log may be
// nil, in which case the history endpoints report that logging is disabled.
func New(addr string, tracker *status.Tracker, log *eventlog.Store) *Server {
	s := &Server{tracker: tracker, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/events.json", s.handleEvents)
	mux.HandleFunc("/history.html", s.handleHistory)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// EventsJSON is the envelope for the /events.json endpoint.
type EventsJSON struct {
	Events []EventJSON `json:"events"`
}

// EventJSON is one persisted transition.
type EventJSON struct {
	ID        string  `json:"id"`
	Timestamp string  `json:"timestamp"`
	Event     string  `json:"event"`
	Pin       string  `json:"pin"`
	Top       string  `json:"top"`
	Bottom    string  `json:"bottom"`
	Position  float64 `json:"position"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.log == nil {
		http.Error(w, "transition history disabled", http.StatusNotFound)
		return
	}

	entries, err := s.log.Recent(historyLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := EventsJSON{Events: make([]EventJSON, 0, len(entries))}
	for _, e := range entries {
		out.Events = append(out.Events, EventJSON{
			ID:        e.ID,
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(e.Type),
			Pin:       string(e.Pin),
			Top:       string(e.Top),
			Bottom:    string(e.Bottom),
			Position:  e.Position,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	data, _ := json.MarshalIndent(out, "", "  ")
	w.Write(data)
}
