package daemon

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/next-hat/nanocl-sub000/internal/eventbus"
	"github.com/next-hat/nanocl-sub000/internal/model"
)

func (s *Server) registerProcessRoutes(r *mux.Router) {
	r.HandleFunc("/processes", s.listProcesses).Methods(http.MethodGet)
}

func (s *Server) listProcesses(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	filter := model.NewFilter()
	if kind != "" {
		filter = filter.Eq("kind", kind)
	}
	procs, err := s.store.ListAllProcesses(r.Context(), filter)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, procs)
}

func (s *Server) registerEventRoutes(r *mux.Router) {
	r.HandleFunc("/events", s.listEvents).Methods(http.MethodGet)
	r.HandleFunc("/events/watch", s.watchEvents).Methods(http.MethodGet)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ReadEvents(r.Context(), model.NewFilter())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, events)
}

// watchEvents streams live events newline-delimited (spec.md §4.8's
// "application/vdn.nanocl.raw-stream" content type), flushing after every
// event so a client sees them as they happen rather than buffered.
func (s *Server) watchEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErr(w, errStreamingUnsupported())
		return
	}

	cond := eventbus.Condition{}
	if actorKind := r.URL.Query().Get("kind"); actorKind != "" {
		cond.ActorKind = model.Kind(actorKind)
	}
	sub := s.bus.Subscribe(cond)
	defer sub.Unsubscribe()

	w.Header().Set("Content-Type", "application/vdn.nanocl.raw-stream")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := enc.Encode(ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
