package daemon

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/next-hat/nanocl-sub000/internal/model"
)

func (s *Server) registerNamespaceRoutes(r *mux.Router) {
	r.HandleFunc("/namespaces", s.listNamespaces).Methods(http.MethodGet)
	r.HandleFunc("/namespaces", s.createNamespace).Methods(http.MethodPost)
	r.HandleFunc("/namespaces/{name}", s.deleteNamespace).Methods(http.MethodDelete)
}

func (s *Server) listNamespaces(w http.ResponseWriter, r *http.Request) {
	namespaces, err := s.store.ListNamespaces(r.Context(), model.NewFilter())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, namespaces)
}

func (s *Server) createNamespace(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	ns, err := s.store.CreateNamespace(r.Context(), body.Name)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeCreated(w, ns)
}

func (s *Server) deleteNamespace(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.store.DeleteNamespace(r.Context(), name); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
