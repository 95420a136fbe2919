package daemon

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	coreerrors "github.com/next-hat/nanocl-sub000/infrastructure/errors"
	"github.com/next-hat/nanocl-sub000/internal/model"
	"github.com/next-hat/nanocl-sub000/internal/store"
)

// Resources and secrets carry no process status, so their CRUD is plain
// store.Object bookkeeping rather than going through the instance manager.

func (s *Server) registerResourceRoutes(r *mux.Router) {
	r.HandleFunc("/resources", s.listResources).Methods(http.MethodGet)
	r.HandleFunc("/resources", s.createResource).Methods(http.MethodPost)
	r.HandleFunc("/resources/{name}", s.deleteResource).Methods(http.MethodDelete)
}

func (s *Server) registerSecretRoutes(r *mux.Router) {
	r.HandleFunc("/secrets", s.listSecrets).Methods(http.MethodGet)
	r.HandleFunc("/secrets", s.createSecret).Methods(http.MethodPost)
	r.HandleFunc("/secrets/{name}", s.deleteSecret).Methods(http.MethodDelete)
}

func (s *Server) listResources(w http.ResponseWriter, r *http.Request) {
	objs, err := s.store.ReadByFilter(r.Context(), model.KindResource, model.NewFilter())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, objs)
}

func (s *Server) createResource(w http.ResponseWriter, r *http.Request) {
	var spec model.ResourceSpec
	if !decodeBody(w, r, &spec) {
		return
	}
	obj, err := s.createOpaqueObject(r, model.KindResource, spec.Name, spec)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeCreated(w, obj)
}

func (s *Server) deleteResource(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.store.DeleteObject(r.Context(), name); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listSecrets(w http.ResponseWriter, r *http.Request) {
	objs, err := s.store.ReadByFilter(r.Context(), model.KindSecret, model.NewFilter())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, objs)
}

func (s *Server) createSecret(w http.ResponseWriter, r *http.Request) {
	var spec model.SecretSpec
	if !decodeBody(w, r, &spec) {
		return
	}
	obj, err := s.createOpaqueObject(r, model.KindSecret, spec.Name, spec)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeCreated(w, obj)
}

func (s *Server) deleteSecret(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.store.DeleteObject(r.Context(), name); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createOpaqueObject(r *http.Request, kind model.Kind, name string, spec interface{}) (*store.Object, error) {
	if name == "" {
		return nil, coreerrors.ErrInvalidInput("name", "required")
	}
	data, err := json.Marshal(spec)
	if err != nil {
		return nil, coreerrors.ErrInvalidInput("spec", err.Error())
	}
	specRow, err := s.store.CreateSpec(r.Context(), kind, name, data, "1")
	if err != nil {
		return nil, err
	}
	return s.store.CreateObject(r.Context(), store.Object{Key: name, Name: name, Kind: kind, SpecKey: specRow.Key})
}
