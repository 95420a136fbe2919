package daemon

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/next-hat/nanocl-sub000/internal/model"
)

func (s *Server) registerCargoRoutes(r *mux.Router) {
	r.HandleFunc("/cargoes", s.listCargoes).Methods(http.MethodGet)
	r.HandleFunc("/cargoes", s.createCargo).Methods(http.MethodPost)
	r.HandleFunc("/cargoes/{key}", s.inspectCargo).Methods(http.MethodGet)
	r.HandleFunc("/cargoes/{key}", s.putCargo).Methods(http.MethodPut)
	r.HandleFunc("/cargoes/{key}", s.deleteCargo).Methods(http.MethodDelete)
	r.HandleFunc("/cargoes/{key}/start", s.startCargo).Methods(http.MethodPost)
	r.HandleFunc("/cargoes/{key}/stop", s.stopCargo).Methods(http.MethodPost)
	r.HandleFunc("/cargoes/{key}/scale", s.scaleCargo).Methods(http.MethodPost)
}

func (s *Server) listCargoes(w http.ResponseWriter, r *http.Request) {
	namespace := r.URL.Query().Get("namespace")
	filter := model.NewFilter()
	if namespace != "" {
		filter = filter.Eq("namespace", namespace)
	}
	objs, err := s.store.ReadByFilter(r.Context(), model.KindCargo, filter)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, objs)
}

func (s *Server) createCargo(w http.ResponseWriter, r *http.Request) {
	var spec model.CargoSpec
	if !decodeBody(w, r, &spec) {
		return
	}
	namespace := spec.Namespace
	if namespace == "" {
		namespace = model.GlobalNamespace
	}
	cargo, err := s.manager.CreateCargo(r.Context(), namespace, spec)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeCreated(w, cargo)
}

func (s *Server) inspectCargo(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	obj, err := s.store.ReadObjectByKey(r.Context(), model.KindCargo, key)
	if err != nil {
		writeErr(w, err)
		return
	}
	status, err := s.store.ReadStatus(r.Context(), key)
	if err != nil {
		writeErr(w, err)
		return
	}
	procs, err := s.store.ReadProcessesByKindKey(r.Context(), model.KindCargo, key)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, map[string]interface{}{"object": obj, "status": status, "processes": procs})
}

func (s *Server) putCargo(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	var spec model.CargoSpec
	if !decodeBody(w, r, &spec) {
		return
	}
	if err := s.manager.PutCargo(r.Context(), key, spec); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) deleteCargo(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if err := s.manager.DeleteCargo(r.Context(), key); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) startCargo(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if err := s.manager.StartCargo(r.Context(), key); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) stopCargo(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if err := s.manager.StopCargo(r.Context(), key, nil); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) scaleCargo(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	deltaStr := r.URL.Query().Get("delta")
	delta, err := strconv.Atoi(deltaStr)
	if err != nil {
		writeErr(w, errInvalidQueryInt("delta", deltaStr))
		return
	}
	if err := s.manager.ScaleCargo(r.Context(), key, delta); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
