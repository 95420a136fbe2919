package daemon

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/next-hat/nanocl-sub000/internal/model"
)

func (s *Server) registerJobRoutes(r *mux.Router) {
	r.HandleFunc("/jobs", s.listJobs).Methods(http.MethodGet)
	r.HandleFunc("/jobs", s.createJob).Methods(http.MethodPost)
	r.HandleFunc("/jobs/{key}", s.inspectJob).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{key}", s.deleteJob).Methods(http.MethodDelete)
	r.HandleFunc("/jobs/{key}/run", s.runJob).Methods(http.MethodPost)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	objs, err := s.store.ReadByFilter(r.Context(), model.KindJob, model.NewFilter())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, objs)
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var spec model.JobSpec
	if !decodeBody(w, r, &spec) {
		return
	}
	job, err := s.manager.CreateJob(r.Context(), spec)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeCreated(w, job)
}

func (s *Server) inspectJob(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	obj, err := s.store.ReadObjectByKey(r.Context(), model.KindJob, key)
	if err != nil {
		writeErr(w, err)
		return
	}
	status, err := s.store.ReadStatus(r.Context(), key)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, map[string]interface{}{"object": obj, "status": status})
}

func (s *Server) deleteJob(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if err := s.manager.DeleteJob(r.Context(), key); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) runJob(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if err := s.manager.RunJob(r.Context(), key); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
