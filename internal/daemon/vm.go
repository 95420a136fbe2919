package daemon

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/next-hat/nanocl-sub000/internal/engine"
	"github.com/next-hat/nanocl-sub000/internal/model"
)

func (s *Server) registerVmRoutes(r *mux.Router) {
	r.HandleFunc("/vms", s.listVms).Methods(http.MethodGet)
	r.HandleFunc("/vms", s.createVm).Methods(http.MethodPost)
	r.HandleFunc("/vms/{key}", s.inspectVm).Methods(http.MethodGet)
	r.HandleFunc("/vms/{key}", s.deleteVm).Methods(http.MethodDelete)
	r.HandleFunc("/vms/{key}/start", s.startVm).Methods(http.MethodPost)
	r.HandleFunc("/vms/{key}/stop", s.stopVm).Methods(http.MethodPost)
	r.HandleFunc("/vms/{name}/attach", s.attachVm).Methods(http.MethodGet)
}

func (s *Server) listVms(w http.ResponseWriter, r *http.Request) {
	namespace := r.URL.Query().Get("namespace")
	filter := model.NewFilter()
	if namespace != "" {
		filter = filter.Eq("namespace", namespace)
	}
	objs, err := s.store.ReadByFilter(r.Context(), model.KindVm, filter)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, objs)
}

func (s *Server) createVm(w http.ResponseWriter, r *http.Request) {
	var spec model.VmSpec
	if !decodeBody(w, r, &spec) {
		return
	}
	namespace := spec.Namespace
	if namespace == "" {
		namespace = model.GlobalNamespace
	}
	vm, err := s.manager.CreateVm(r.Context(), namespace, spec)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeCreated(w, vm)
}

func (s *Server) inspectVm(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	obj, err := s.store.ReadObjectByKey(r.Context(), model.KindVm, key)
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

func (s *Server) deleteVm(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if err := s.manager.DeleteVm(r.Context(), key); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) startVm(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if err := s.manager.StartVm(r.Context(), key); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) stopVm(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if err := s.manager.StopVm(r.Context(), key); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

var attachUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// attachVm upgrades to a websocket and pipes bytes to/from the vm's
// serial console via the engine's Attach (spec.md §4.8: "/vms/{n}/attach").
func (s *Server) attachVm(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	namespace := r.URL.Query().Get("namespace")
	if namespace == "" {
		namespace = model.GlobalNamespace
	}
	key := namespace + "-" + name

	procs, err := s.store.ReadProcessesByKindKey(r.Context(), model.KindVm, key)
	if err != nil || len(procs) == 0 {
		writeErr(w, err)
		return
	}

	conn, err := attachUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithContext(r.Context()).WithError(err).Warn("vm attach: websocket upgrade failed")
		return
	}
	defer conn.Close()

	attachConn, err := s.engineAttach(r, procs[0].Key)
	if err != nil {
		conn.WriteMessage(websocket.TextMessage, []byte(err.Error()))
		return
	}
	defer attachConn.Close()

	go func() {
		buf := make([]byte, 4096)
		for {
			n, rerr := attachConn.Read(buf)
			if n > 0 {
				if werr := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
					return
				}
			}
			if rerr != nil {
				return
			}
		}
	}()

	for {
		mt, data, rerr := conn.ReadMessage()
		if rerr != nil {
			return
		}
		if mt == websocket.BinaryMessage || mt == websocket.TextMessage {
			if _, werr := attachConn.Write(data); werr != nil {
				return
			}
		}
	}
}

func (s *Server) engineAttach(r *http.Request, processKey string) (engine.AttachConn, error) {
	return s.manager.Attach(r.Context(), processKey)
}
