package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/next-hat/nanocl-sub000/infrastructure/logging"
	"github.com/next-hat/nanocl-sub000/internal/engine/fakeengine"
	"github.com/next-hat/nanocl-sub000/internal/eventbus"
	"github.com/next-hat/nanocl-sub000/internal/instance"
	"github.com/next-hat/nanocl-sub000/internal/model"
	"github.com/next-hat/nanocl-sub000/internal/objstatus"
	"github.com/next-hat/nanocl-sub000/internal/statefile"
	"github.com/next-hat/nanocl-sub000/internal/store/memory"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st := memory.New()
	eng := fakeengine.New()
	bus := eventbus.New()
	status := objstatus.New(st, bus)
	log := logging.NewFromEnv("test")
	node := model.Node{Key: "node-1", AdvertiseAddr: "10.0.0.1"}
	mgr := instance.New(st, eng, status, nil, node, log)
	apply := statefile.New(st, mgr, bus, log)

	st.CreateNamespace(context.Background(), model.GlobalNamespace)

	return NewServer(Deps{Store: st, Manager: mgr, Bus: bus, Apply: apply, Log: log})
}

func TestDaemon_HealthAndCreateCargo(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("/health status = %d", rec.Code)
	}

	body, _ := json.Marshal(model.CargoSpec{Name: "web", Container: model.ContainerSpec{Image: "nginx:latest"}})
	req = httptest.NewRequest(http.MethodPost, "/v"+apiVersion+"/cargoes", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create cargo status = %d, body = %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v"+apiVersion+"/cargoes", nil)
	rec = httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list cargoes status = %d", rec.Code)
	}

	var objs []interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &objs); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(objs) != 1 {
		t.Fatalf("expected 1 cargo, got %d", len(objs))
	}
}

func TestDaemon_CreateNamespace(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"name": "staging"})
	req := httptest.NewRequest(http.MethodPost, "/v"+apiVersion+"/namespaces", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create namespace status = %d, body = %s", rec.Code, rec.Body.String())
	}
}
