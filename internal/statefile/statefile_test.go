package statefile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/next-hat/nanocl-sub000/infrastructure/logging"
	"github.com/next-hat/nanocl-sub000/internal/engine/fakeengine"
	"github.com/next-hat/nanocl-sub000/internal/eventbus"
	"github.com/next-hat/nanocl-sub000/internal/instance"
	"github.com/next-hat/nanocl-sub000/internal/model"
	"github.com/next-hat/nanocl-sub000/internal/objstatus"
	"github.com/next-hat/nanocl-sub000/internal/store/memory"
)

func TestLocate_DefaultSearchOrder(t *testing.T) {
	dir := t.TempDir()
	want := []byte("ApiVersion: v0.9\nKind: Deployment\n")
	if err := os.WriteFile(filepath.Join(dir, "Statefile"), want, 0o644); err != nil {
		t.Fatal(err)
	}

	path, data, err := Locate(context.Background(), dir, "")
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if string(data) != string(want) {
		t.Errorf("data = %q, want %q", data, want)
	}
	if path != filepath.Join(dir, "Statefile") {
		t.Errorf("path = %q", path)
	}
}

func TestLocate_NotFound(t *testing.T) {
	if _, _, err := Locate(context.Background(), t.TempDir(), ""); err == nil {
		t.Fatal("expected error when no Statefile is present")
	}
}

func TestBuildArgValues_MissingRequired(t *testing.T) {
	schema := []model.StatefileArg{{Name: "env", Kind: "String"}}
	if _, err := BuildArgValues(schema, map[string]string{}); err == nil {
		t.Fatal("expected error for missing required arg")
	}
}

func TestBuildArgValues_TypeEnforcement(t *testing.T) {
	schema := []model.StatefileArg{{Name: "replicas", Kind: "Number"}}
	if _, err := BuildArgValues(schema, map[string]string{"replicas": "not-a-number"}); err == nil {
		t.Fatal("expected error for malformed Number arg")
	}
	values, err := BuildArgValues(schema, map[string]string{"replicas": "3"})
	if err != nil {
		t.Fatalf("BuildArgValues() error = %v", err)
	}
	if values["replicas"] != "3" {
		t.Errorf("replicas = %q, want 3", values["replicas"])
	}
}

func TestBuildArgValues_DefaultsApply(t *testing.T) {
	schema := []model.StatefileArg{{Name: "env", Kind: "String", Default: "dev"}}
	values, err := BuildArgValues(schema, map[string]string{})
	if err != nil {
		t.Fatalf("BuildArgValues() error = %v", err)
	}
	if values["env"] != "dev" {
		t.Errorf("env = %q, want dev", values["env"])
	}
}

func TestRender_SubstitutesArgsAndSprigFunc(t *testing.T) {
	raw := []byte(`
ApiVersion: v0.9
Kind: Deployment
Namespace: {{ .Args.env | upper }}
Cargoes:
  - Name: web
    Container:
      Image: nginx:latest
`)
	buildCtx := DefaultBuildContext("172.17.0.1", []string{"global"})
	buildCtx.Args["env"] = "prod"

	sf, err := Render(raw, buildCtx)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if sf.Namespace != "PROD" {
		t.Errorf("Namespace = %q, want PROD", sf.Namespace)
	}
	if len(sf.Cargoes) != 1 || sf.Cargoes[0].Name != "web" {
		t.Fatalf("Cargoes = %+v", sf.Cargoes)
	}
}

func TestRewriteBinds(t *testing.T) {
	out := RewriteBinds([]string{"./data:/data", "~/cache:/cache", "/abs:/abs"}, "/home/op/proj", "/home/op")
	want := []string{"/home/op/proj/data:/data", "/home/op/cache:/cache", "/abs:/abs"}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("bind[%d] = %q, want %q", i, out[i], want[i])
		}
	}
}

func newTestEngine(t *testing.T) (*Engine, *memory.Store) {
	t.Helper()
	st := memory.New()
	eng := fakeengine.New()
	bus := eventbus.New()
	status := objstatus.New(st, bus)
	log := logging.NewFromEnv("test")
	node := model.Node{Key: "node-1", AdvertiseAddr: "10.0.0.1"}
	mgr := instance.New(st, eng, status, nil, node, log)
	return New(st, mgr, bus, log), st
}

func TestEngine_ApplyCreatesCargoAndIsIdempotent(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	sf := &model.Statefile{
		ApiVersion: "v0.9",
		Kind:       "Deployment",
		Namespace:  model.GlobalNamespace,
		Cargoes: []model.CargoSpec{
			{Name: "web", Container: model.ContainerSpec{Image: "nginx:latest"}},
		},
	}

	result, err := e.Apply(ctx, sf, t.TempDir(), false)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(result.Created) != 1 {
		t.Fatalf("Created = %+v, want 1 entry", result.Created)
	}

	key := model.GlobalNamespace + "-web"
	status, err := st.ReadStatus(ctx, key)
	if err != nil {
		t.Fatalf("ReadStatus() error = %v", err)
	}
	if status.Actual != model.StatusStart {
		t.Errorf("Actual = %v, want %v", status.Actual, model.StatusStart)
	}

	result, err = e.Apply(ctx, sf, t.TempDir(), false)
	if err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}
	if len(result.Created) != 0 || len(result.Updated) != 0 {
		t.Errorf("second Apply should be a no-op when unchanged, got %+v", result)
	}
}

func TestEngine_ApplyCreatesSecretThenUpdatesOnReapply(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()
	st.CreateNamespace(ctx, model.GlobalNamespace)

	sf := &model.Statefile{
		ApiVersion: "v0.9", Kind: "Deployment", Namespace: model.GlobalNamespace,
		Secrets: []model.SecretSpec{{Name: "db-creds", Kind: model.SecretEnvKind, Data: []byte(`["PASSWORD=one"]`)}},
	}
	result, err := e.Apply(ctx, sf, t.TempDir(), false)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(result.Created) != 1 {
		t.Fatalf("expected secret to be created, got %+v", result)
	}

	sf.Secrets[0].Data = []byte(`["PASSWORD=two"]`)
	result, err = e.Apply(ctx, sf, t.TempDir(), false)
	if err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}
	if len(result.Updated) != 1 {
		t.Fatalf("expected secret update on reapply, got %+v", result)
	}
}
