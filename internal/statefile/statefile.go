// Package statefile implements the apply/statefile engine (spec.md §4.7):
// locate, parse, template-render with a substitution context, and converge
// a declarative document against the store/engine, the way
// github.com/giantswarm-style template engines render Go templates with
// Sprig functions (here via text/template + github.com/Masterminds/sprig/v3)
// rather than hand-rolled placeholder substitution.
package statefile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/sprig/v3"
	"gopkg.in/yaml.v3"
	"text/template"

	coreerrors "github.com/next-hat/nanocl-sub000/infrastructure/errors"
	"github.com/next-hat/nanocl-sub000/internal/model"
)

var defaultFilenames = []string{"Statefile.yaml", "Statefile", "Statefile.yml"}

// Locate resolves pathOrURL to its textual content. An explicit file://
// or http(s):// reference is read directly (one redirect followed for
// HTTP); otherwise the default search order is tried in dir.
func Locate(ctx context.Context, dir, pathOrURL string) (string, []byte, error) {
	if pathOrURL == "" {
		for _, name := range defaultFilenames {
			candidate := filepath.Join(dir, name)
			if data, err := os.ReadFile(candidate); err == nil {
				return candidate, data, nil
			}
		}
		return "", nil, coreerrors.ErrNotFound("statefile", dir)
	}

	switch {
	case strings.HasPrefix(pathOrURL, "http://"), strings.HasPrefix(pathOrURL, "https://"):
		data, err := fetchHTTP(ctx, pathOrURL)
		return pathOrURL, data, err
	case strings.HasPrefix(pathOrURL, "file://"):
		p := strings.TrimPrefix(pathOrURL, "file://")
		data, err := os.ReadFile(p)
		if err != nil {
			return "", nil, coreerrors.ErrNotFound("statefile", p)
		}
		return p, data, nil
	default:
		data, err := os.ReadFile(pathOrURL)
		if err != nil {
			return "", nil, coreerrors.ErrNotFound("statefile", pathOrURL)
		}
		return pathOrURL, data, nil
	}
}

func fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 2 {
				return http.ErrUseLastResponse
			}
			return nil
		},
		Timeout: 30 * time.Second,
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, coreerrors.ErrInvalidInput("statefile_url", err.Error())
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, coreerrors.ErrTransient("fetch_statefile", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, coreerrors.ErrNotFound("statefile", url)
	}
	return io.ReadAll(resp.Body)
}

// argsSchema is the shape needed to parse just the Args block before
// rendering (spec.md §4.7 step 2).
type argsSchema struct {
	Args []model.StatefileArg `yaml:"Args"`
}

// ParseArgsSchema reads only the args schema, without substitution.
func ParseArgsSchema(raw []byte) ([]model.StatefileArg, error) {
	var s argsSchema
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, coreerrors.ErrInvalidInput("statefile", err.Error())
	}
	return s.Args, nil
}

// BuildArgValues merges CLI-supplied k=v pairs into the schema, enforcing
// declared types and erroring on missing required values (spec.md §4.7
// step 3; a required arg is one with no Default).
func BuildArgValues(schema []model.StatefileArg, supplied map[string]string) (map[string]string, error) {
	values := make(map[string]string, len(schema))
	for _, arg := range schema {
		val, ok := supplied[arg.Name]
		if !ok {
			if arg.Default == "" {
				return nil, coreerrors.ErrInvalidInput(arg.Name, "required arg not supplied")
			}
			val = arg.Default
		}
		if err := checkArgType(arg, val); err != nil {
			return nil, err
		}
		values[arg.Name] = val
	}
	return values, nil
}

func checkArgType(arg model.StatefileArg, val string) error {
	switch arg.Kind {
	case "Number":
		if _, err := strconv.ParseFloat(val, 64); err != nil {
			return coreerrors.ErrInvalidInput(arg.Name, "expected a Number")
		}
	case "Boolean":
		if _, err := strconv.ParseBool(val); err != nil {
			return coreerrors.ErrInvalidInput(arg.Name, "expected a Boolean")
		}
	}
	return nil
}

// Render executes raw as a Go template (Sprig funcs available) against ctx,
// then parses the result into a typed Statefile (spec.md §4.7 step 4).
func Render(raw []byte, buildCtx model.BuildContext) (*model.Statefile, error) {
	tmpl, err := template.New("statefile").Funcs(sprig.TxtFuncMap()).Option("missingkey=zero").Parse(string(raw))
	if err != nil {
		return nil, coreerrors.ErrInvalidInput("statefile", fmt.Sprintf("template parse: %v", err))
	}

	var buf bytes.Buffer
	data := map[string]interface{}{
		"Args": buildCtx.Args, "Envs": buildCtx.Envs, "Context": buildCtx.Context,
		"Os": buildCtx.Os, "OsFamily": buildCtx.OsFamily, "Config": buildCtx.Config,
		"HostGateway": buildCtx.HostGateway, "Namespaces": buildCtx.Namespaces,
	}
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, coreerrors.ErrInvalidInput("statefile", fmt.Sprintf("template render: %v", err))
	}

	var sf model.Statefile
	if err := yaml.Unmarshal(buf.Bytes(), &sf); err != nil {
		return nil, coreerrors.ErrInvalidInput("statefile", fmt.Sprintf("yaml parse: %v", err))
	}
	return &sf, nil
}

// DefaultBuildContext fills the host-dependent fields of the substitution
// context (Os, OsFamily, HostGateway).
func DefaultBuildContext(hostGateway string, namespaces []string) model.BuildContext {
	osFamily := "unix"
	if runtime.GOOS == "windows" {
		osFamily = "windows"
	}
	return model.BuildContext{
		Args: map[string]string{}, Envs: envMap(), Context: map[string]string{},
		Os: runtime.GOOS, OsFamily: osFamily, Config: map[string]string{},
		HostGateway: hostGateway, Namespaces: namespaces,
	}
}

func envMap() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			out[kv[:i]] = kv[i+1:]
		}
	}
	return out
}

// RewriteBinds rewrites relative/home-relative host binds in place
// (spec.md §4.7 step 5): "./x" -> "<cwd>/x", "~/x" -> "<home>/x".
func RewriteBinds(binds []string, cwd, home string) []string {
	out := make([]string, len(binds))
	for i, b := range binds {
		parts := strings.SplitN(b, ":", 2)
		src := parts[0]
		switch {
		case strings.HasPrefix(src, "./"):
			src = filepath.Join(cwd, src[2:])
		case strings.HasPrefix(src, "~/"):
			src = filepath.Join(home, src[2:])
		}
		if len(parts) == 2 {
			out[i] = src + ":" + parts[1]
		} else {
			out[i] = src
		}
	}
	return out
}
