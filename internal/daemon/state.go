package daemon

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"

	coreerrors "github.com/next-hat/nanocl-sub000/infrastructure/errors"
	"github.com/next-hat/nanocl-sub000/internal/statefile"
)

// registerStateRoutes exposes the apply/statefile engine (spec.md §4.7) as
// an HTTP verb: POST a raw Statefile document plus its args, get back a
// converge summary.
func (s *Server) registerStateRoutes(r *mux.Router) {
	r.HandleFunc("/state/apply", s.applyState).Methods(http.MethodPost)
}

type applyStateRequest struct {
	Content string            `json:"content"`
	Args    map[string]string `json:"args,omitempty"`
	Reload  bool              `json:"reload,omitempty"`
}

func (s *Server) applyState(w http.ResponseWriter, r *http.Request) {
	if s.apply == nil {
		writeErr(w, coreerrors.New(coreerrors.Internal, "statefile engine not configured"))
		return
	}
	var req applyStateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	raw := []byte(req.Content)
	schema, err := statefile.ParseArgsSchema(raw)
	if err != nil {
		writeErr(w, err)
		return
	}
	values, err := statefile.BuildArgValues(schema, req.Args)
	if err != nil {
		writeErr(w, err)
		return
	}

	buildCtx := statefile.DefaultBuildContext("", nil)
	buildCtx.Args = values

	sf, err := statefile.Render(raw, buildCtx)
	if err != nil {
		writeErr(w, err)
		return
	}

	cwd, _ := os.Getwd()
	result, err := s.apply.Apply(r.Context(), sf, cwd, req.Reload)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, result)
}
