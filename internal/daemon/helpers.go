package daemon

import (
	"encoding/json"
	"net/http"

	coreerrors "github.com/next-hat/nanocl-sub000/infrastructure/errors"
	"github.com/next-hat/nanocl-sub000/infrastructure/httputil"
)

// decodeBody decodes r's JSON body into v, responding with 400 and
// returning false on failure so handlers can `if !decodeBody(...) { return }`.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErr(w, coreerrors.ErrInvalidInput("body", err.Error()))
		return false
	}
	return true
}

// writeErr renders err through the core's Kind->status mapping.
func writeErr(w http.ResponseWriter, err error) {
	ce := coreerrors.As(err)
	if ce == nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteErrorResponse(w, nil, coreerrors.HTTPStatus(err), string(ce.Kind), ce.Message, ce.Details)
}

func writeOK(w http.ResponseWriter, v interface{}) {
	httputil.WriteJSON(w, http.StatusOK, v)
}

func writeCreated(w http.ResponseWriter, v interface{}) {
	httputil.WriteJSON(w, http.StatusCreated, v)
}

func errInvalidQueryInt(param, got string) error {
	return coreerrors.ErrInvalidInput(param, "expected an integer, got "+got)
}

func errStreamingUnsupported() error {
	return coreerrors.New(coreerrors.Internal, "response writer does not support streaming")
}
