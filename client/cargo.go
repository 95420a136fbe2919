package client

import (
	"context"
	"net/http"

	"github.com/next-hat/nanocl-sub000/internal/model"
	"github.com/next-hat/nanocl-sub000/internal/store"
)

// CargoInspect is the {object,status,processes} envelope inspectCargo and
// inspectVm hand back.
type CargoInspect struct {
	Object    store.Object        `json:"object"`
	Status    model.ObjPsStatus   `json:"status"`
	Processes []model.Process     `json:"processes"`
}

// ListCargoes lists cargoes, optionally scoped to one namespace.
func (c *Client) ListCargoes(ctx context.Context, namespace string) ([]store.Object, error) {
	path := c.apiPath("/cargoes")
	if namespace != "" {
		path += "?namespace=" + namespace
	}
	var out []store.Object
	return out, c.do(ctx, http.MethodGet, path, nil, &out)
}

// CreateCargo creates a Cargo from spec.
func (c *Client) CreateCargo(ctx context.Context, spec model.CargoSpec) (*model.Cargo, error) {
	var out model.Cargo
	return &out, c.do(ctx, http.MethodPost, c.apiPath("/cargoes"), spec, &out)
}

// InspectCargo returns a Cargo's object row, status, and live processes.
func (c *Client) InspectCargo(ctx context.Context, key string) (*CargoInspect, error) {
	var out CargoInspect
	return &out, c.do(ctx, http.MethodGet, c.apiPath("/cargoes/"+key), nil, &out)
}

// PutCargo rolls key forward to spec (create-then-swap with rollback on
// failure, per the instance manager's rolling-put semantics).
func (c *Client) PutCargo(ctx context.Context, key string, spec model.CargoSpec) error {
	return c.do(ctx, http.MethodPut, c.apiPath("/cargoes/"+key), spec, nil)
}

// DeleteCargo removes a Cargo and every process backing it.
func (c *Client) DeleteCargo(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, c.apiPath("/cargoes/"+key), nil, nil)
}

// StartCargo starts every process of a Cargo.
func (c *Client) StartCargo(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodPost, c.apiPath("/cargoes/"+key+"/start"), nil, nil)
}

// StopCargo stops every process of a Cargo.
func (c *Client) StopCargo(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodPost, c.apiPath("/cargoes/"+key+"/stop"), nil, nil)
}

// ScaleCargo adjusts a Cargo's replica count by delta (may be negative).
func (c *Client) ScaleCargo(ctx context.Context, key string, delta int) error {
	path := c.apiPath("/cargoes/"+key+"/scale") + "?delta=" + itoa(delta)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}
