package client

import (
	"context"
	"net/http"

	"github.com/next-hat/nanocl-sub000/internal/model"
	"github.com/next-hat/nanocl-sub000/internal/store"
)

// ListResources lists every resource.
func (c *Client) ListResources(ctx context.Context) ([]store.Object, error) {
	var out []store.Object
	return out, c.do(ctx, http.MethodGet, c.apiPath("/resources"), nil, &out)
}

// CreateResource creates a Resource from spec.
func (c *Client) CreateResource(ctx context.Context, spec model.ResourceSpec) (*store.Object, error) {
	var out store.Object
	return &out, c.do(ctx, http.MethodPost, c.apiPath("/resources"), spec, &out)
}

// DeleteResource removes a Resource by name.
func (c *Client) DeleteResource(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, c.apiPath("/resources/"+name), nil, nil)
}

// ListSecrets lists every secret.
func (c *Client) ListSecrets(ctx context.Context) ([]store.Object, error) {
	var out []store.Object
	return out, c.do(ctx, http.MethodGet, c.apiPath("/secrets"), nil, &out)
}

// CreateSecret creates a Secret from spec.
func (c *Client) CreateSecret(ctx context.Context, spec model.SecretSpec) (*store.Object, error) {
	var out store.Object
	return &out, c.do(ctx, http.MethodPost, c.apiPath("/secrets"), spec, &out)
}

// DeleteSecret removes a Secret by name.
func (c *Client) DeleteSecret(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, c.apiPath("/secrets/"+name), nil, nil)
}
