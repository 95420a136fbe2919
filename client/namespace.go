package client

import (
	"context"
	"net/http"

	"github.com/next-hat/nanocl-sub000/internal/model"
)

// ListNamespaces lists every namespace.
func (c *Client) ListNamespaces(ctx context.Context) ([]model.Namespace, error) {
	var out []model.Namespace
	return out, c.do(ctx, http.MethodGet, c.apiPath("/namespaces"), nil, &out)
}

// CreateNamespace creates a namespace by name.
func (c *Client) CreateNamespace(ctx context.Context, name string) (*model.Namespace, error) {
	var out model.Namespace
	return &out, c.do(ctx, http.MethodPost, c.apiPath("/namespaces"), map[string]string{"name": name}, &out)
}

// DeleteNamespace removes a namespace by name.
func (c *Client) DeleteNamespace(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, c.apiPath("/namespaces/"+name), nil, nil)
}
