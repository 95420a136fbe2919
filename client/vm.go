package client

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/next-hat/nanocl-sub000/internal/model"
	"github.com/next-hat/nanocl-sub000/internal/store"
)

// ListVms lists vms, optionally scoped to one namespace.
func (c *Client) ListVms(ctx context.Context, namespace string) ([]store.Object, error) {
	path := c.apiPath("/vms")
	if namespace != "" {
		path += "?namespace=" + namespace
	}
	var out []store.Object
	return out, c.do(ctx, http.MethodGet, path, nil, &out)
}

// CreateVm creates a Vm from spec.
func (c *Client) CreateVm(ctx context.Context, spec model.VmSpec) (*model.Vm, error) {
	var out model.Vm
	return &out, c.do(ctx, http.MethodPost, c.apiPath("/vms"), spec, &out)
}

// InspectVm returns a Vm's object row and status.
func (c *Client) InspectVm(ctx context.Context, key string) (*CargoInspect, error) {
	var out CargoInspect
	return &out, c.do(ctx, http.MethodGet, c.apiPath("/vms/"+key), nil, &out)
}

// DeleteVm removes a Vm.
func (c *Client) DeleteVm(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, c.apiPath("/vms/"+key), nil, nil)
}

// StartVm starts a Vm's backing process.
func (c *Client) StartVm(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodPost, c.apiPath("/vms/"+key+"/start"), nil, nil)
}

// StopVm stops a Vm's backing process.
func (c *Client) StopVm(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodPost, c.apiPath("/vms/"+key+"/stop"), nil, nil)
}

// AttachVm opens a websocket to the vm's console and returns it; the caller
// reads/writes websocket frames directly (BinaryMessage carries console
// bytes both ways, mirroring the daemon's attachVm handler).
func (c *Client) AttachVm(ctx context.Context, name, namespace string) (*websocket.Conn, error) {
	scheme := "ws"
	rest := c.baseURL
	if strings.HasPrefix(rest, "https://") {
		scheme = "wss"
		rest = strings.TrimPrefix(rest, "https://")
	} else {
		rest = strings.TrimPrefix(strings.TrimPrefix(rest, "http://"), "ws://")
	}
	url := scheme + "://" + rest + c.apiPath("/vms/"+name+"/attach")
	if namespace != "" {
		url += "?namespace=" + namespace
	}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	return conn, err
}
