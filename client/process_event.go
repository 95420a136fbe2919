package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/next-hat/nanocl-sub000/internal/model"
)

// ListProcesses lists every tracked process, optionally scoped to one kind.
func (c *Client) ListProcesses(ctx context.Context, kind string) ([]model.Process, error) {
	path := c.apiPath("/processes")
	if kind != "" {
		path += "?kind=" + kind
	}
	var out []model.Process
	return out, c.do(ctx, http.MethodGet, path, nil, &out)
}

// ListEvents lists the stored event history.
func (c *Client) ListEvents(ctx context.Context) ([]model.Event, error) {
	var out []model.Event
	return out, c.do(ctx, http.MethodGet, c.apiPath("/events"), nil, &out)
}

// WatchEvents streams live events off the daemon's event bus into fn, one
// decoded model.Event at a time, until ctx is cancelled, the connection
// closes, or fn returns a non-nil error (which stops the stream and is
// returned to the caller).
func (c *Client) WatchEvents(ctx context.Context, kind string, fn func(model.Event) error) error {
	path := c.apiPath("/events/watch")
	if kind != "" {
		path += "?kind=" + kind
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("watch events: status %d", resp.StatusCode)
	}

	dec := json.NewDecoder(bufio.NewReader(resp.Body))
	for {
		var ev model.Event
		if err := dec.Decode(&ev); err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}
