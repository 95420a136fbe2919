package client

import (
	"context"
	"net/http"

	"github.com/next-hat/nanocl-sub000/internal/statefile"
)

type applyStateRequest struct {
	Content string            `json:"content"`
	Args    map[string]string `json:"args,omitempty"`
	Reload  bool              `json:"reload,omitempty"`
}

// ApplyState sends a raw Statefile document to the daemon's apply engine,
// returning a summary of what it created, updated, or skipped.
func (c *Client) ApplyState(ctx context.Context, content string, args map[string]string, reload bool) (*statefile.ApplyResult, error) {
	req := applyStateRequest{Content: content, Args: args, Reload: reload}
	var out statefile.ApplyResult
	return &out, c.do(ctx, http.MethodPost, c.apiPath("/state/apply"), req, &out)
}
