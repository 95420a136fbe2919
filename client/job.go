package client

import (
	"context"
	"net/http"

	"github.com/next-hat/nanocl-sub000/internal/model"
	"github.com/next-hat/nanocl-sub000/internal/store"
)

// ListJobs lists every job.
func (c *Client) ListJobs(ctx context.Context) ([]store.Object, error) {
	var out []store.Object
	return out, c.do(ctx, http.MethodGet, c.apiPath("/jobs"), nil, &out)
}

// CreateJob creates a Job from spec, registering its cron schedule if set.
func (c *Client) CreateJob(ctx context.Context, spec model.JobSpec) (*model.Job, error) {
	var out model.Job
	return &out, c.do(ctx, http.MethodPost, c.apiPath("/jobs"), spec, &out)
}

// InspectJob returns a Job's object row and status.
func (c *Client) InspectJob(ctx context.Context, key string) (*CargoInspect, error) {
	var out CargoInspect
	return &out, c.do(ctx, http.MethodGet, c.apiPath("/jobs/"+key), nil, &out)
}

// DeleteJob removes a Job, unscheduling it first if it has a cron schedule.
func (c *Client) DeleteJob(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, c.apiPath("/jobs/"+key), nil, nil)
}

// RunJob triggers one immediate run of a Job outside its schedule.
func (c *Client) RunJob(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodPost, c.apiPath("/jobs/"+key+"/run"), nil, nil)
}
