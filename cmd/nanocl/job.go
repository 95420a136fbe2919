package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/next-hat/nanocl-sub000/client"
	"github.com/next-hat/nanocl-sub000/internal/model"
)

func handleJob(ctx context.Context, c *client.Client, args []string) error {
	if len(args) == 0 {
		fmt.Println(`Usage:
  nanocl job list
  nanocl job create --name <name> --image <image> [--schedule cron] [--env K=V,...]
  nanocl job get <key>
  nanocl job rm <key>
  nanocl job run <key>`)
		return nil
	}
	switch args[0] {
	case "list":
		out, err := c.ListJobs(ctx)
		if err != nil {
			return err
		}
		prettyPrint(out)
	case "create":
		fs := flag.NewFlagSet("job create", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		var name, image, schedule, env string
		fs.StringVar(&name, "name", "", "Job name (required)")
		fs.StringVar(&image, "image", "", "Container image (required)")
		fs.StringVar(&schedule, "schedule", "", "Cron schedule (optional, runs on demand if empty)")
		fs.StringVar(&env, "env", "", "Comma separated K=V environment entries")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if name == "" || image == "" {
			return errors.New("name and image are required")
		}
		spec := model.JobSpec{
			Name:     name,
			Schedule: schedule,
			Containers: []model.JobContainerSpec{
				{Container: model.ContainerSpec{Image: image, Env: splitList(env)}},
			},
		}
		out, err := c.CreateJob(ctx, spec)
		if err != nil {
			return err
		}
		prettyPrint(out)
	case "get":
		if len(args) < 2 {
			return errors.New("key required")
		}
		out, err := c.InspectJob(ctx, args[1])
		if err != nil {
			return err
		}
		prettyPrint(out)
	case "rm":
		if len(args) < 2 {
			return errors.New("key required")
		}
		return c.DeleteJob(ctx, args[1])
	case "run":
		if len(args) < 2 {
			return errors.New("key required")
		}
		return c.RunJob(ctx, args[1])
	default:
		return fmt.Errorf("unknown job subcommand %q", args[0])
	}
	return nil
}
