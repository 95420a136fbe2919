package main

import (
	"context"
	"flag"
	"io"

	"github.com/next-hat/nanocl-sub000/client"
)

func handleProcess(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var kind string
	fs.StringVar(&kind, "kind", "", "Filter by kind (cargo, vm, job)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	out, err := c.ListProcesses(ctx, kind)
	if err != nil {
		return err
	}
	prettyPrint(out)
	return nil
}
