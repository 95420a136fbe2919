package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/next-hat/nanocl-sub000/client"
	"github.com/next-hat/nanocl-sub000/internal/model"
)

func handleEvents(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var kind string
	var watch bool
	fs.StringVar(&kind, "kind", "", "Filter by kind")
	fs.BoolVar(&watch, "watch", false, "Stream live events instead of listing history")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !watch {
		out, err := c.ListEvents(ctx)
		if err != nil {
			return err
		}
		prettyPrint(out)
		return nil
	}
	return c.WatchEvents(ctx, kind, func(ev model.Event) error {
		fmt.Printf("%s %s %s\n", ev.CreatedAt.Format("15:04:05"), ev.Kind, ev.Action)
		return nil
	})
}
