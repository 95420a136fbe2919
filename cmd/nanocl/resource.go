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

func handleResource(ctx context.Context, c *client.Client, args []string) error {
	if len(args) == 0 {
		fmt.Println(`Usage:
  nanocl resource list
  nanocl resource create --name <name> --kind <kind> --data <raw>
  nanocl resource rm <name>`)
		return nil
	}
	switch args[0] {
	case "list":
		out, err := c.ListResources(ctx)
		if err != nil {
			return err
		}
		prettyPrint(out)
	case "create":
		fs := flag.NewFlagSet("resource create", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		var name, kind, data string
		fs.StringVar(&name, "name", "", "Resource name (required)")
		fs.StringVar(&kind, "kind", "", "Resource kind (required)")
		fs.StringVar(&data, "data", "", "Raw resource payload")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if name == "" || kind == "" {
			return errors.New("name and kind are required")
		}
		spec := model.ResourceSpec{Name: name, Kind: kind, Data: []byte(data)}
		out, err := c.CreateResource(ctx, spec)
		if err != nil {
			return err
		}
		prettyPrint(out)
	case "rm":
		if len(args) < 2 {
			return errors.New("name required")
		}
		return c.DeleteResource(ctx, args[1])
	default:
		return fmt.Errorf("unknown resource subcommand %q", args[0])
	}
	return nil
}
