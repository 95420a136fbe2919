package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/next-hat/nanocl-sub000/client"
)

func handleNamespace(ctx context.Context, c *client.Client, args []string) error {
	if len(args) == 0 {
		fmt.Println(`Usage:
  nanocl namespace list
  nanocl namespace create <name>
  nanocl namespace delete <name>`)
		return nil
	}
	switch args[0] {
	case "list":
		out, err := c.ListNamespaces(ctx)
		if err != nil {
			return err
		}
		prettyPrint(out)
	case "create":
		if len(args) < 2 {
			return errors.New("name required")
		}
		out, err := c.CreateNamespace(ctx, args[1])
		if err != nil {
			return err
		}
		prettyPrint(out)
	case "delete":
		if len(args) < 2 {
			return errors.New("name required")
		}
		return c.DeleteNamespace(ctx, args[1])
	default:
		return fmt.Errorf("unknown namespace subcommand %q", args[0])
	}
	return nil
}
