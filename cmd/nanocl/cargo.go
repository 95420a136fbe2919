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

func handleCargo(ctx context.Context, c *client.Client, args []string) error {
	if len(args) == 0 {
		fmt.Println(`Usage:
  nanocl cargo list [--namespace ns]
  nanocl cargo create --name <name> --image <image> [--namespace ns] [--env K=V,...]
  nanocl cargo get <key>
  nanocl cargo rm <key>
  nanocl cargo start <key>
  nanocl cargo stop <key>
  nanocl cargo scale <key> --delta <n>`)
		return nil
	}
	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("cargo list", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		var namespace string
		fs.StringVar(&namespace, "namespace", "", "Filter by namespace")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		out, err := c.ListCargoes(ctx, namespace)
		if err != nil {
			return err
		}
		prettyPrint(out)
	case "create":
		fs := flag.NewFlagSet("cargo create", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		var name, image, namespace, env string
		fs.StringVar(&name, "name", "", "Cargo name (required)")
		fs.StringVar(&image, "image", "", "Container image (required)")
		fs.StringVar(&namespace, "namespace", "", "Namespace (defaults to global)")
		fs.StringVar(&env, "env", "", "Comma separated K=V environment entries")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if name == "" || image == "" {
			return errors.New("name and image are required")
		}
		spec := model.CargoSpec{
			Name:      name,
			Namespace: namespace,
			Container: model.ContainerSpec{Image: image, Env: splitList(env)},
		}
		out, err := c.CreateCargo(ctx, spec)
		if err != nil {
			return err
		}
		prettyPrint(out)
	case "get":
		if len(args) < 2 {
			return errors.New("key required")
		}
		out, err := c.InspectCargo(ctx, args[1])
		if err != nil {
			return err
		}
		prettyPrint(out)
	case "rm":
		if len(args) < 2 {
			return errors.New("key required")
		}
		return c.DeleteCargo(ctx, args[1])
	case "start":
		if len(args) < 2 {
			return errors.New("key required")
		}
		return c.StartCargo(ctx, args[1])
	case "stop":
		if len(args) < 2 {
			return errors.New("key required")
		}
		return c.StopCargo(ctx, args[1])
	case "scale":
		if len(args) < 2 {
			return errors.New("key required")
		}
		fs := flag.NewFlagSet("cargo scale", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		var delta int
		fs.IntVar(&delta, "delta", 0, "Replica delta (required, may be negative)")
		if err := fs.Parse(args[2:]); err != nil {
			return err
		}
		if delta == 0 {
			return errors.New("delta must be non-zero")
		}
		return c.ScaleCargo(ctx, args[1], delta)
	default:
		return fmt.Errorf("unknown cargo subcommand %q", args[0])
	}
	return nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ',' {
			if i > start {
				out = append(out, raw[start:i])
			}
			start = i + 1
		}
	}
	return out
}
