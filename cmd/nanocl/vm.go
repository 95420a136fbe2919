package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/gorilla/websocket"

	"github.com/next-hat/nanocl-sub000/client"
	"github.com/next-hat/nanocl-sub000/internal/model"
)

func handleVm(ctx context.Context, c *client.Client, args []string) error {
	if len(args) == 0 {
		fmt.Println(`Usage:
  nanocl vm list [--namespace ns]
  nanocl vm create --name <name> --image <path> [--namespace ns] [--cpu n] [--memory mb]
  nanocl vm get <key>
  nanocl vm rm <key>
  nanocl vm start <key>
  nanocl vm stop <key>
  nanocl vm attach <name> [--namespace ns]`)
		return nil
	}
	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("vm list", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		var namespace string
		fs.StringVar(&namespace, "namespace", "", "Filter by namespace")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		out, err := c.ListVms(ctx, namespace)
		if err != nil {
			return err
		}
		prettyPrint(out)
	case "create":
		fs := flag.NewFlagSet("vm create", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		var name, imagePath, namespace string
		var cpu, memoryMB int
		fs.StringVar(&name, "name", "", "Vm name (required)")
		fs.StringVar(&imagePath, "image", "", "Disk image path (required)")
		fs.StringVar(&namespace, "namespace", "", "Namespace (defaults to global)")
		fs.IntVar(&cpu, "cpu", 0, "vCPU count")
		fs.IntVar(&memoryMB, "memory", 0, "Memory in MB")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if name == "" || imagePath == "" {
			return errors.New("name and image are required")
		}
		spec := model.VmSpec{Name: name, Namespace: namespace, ImagePath: imagePath, Cpu: cpu, MemoryMB: memoryMB}
		out, err := c.CreateVm(ctx, spec)
		if err != nil {
			return err
		}
		prettyPrint(out)
	case "get":
		if len(args) < 2 {
			return errors.New("key required")
		}
		out, err := c.InspectVm(ctx, args[1])
		if err != nil {
			return err
		}
		prettyPrint(out)
	case "rm":
		if len(args) < 2 {
			return errors.New("key required")
		}
		return c.DeleteVm(ctx, args[1])
	case "start":
		if len(args) < 2 {
			return errors.New("key required")
		}
		return c.StartVm(ctx, args[1])
	case "stop":
		if len(args) < 2 {
			return errors.New("key required")
		}
		return c.StopVm(ctx, args[1])
	case "attach":
		if len(args) < 2 {
			return errors.New("name required")
		}
		fs := flag.NewFlagSet("vm attach", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		var namespace string
		fs.StringVar(&namespace, "namespace", "", "Namespace (defaults to global)")
		if err := fs.Parse(args[2:]); err != nil {
			return err
		}
		return attachVm(ctx, c, args[1], namespace)
	default:
		return fmt.Errorf("unknown vm subcommand %q", args[0])
	}
	return nil
}

// attachVm opens the console websocket and relays frames to stdout; it
// never writes to the connection itself, since the CLI's stdin is not
// wired up to a terminal session here (an interactive console is out of
// scope for a scripting-friendly CLI).
func attachVm(ctx context.Context, c *client.Client, name, namespace string) error {
	conn, err := c.AttachVm(ctx, name, namespace)
	if err != nil {
		return err
	}
	defer conn.Close()
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return nil
		}
		if mt == websocket.BinaryMessage || mt == websocket.TextMessage {
			fmt.Print(string(data))
		}
	}
}
