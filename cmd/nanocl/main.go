// Command nanocl is the daemon's CLI, grounded on the teacher's cmd/slctl
// (one root flag.FlagSet for global flags, a switch dispatching to
// per-resource handlers that each build their own flag.FlagSet for
// subcommand-specific flags, a thin client wrapper, pretty-printed JSON
// responses).
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/next-hat/nanocl-sub000/client"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	defaultAddr := getenv("NANOCL_HOST", "http://localhost:8080")
	defaultToken := os.Getenv("NANOCL_TOKEN")

	root := flag.NewFlagSet("nanocl", flag.ContinueOnError)
	root.SetOutput(io.Discard)
	addrFlag := root.String("addr", defaultAddr, "Daemon base URL (env NANOCL_HOST)")
	tokenFlag := root.String("token", defaultToken, "Bearer token for node auth (env NANOCL_TOKEN)")
	timeoutFlag := root.Duration("timeout", 30*time.Second, "HTTP request timeout")
	if err := root.Parse(args); err != nil {
		return usageError(err)
	}

	remaining := root.Args()
	if len(remaining) == 0 {
		return usageError(errors.New("no command specified"))
	}

	c := client.New(*addrFlag, client.WithToken(*tokenFlag), client.WithHTTPClient(&http.Client{Timeout: *timeoutFlag}))

	switch remaining[0] {
	case "namespace", "ns":
		return handleNamespace(ctx, c, remaining[1:])
	case "cargo":
		return handleCargo(ctx, c, remaining[1:])
	case "vm":
		return handleVm(ctx, c, remaining[1:])
	case "job":
		return handleJob(ctx, c, remaining[1:])
	case "resource":
		return handleResource(ctx, c, remaining[1:])
	case "secret":
		return handleSecret(ctx, c, remaining[1:])
	case "state":
		return handleState(ctx, c, remaining[1:])
	case "events":
		return handleEvents(ctx, c, remaining[1:])
	case "process", "ps":
		return handleProcess(ctx, c, remaining[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		return usageError(fmt.Errorf("unknown command %q", remaining[0]))
	}
}

func usageError(err error) error {
	printRootUsage()
	return err
}

func printRootUsage() {
	fmt.Println(`nanocl - orchestration CLI

Usage:
  nanocl [global flags] <command> [subcommand] [flags]

Global Flags:
  --addr       Daemon base URL (env NANOCL_HOST, default http://localhost:8080)
  --token      Bearer token for node auth (env NANOCL_TOKEN)
  --timeout    HTTP timeout (default 30s)

Commands:
  namespace    Manage namespaces
  cargo        Manage cargoes (long-running containers)
  vm           Manage vms
  job          Manage jobs
  resource     Manage opaque resources
  secret       Manage secrets
  process      List tracked processes
  state        Apply a Statefile document
  events       List or watch the event log`)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func prettyPrint(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		fmt.Println(err)
		return
	}
	var dst bytes.Buffer
	if err := json.Indent(&dst, data, "", "  "); err != nil {
		fmt.Println(string(data))
		return
	}
	fmt.Println(dst.String())
}
