package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"

	"github.com/next-hat/nanocl-sub000/client"
)

func handleState(ctx context.Context, c *client.Client, args []string) error {
	if len(args) == 0 {
		printStateUsage()
		return nil
	}
	switch args[0] {
	case "apply":
		fs := flag.NewFlagSet("state apply", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		var file string
		var reload bool
		var argPairs stringSliceFlag
		fs.StringVar(&file, "file", "", "Path to a Statefile document, or - for stdin (required)")
		fs.BoolVar(&reload, "reload", false, "Reconcile existing objects even if their spec hash is unchanged")
		fs.Var(&argPairs, "arg", "Template argument K=V, repeatable")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if file == "" {
			return errors.New("file is required")
		}
		content, err := readStateFile(file)
		if err != nil {
			return err
		}
		out, err := c.ApplyState(ctx, content, argPairs.toMap(), reload)
		if err != nil {
			return err
		}
		prettyPrint(out)
	default:
		printStateUsage()
	}
	return nil
}

func printStateUsage() {
	os.Stdout.WriteString(`Usage:
  nanocl state apply --file <path|-> [--arg K=V ...] [--reload]
`)
}

func readStateFile(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

// stringSliceFlag collects repeated -arg K=V flags into a map.
type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	if s == nil {
		return ""
	}
	return joinStrings(*s)
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func (s stringSliceFlag) toMap() map[string]string {
	if len(s) == 0 {
		return nil
	}
	out := make(map[string]string, len(s))
	for _, pair := range s {
		for i := 0; i < len(pair); i++ {
			if pair[i] == '=' {
				out[pair[:i]] = pair[i+1:]
				break
			}
		}
	}
	return out
}

func joinStrings(items []string) string {
	out := ""
	for i, it := range items {
		if i > 0 {
			out += ","
		}
		out += it
	}
	return out
}
