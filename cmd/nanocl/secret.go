package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/next-hat/nanocl-sub000/client"
	"github.com/next-hat/nanocl-sub000/internal/model"
)

func handleSecret(ctx context.Context, c *client.Client, args []string) error {
	if len(args) == 0 {
		fmt.Println(`Usage:
  nanocl secret list
  nanocl secret create --name <name> --kind <kind> --data <raw> [--env K=V,...]
  nanocl secret rm <name>`)
		return nil
	}
	switch args[0] {
	case "list":
		out, err := c.ListSecrets(ctx)
		if err != nil {
			return err
		}
		prettyPrint(out)
	case "create":
		fs := flag.NewFlagSet("secret create", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		var name, kind, data, env string
		fs.StringVar(&name, "name", "", "Secret name (required)")
		fs.StringVar(&kind, "kind", "", "Secret kind (required)")
		fs.StringVar(&data, "data", "", "Raw secret payload")
		fs.StringVar(&env, "env", "", "Comma separated K=V entries, used when --kind is "+model.SecretEnvKind)
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if name == "" || kind == "" {
			return errors.New("name and kind are required")
		}
		payload := []byte(data)
		if kind == model.SecretEnvKind && env != "" {
			encoded, err := json.Marshal(splitList(env))
			if err != nil {
				return err
			}
			payload = encoded
		}
		spec := model.SecretSpec{Name: name, Kind: kind, Data: payload}
		out, err := c.CreateSecret(ctx, spec)
		if err != nil {
			return err
		}
		prettyPrint(out)
	case "rm":
		if len(args) < 2 {
			return errors.New("name required")
		}
		return c.DeleteSecret(ctx, args[1])
	default:
		return fmt.Errorf("unknown secret subcommand %q", args[0])
	}
	return nil
}
