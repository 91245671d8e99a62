package command

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/eadiscovery/discoveryd/internal/cli/output"
)

// NamespaceCommand returns the namespace subcommand group.
func NamespaceCommand() *cli.Command {
	return &cli.Command{
		Name:  "namespace",
		Usage: "Manage namespaces",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a namespace",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.Int64Flag{Name: "quota"},
					&cli.StringFlag{Name: "resource-tag"},
					&cli.IntFlag{Name: "replica-num", Value: 1},
				},
				Action: namespaceCreate,
			},
			{
				Name:  "modify",
				Usage: "Modify a namespace",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.Int64Flag{Name: "quota"},
					&cli.StringFlag{Name: "resource-tag"},
					&cli.IntFlag{Name: "replica-num"},
				},
				Action: namespaceModify,
			},
			{
				Name:      "drop",
				Usage:     "Drop a namespace",
				ArgsUsage: "<name>",
				Action:    namespaceDrop,
			},
			{
				Name:      "get",
				Usage:     "Show a namespace",
				ArgsUsage: "<name>",
				Action:    namespaceGet,
			},
			{
				Name:   "list",
				Usage:  "List namespaces",
				Action: namespaceList,
			},
		},
	}
}

func namespaceCreate(c *cli.Context) error {
	req := map[string]any{
		"name":         c.String("name"),
		"quota":        c.Int64("quota"),
		"resource_tag": c.String("resource-tag"),
		"replica_num":  c.Int("replica-num"),
	}
	return runManage(c, "discovery", "namespace.create", req)
}

func namespaceModify(c *cli.Context) error {
	req := map[string]any{"name": c.String("name")}
	if c.IsSet("quota") {
		req["quota"] = c.Int64("quota")
	}
	if c.IsSet("resource-tag") {
		req["resource_tag"] = c.String("resource-tag")
	}
	if c.IsSet("replica-num") {
		req["replica_num"] = c.Int("replica-num")
	}
	return runManage(c, "discovery", "namespace.modify", req)
}

func namespaceDrop(c *cli.Context) error {
	if c.Args().Len() < 1 {
		return fmt.Errorf("namespace name is required")
	}
	return runManage(c, "discovery", "namespace.drop", c.Args().First())
}

func namespaceGet(c *cli.Context) error {
	if c.Args().Len() < 1 {
		return fmt.Errorf("namespace name is required")
	}
	return runQuery(c, "discovery", "namespace.get", c.Args().First())
}

func namespaceList(c *cli.Context) error {
	return runQuery(c, "discovery", "namespace.list", nil)
}

// runManage and runQuery are the shared CLI-side RPC call paths every
// domain command builds on: marshal body, forward through the
// leader-following RPC client, then print the raw JSON payload in the
// requested output format.
func runManage(c *cli.Context, service, opType string, body any) error {
	return runRPC(c, service, opType, body, false)
}

func runQuery(c *cli.Context, service, opType string, body any) error {
	return runRPC(c, service, opType, body, true)
}

func runRPC(c *cli.Context, service, opType string, body any, query bool) error {
	rpc := EnsureRPC(c)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		payload json.RawMessage
		err     error
	)
	if query {
		payload, err = rpc.Query(ctx, service, opType, body)
	} else {
		payload, err = rpc.Manage(ctx, service, opType, body)
	}
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	return printPayload(c, payload)
}

// printPayload renders a raw JSON result payload in the flag-selected
// output format. Table rendering falls back to JSON since the result
// shape varies per op-type and isn't known statically here.
func printPayload(c *cli.Context, payload json.RawMessage) error {
	if len(payload) == 0 {
		return nil
	}

	var data any
	if err := json.Unmarshal(payload, &data); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	flags := ParseGlobalFlags(c)
	switch output.Format(flags.Output) {
	case output.FormatYAML:
		return (&output.YAMLFormatter{}).Format(os.Stdout, data)
	case output.FormatTable:
		return (&output.JSONFormatter{}).Format(os.Stdout, data)
	default:
		return (&output.JSONFormatter{}).Format(os.Stdout, data)
	}
}
