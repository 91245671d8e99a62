package command

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// ZoneCommand returns the zone subcommand group.
func ZoneCommand() *cli.Command {
	return &cli.Command{
		Name:  "zone",
		Usage: "Manage zones",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a zone",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "namespace-id", Required: true},
					&cli.StringFlag{Name: "name", Required: true},
					&cli.Int64Flag{Name: "quota"},
				},
				Action: zoneCreate,
			},
			{
				Name:  "modify",
				Usage: "Modify a zone",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "namespace-id", Required: true},
					&cli.StringFlag{Name: "name", Required: true},
					&cli.Int64Flag{Name: "quota"},
				},
				Action: zoneModify,
			},
			{
				Name:  "drop",
				Usage: "Drop a zone",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "namespace-id", Required: true},
					&cli.StringFlag{Name: "name", Required: true},
				},
				Action: zoneDrop,
			},
			{
				Name:  "get",
				Usage: "Show a zone",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "namespace-id", Required: true},
					&cli.StringFlag{Name: "name", Required: true},
				},
				Action: zoneGet,
			},
			{
				Name:  "list",
				Usage: "List zones in a namespace",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "namespace-id", Required: true},
				},
				Action: zoneList,
			},
		},
	}
}

func zoneCreate(c *cli.Context) error {
	req := map[string]any{
		"namespace_id": c.Uint64("namespace-id"),
		"name":         c.String("name"),
		"quota":        c.Int64("quota"),
	}
	return runManage(c, "discovery", "zone.create", req)
}

func zoneModify(c *cli.Context) error {
	req := map[string]any{
		"namespace_id": c.Uint64("namespace-id"),
		"name":         c.String("name"),
	}
	if c.IsSet("quota") {
		req["quota"] = c.Int64("quota")
	}
	return runManage(c, "discovery", "zone.modify", req)
}

func zoneDrop(c *cli.Context) error {
	req := map[string]any{
		"namespace_id": c.Uint64("namespace-id"),
		"name":         c.String("name"),
	}
	return runManage(c, "discovery", "zone.drop", req)
}

func zoneGet(c *cli.Context) error {
	req := map[string]any{
		"namespace_id": c.Uint64("namespace-id"),
		"name":         c.String("name"),
	}
	return runQuery(c, "discovery", "zone.get", req)
}

func zoneList(c *cli.Context) error {
	if !c.IsSet("namespace-id") {
		return fmt.Errorf("--namespace-id is required")
	}
	return runQuery(c, "discovery", "zone.list", map[string]any{"namespace_id": c.Uint64("namespace-id")})
}
