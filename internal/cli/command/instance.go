package command

import (
	"github.com/urfave/cli/v2"
)

// InstanceCommand returns the instance subcommand group.
func InstanceCommand() *cli.Command {
	return &cli.Command{
		Name:  "instance",
		Usage: "Manage service instances",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Register a service instance",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "address", Required: true},
					&cli.StringFlag{Name: "namespace", Required: true},
					&cli.StringFlag{Name: "zone", Required: true},
					&cli.StringFlag{Name: "servlet", Required: true},
					&cli.StringFlag{Name: "env"},
					&cli.StringFlag{Name: "color"},
					&cli.StringFlag{Name: "status", Value: "up"},
					&cli.IntFlag{Name: "weight", Value: 100},
				},
				Action: instanceAdd,
			},
			{
				Name:      "drop",
				Usage:     "Remove a service instance",
				ArgsUsage: "<address>",
				Action:    instanceDrop,
			},
			{
				Name:      "get",
				Usage:     "Show a service instance",
				ArgsUsage: "<address>",
				Action:    instanceGet,
			},
			{
				Name:  "list",
				Usage: "List service instances, optionally scoped to a namespace/zone/servlet",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "namespace-id"},
					&cli.Uint64Flag{Name: "zone-id"},
					&cli.Uint64Flag{Name: "servlet-id"},
				},
				Action: instanceList,
			},
		},
	}
}

func instanceAdd(c *cli.Context) error {
	req := map[string]any{
		"address":   c.String("address"),
		"namespace": c.String("namespace"),
		"zone":      c.String("zone"),
		"servlet":   c.String("servlet"),
		"env":       c.String("env"),
		"color":     c.String("color"),
		"status":    c.String("status"),
		"weight":    c.Int("weight"),
	}
	return runManage(c, "discovery", "instance.add", req)
}

func instanceDrop(c *cli.Context) error {
	return runManage(c, "discovery", "instance.drop", c.Args().First())
}

func instanceGet(c *cli.Context) error {
	return runQuery(c, "discovery", "instance.get", c.Args().First())
}

func instanceList(c *cli.Context) error {
	req := map[string]any{}
	if c.IsSet("servlet-id") {
		req["namespace_id"] = c.Uint64("namespace-id")
		req["zone_id"] = c.Uint64("zone-id")
		req["servlet_id"] = c.Uint64("servlet-id")
	} else if c.IsSet("zone-id") {
		req["namespace_id"] = c.Uint64("namespace-id")
		req["zone_id"] = c.Uint64("zone-id")
	} else if c.IsSet("namespace-id") {
		req["namespace_id"] = c.Uint64("namespace-id")
	}
	return runQuery(c, "discovery", "instance.list", req)
}
