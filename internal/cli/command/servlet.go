package command

import (
	"github.com/urfave/cli/v2"
)

// ServletCommand returns the servlet subcommand group.
func ServletCommand() *cli.Command {
	return &cli.Command{
		Name:  "servlet",
		Usage: "Manage servlets",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a servlet",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "zone-id", Required: true},
					&cli.StringFlag{Name: "name", Required: true},
				},
				Action: servletCreate,
			},
			{
				Name:  "drop",
				Usage: "Drop a servlet",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "zone-id", Required: true},
					&cli.StringFlag{Name: "name", Required: true},
				},
				Action: servletDrop,
			},
			{
				Name:  "get",
				Usage: "Show a servlet",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "zone-id", Required: true},
					&cli.StringFlag{Name: "name", Required: true},
				},
				Action: servletGet,
			},
			{
				Name:  "list",
				Usage: "List servlets in a zone",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "zone-id", Required: true},
				},
				Action: servletList,
			},
			{
				Name:  "autoid",
				Usage: "Manage a servlet's auto-increment id counter",
				Subcommands: []*cli.Command{
					{
						Name:  "add",
						Usage: "Create the counter for a servlet",
						Flags: []cli.Flag{
							&cli.Uint64Flag{Name: "servlet-id", Required: true},
							&cli.Uint64Flag{Name: "start-id"},
						},
						Action: autoidAdd,
					},
					{
						Name:  "drop",
						Usage: "Delete a servlet's counter",
						Flags: []cli.Flag{
							&cli.Uint64Flag{Name: "servlet-id", Required: true},
						},
						Action: autoidDrop,
					},
					{
						Name:  "gen",
						Usage: "Reserve a range of ids",
						Flags: []cli.Flag{
							&cli.Uint64Flag{Name: "servlet-id", Required: true},
							&cli.Uint64Flag{Name: "count", Value: 1},
							&cli.Uint64Flag{Name: "start-id"},
						},
						Action: autoidGen,
					},
					{
						Name:  "update",
						Usage: "Adjust a counter's start id or increment",
						Flags: []cli.Flag{
							&cli.Uint64Flag{Name: "servlet-id", Required: true},
							&cli.Uint64Flag{Name: "start-id"},
							&cli.Uint64Flag{Name: "increment-id"},
							&cli.BoolFlag{Name: "force"},
						},
						Action: autoidUpdate,
					},
				},
			},
		},
	}
}

func autoidAdd(c *cli.Context) error {
	req := map[string]any{"servlet_id": c.Uint64("servlet-id"), "start_id": c.Uint64("start-id")}
	return runManage(c, "discovery", "autoid.add", req)
}

func autoidDrop(c *cli.Context) error {
	return runManage(c, "discovery", "autoid.drop", map[string]any{"servlet_id": c.Uint64("servlet-id")})
}

func autoidGen(c *cli.Context) error {
	req := map[string]any{"servlet_id": c.Uint64("servlet-id"), "count": c.Uint64("count")}
	if c.IsSet("start-id") {
		start := c.Uint64("start-id")
		req["start_id"] = &start
	}
	return runManage(c, "discovery", "autoid.gen", req)
}

func autoidUpdate(c *cli.Context) error {
	req := map[string]any{"servlet_id": c.Uint64("servlet-id"), "force": c.Bool("force")}
	if c.IsSet("start-id") {
		start := c.Uint64("start-id")
		req["start_id"] = &start
	}
	if c.IsSet("increment-id") {
		inc := c.Uint64("increment-id")
		req["increment_id"] = &inc
	}
	return runManage(c, "discovery", "autoid.update", req)
}

func servletCreate(c *cli.Context) error {
	req := map[string]any{
		"zone_id": c.Uint64("zone-id"),
		"name":    c.String("name"),
	}
	return runManage(c, "discovery", "servlet.create", req)
}

func servletDrop(c *cli.Context) error {
	req := map[string]any{
		"zone_id": c.Uint64("zone-id"),
		"name":    c.String("name"),
	}
	return runManage(c, "discovery", "servlet.drop", req)
}

func servletGet(c *cli.Context) error {
	req := map[string]any{
		"zone_id": c.Uint64("zone-id"),
		"name":    c.String("name"),
	}
	return runQuery(c, "discovery", "servlet.get", req)
}

func servletList(c *cli.Context) error {
	return runQuery(c, "discovery", "servlet.list", map[string]any{"zone_id": c.Uint64("zone-id")})
}
