package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
)

// PrivilegeCommand returns the privilege subcommand group.
func PrivilegeCommand() *cli.Command {
	return &cli.Command{
		Name:  "privilege",
		Usage: "Manage user privileges",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.Uint64Flag{Name: "namespace-id", Required: true},
				},
				Action: privilegeCreate,
			},
			{
				Name:  "grant",
				Usage: "Grant rights to a user",
				Flags: grantRevokeFlags(),
				Action: privilegeGrant,
			},
			{
				Name:  "revoke",
				Usage: "Revoke rights from a user",
				Flags: grantRevokeFlags(),
				Action: privilegeRevoke,
			},
			{
				Name:      "drop",
				Usage:     "Drop a user",
				ArgsUsage: "<username>",
				Action:    privilegeDrop,
			},
			{
				Name:      "get",
				Usage:     "Show a user's rights",
				ArgsUsage: "<username>",
				Action:    privilegeGet,
			},
		},
	}
}

func grantRevokeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "username", Required: true},
		&cli.StringSliceFlag{Name: "zone", Usage: "zone_id:rw, e.g. 3:write, repeatable"},
		&cli.StringSliceFlag{Name: "servlet", Usage: "servlet_id:rw, e.g. 7:read, repeatable"},
		&cli.StringSliceFlag{Name: "ip-allow", Usage: "allow-listed ip or cidr, repeatable"},
		&cli.StringSliceFlag{Name: "flag", Usage: "auth flag name, repeatable"},
		&cli.BoolFlag{Name: "force", Usage: "overwrite rather than merge (grant only)"},
	}
}

// parseRWPairs turns ["3:write", "7:read"] into {3: 2, 7: 1}.
func parseRWPairs(pairs []string) (map[uint64]int, error) {
	out := make(map[uint64]int, len(pairs))
	for _, pair := range pairs {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid id:rw pair %q", pair)
		}
		id, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id in %q: %w", pair, err)
		}
		var rw int
		switch strings.ToLower(parts[1]) {
		case "none":
			rw = 0
		case "read", "r":
			rw = 1
		case "write", "rw", "w":
			rw = 2
		default:
			return nil, fmt.Errorf("invalid rw level %q in %q, expected none|read|write", parts[1], pair)
		}
		out[id] = rw
	}
	return out, nil
}

func privilegeCreate(c *cli.Context) error {
	req := map[string]any{
		"username":     c.String("username"),
		"password":     c.String("password"),
		"namespace_id": c.Uint64("namespace-id"),
	}
	return runManage(c, "discovery", "privilege.create", req)
}

func privilegeGrant(c *cli.Context) error {
	zones, err := parseRWPairs(c.StringSlice("zone"))
	if err != nil {
		return err
	}
	servlets, err := parseRWPairs(c.StringSlice("servlet"))
	if err != nil {
		return err
	}
	req := map[string]any{
		"username": c.String("username"),
		"zones":    zones,
		"servlets": servlets,
		"ip_allow": c.StringSlice("ip-allow"),
		"flags":    c.StringSlice("flag"),
		"force":    c.Bool("force"),
	}
	return runManage(c, "discovery", "privilege.grant", req)
}

func privilegeRevoke(c *cli.Context) error {
	zones, err := parseRWPairs(c.StringSlice("zone"))
	if err != nil {
		return err
	}
	servlets, err := parseRWPairs(c.StringSlice("servlet"))
	if err != nil {
		return err
	}
	req := map[string]any{
		"username": c.String("username"),
		"zones":    zones,
		"servlets": servlets,
		"ip_allow": c.StringSlice("ip-allow"),
		"flags":    c.StringSlice("flag"),
	}
	return runManage(c, "discovery", "privilege.revoke", req)
}

func privilegeDrop(c *cli.Context) error {
	return runManage(c, "discovery", "privilege.drop", c.Args().First())
}

func privilegeGet(c *cli.Context) error {
	return runQuery(c, "discovery", "privilege.get", c.Args().First())
}
