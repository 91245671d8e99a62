package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// ConfigBlobCommand returns the config subcommand group for the
// versioned configuration blob store (spec §4.3) — distinct from
// SettingsCommand, which manages this CLI's own and the server's
// admin-facing configuration.
func ConfigBlobCommand() *cli.Command {
	return &cli.Command{
		Name:  "confblob",
		Usage: "Manage versioned configuration blobs",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Publish a new (name, version) configuration blob",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "version", Required: true, Usage: "semver, e.g. 1.2.0"},
					&cli.StringFlag{Name: "file", Required: true, Usage: "path to the blob contents"},
				},
				Action: confblobCreate,
			},
			{
				Name:  "remove",
				Usage: "Remove a configuration version, or every version of a name",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "version", Usage: "omit to remove every version of name"},
				},
				Action: confblobRemove,
			},
			{
				Name:  "get",
				Usage: "Fetch a configuration blob",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "version", Usage: "omit for the latest version"},
				},
				Action: confblobGet,
			},
			{
				Name:   "list",
				Usage:  "List every known configuration name",
				Action: confblobList,
			},
			{
				Name:  "list-versions",
				Usage: "List the versions published under a name",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
				},
				Action: confblobListVersions,
			},
		},
	}
}

func confblobCreate(c *cli.Context) error {
	blob, err := os.ReadFile(c.String("file"))
	if err != nil {
		return fmt.Errorf("reading %s: %w", c.String("file"), err)
	}
	req := map[string]any{
		"name":    c.String("name"),
		"version": c.String("version"),
		"blob":    blob,
	}
	return runManage(c, "config", "config.create", req)
}

func confblobRemove(c *cli.Context) error {
	name := c.String("name")
	version := c.String("version")
	if version == "" {
		return runManage(c, "config", "config.remove_name", map[string]any{"name": name})
	}
	return runManage(c, "config", "config.remove_version", map[string]any{"name": name, "version": version})
}

func confblobGet(c *cli.Context) error {
	req := map[string]any{"name": c.String("name"), "version": c.String("version")}
	return runQuery(c, "config", "config.get", req)
}

func confblobList(c *cli.Context) error {
	return runQuery(c, "config", "config.list", nil)
}

func confblobListVersions(c *cli.Context) error {
	return runQuery(c, "config", "config.list_versions", map[string]any{"name": c.String("name")})
}
