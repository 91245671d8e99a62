package command

import (
	"github.com/urfave/cli/v2"
)

// TSOCommand returns the tso subcommand group.
func TSOCommand() *cli.Command {
	return &cli.Command{
		Name:  "tso",
		Usage: "Generate timestamps from the timestamp oracle",
		Subcommands: []*cli.Command{
			{
				Name:  "gen",
				Usage: "Reserve one or more strictly increasing timestamps",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "count", Value: 1},
				},
				Action: tsoGen,
			},
		},
	}
}

func tsoGen(c *cli.Context) error {
	return runQuery(c, "tso", "tso.gen", map[string]any{"count": c.Uint64("count")})
}
