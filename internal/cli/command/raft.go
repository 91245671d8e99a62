package command

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// RaftCommand returns the raft subcommand group, carried over
// raft_control (spec §6/§9): cluster membership and leadership
// administration for one of the co-resident Raft groups. Every
// subcommand takes --group to select which group it targets.
func RaftCommand() *cli.Command {
	return &cli.Command{
		Name:  "raft",
		Usage: "Administer a Raft group's membership and leadership",
		Subcommands: []*cli.Command{
			{
				Name:  "list-peers",
				Usage: "List a group's current Raft configuration",
				Flags: []cli.Flag{groupFlag()},
				Action: raftListPeers,
			},
			{
				Name:  "leader",
				Usage: "Show a group's current leader",
				Flags: []cli.Flag{groupFlag()},
				Action: raftLeader,
			},
			{
				Name:  "set-peers",
				Usage: "Apply a two-set membership change, or force a reset-peers",
				Flags: []cli.Flag{
					groupFlag(),
					&cli.StringSliceFlag{Name: "peer", Usage: "id=address, repeatable"},
					&cli.BoolFlag{Name: "force", Usage: "force reset-peers instead of a two-set change"},
				},
				Action: raftSetPeers,
			},
			{
				Name:  "transfer-leader",
				Usage: "Transfer leadership, optionally to a specific peer",
				Flags: []cli.Flag{
					groupFlag(),
					&cli.StringFlag{Name: "target-id"},
					&cli.StringFlag{Name: "target-address"},
				},
				Action: raftTransferLeader,
			},
			{
				Name:   "snapshot",
				Usage:  "Force an out-of-band snapshot",
				Flags:  []cli.Flag{groupFlag()},
				Action: raftSnapshot,
			},
			{
				Name:   "shutdown",
				Usage:  "Gracefully shut down a group's Raft node",
				Flags:  []cli.Flag{groupFlag()},
				Action: raftShutdown,
			},
		},
	}
}

func groupFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "group",
		Required: true,
		Usage:    "registry, autoid, tso, or plugin",
	}
}

func raftListPeers(c *cli.Context) error {
	return runQuery(c, "discovery", "raft.list_peers", map[string]any{"group": c.String("group")})
}

func raftLeader(c *cli.Context) error {
	return runQuery(c, "discovery", "raft.get_leader", map[string]any{"group": c.String("group")})
}

func raftSetPeers(c *cli.Context) error {
	peers, err := parsePeers(c.StringSlice("peer"))
	if err != nil {
		return err
	}
	req := map[string]any{
		"group": c.String("group"),
		"peers": peers,
		"force": c.Bool("force"),
	}
	return runManage(c, "discovery", "raft.set_peers", req)
}

func parsePeers(raw []string) ([]map[string]string, error) {
	out := make([]map[string]string, 0, len(raw))
	for _, p := range raw {
		var id, addr string
		n, err := fmt.Sscanf(p, "%[^=]=%s", &id, &addr)
		if err != nil || n != 2 {
			return nil, fmt.Errorf("invalid peer %q, expected id=address", p)
		}
		out = append(out, map[string]string{"id": id, "address": addr})
	}
	return out, nil
}

func raftTransferLeader(c *cli.Context) error {
	req := map[string]any{
		"group":          c.String("group"),
		"target_id":      c.String("target-id"),
		"target_address": c.String("target-address"),
	}
	return runManage(c, "discovery", "raft.transfer_leader", req)
}

func raftSnapshot(c *cli.Context) error {
	return runManage(c, "discovery", "raft.snapshot", map[string]any{"group": c.String("group")})
}

func raftShutdown(c *cli.Context) error {
	return runManage(c, "discovery", "raft.shutdown", map[string]any{"group": c.String("group")})
}
