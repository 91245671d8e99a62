package replication

import (
	"fmt"

	"github.com/hashicorp/raft"
)

// PeerInfo describes one member of a group's Raft configuration, for
// ListPeer responses.
type PeerInfo struct {
	ID       string
	Address  string
	Suffrage string
}

// SetPeer reconciles the configuration with newPeers: every server in
// newPeers that is not yet a member is added as a voter, one at a time,
// then every current member missing from newPeers is removed.
//
// Open Question 2 (see DESIGN.md): when removing a peer, reject the
// removal if the peer being removed is healthy and any other peer is
// currently faulty, since removing a healthy voter while the
// remaining set is degraded can push the group below quorum. This
// group does not independently track peer health, so the guard runs
// only when the caller passes healthCheck; a nil healthCheck or
// force=true skips it. The raft_control RPC handler (rpcserver's
// raftSetPeers) passes nil, so removals made through it are not
// guarded.
func (g *Group) SetPeer(newPeers []raft.Server, force bool, healthCheck func(id raft.ServerID) (healthy bool)) error {
	current, err := g.raftNode.GetConfiguration()
	if err != nil {
		return fmt.Errorf("replication: get configuration: %w", err)
	}

	existing := make(map[raft.ServerID]raft.Server, len(current.Configuration().Servers))
	for _, s := range current.Configuration().Servers {
		existing[s.ID] = s
	}

	wanted := make(map[raft.ServerID]raft.Server, len(newPeers))
	for _, s := range newPeers {
		wanted[s.ID] = s
	}

	for id, s := range wanted {
		if _, ok := existing[id]; !ok {
			if err := g.raftNode.AddVoter(s.ID, s.Address, 0, 0).Error(); err != nil {
				return fmt.Errorf("replication: add voter %s: %w", id, err)
			}
		}
	}

	for id := range existing {
		if _, ok := wanted[id]; ok {
			continue
		}
		// force skips the health guard entirely — this is the
		// "forced reset-peers" path for recovering a group whose
		// quorum the normal two-set change can no longer reach.
		if !force && healthCheck != nil {
			anyFaulty := false
			for otherID := range existing {
				if otherID == id {
					continue
				}
				if !healthCheck(otherID) {
					anyFaulty = true
					break
				}
			}
			if anyFaulty && healthCheck(id) {
				return fmt.Errorf("replication: refusing to remove healthy peer %s while another peer is faulty", id)
			}
		}
		if err := g.raftNode.RemoveServer(id, 0, 0).Error(); err != nil {
			return fmt.Errorf("replication: remove server %s: %w", id, err)
		}
	}

	return nil
}

// TransLeader requests a leadership transfer, optionally to a
// specific target server.
func (g *Group) TransLeader(target raft.ServerID, targetAddr raft.ServerAddress) error {
	if target == "" {
		return g.raftNode.LeadershipTransfer().Error()
	}
	return g.raftNode.LeadershipTransferToServer(target, targetAddr).Error()
}

// SnapShot forces an out-of-band snapshot.
func (g *Group) SnapShot() error {
	return g.raftNode.Snapshot().Error()
}

// ShutDown gracefully shuts down this group's Raft node.
func (g *Group) ShutDown() error {
	g.Close()
	return g.raftNode.Shutdown().Error()
}

// GetLeader returns the best-effort current leader address and ID.
func (g *Group) GetLeader() (addr string, id string) {
	a, i := g.raftNode.LeaderWithID()
	return string(a), string(i)
}

// ListPeer returns every server in the current Raft configuration.
func (g *Group) ListPeer() ([]PeerInfo, error) {
	future := g.raftNode.GetConfiguration()
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("replication: get configuration: %w", err)
	}
	servers := future.Configuration().Servers
	out := make([]PeerInfo, 0, len(servers))
	for _, s := range servers {
		out = append(out, PeerInfo{
			ID:       string(s.ID),
			Address:  string(s.Address),
			Suffrage: suffrageString(s.Suffrage),
		})
	}
	return out, nil
}

// ResetVoteTime best-effort nudges this node away from calling an
// election for one more election timeout window.
//
// hashicorp/raft does not expose a direct "reset election timer"
// primitive (unlike the reference's vote-timer reset), so this is
// approximated by issuing a leadership-transfer-less no-op: a
// VerifyLeader check if we are leader (which itself resets follower
// timers via the resulting heartbeat), otherwise this is a no-op.
// Documented deviation — see DESIGN.md.
func (g *Group) ResetVoteTime() error {
	if g.IsLeader() {
		return g.raftNode.VerifyLeader().Error()
	}
	return nil
}

func suffrageString(s raft.ServerSuffrage) string {
	switch s {
	case raft.Voter:
		return "voter"
	case raft.Nonvoter:
		return "nonvoter"
	case raft.Staging:
		return "staging"
	default:
		return "unknown"
	}
}

// ApplyTimeout is exposed for callers that need to size their own
// outer RPC deadline around Submit.
const ApplyTimeout = DefaultSubmitTimeout
