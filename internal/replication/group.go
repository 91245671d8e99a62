package replication

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hashicorp/raft"

	"github.com/eadiscovery/discoveryd/internal/storage"
	"github.com/eadiscovery/discoveryd/internal/util/incrbuf"
	"github.com/eadiscovery/discoveryd/pkg/crypto/adaptive"
)

// changeLogGenSize bounds how many applied op-types incrbuf retains
// per generation before rolling, for the raft.changes_since query.
const changeLogGenSize = 4096

// Group is one co-resident Raft replication group: it wraps a
// *raft.Raft node, the shared storage.KVEngine "meta" namespace, a
// dispatch table routing committed entries to manager handlers, and
// the set of managers that must rebuild from a loaded snapshot.
//
// The same Group type instantiates every group the process runs
// (registry/privilege/config, auto-id, TSO, and — in the dedicated
// plugin-server process — plugin), differing only in their dispatch
// table and registered managers (spec §2 item 4).
type Group struct {
	Name string // "registry", "autoid", "tso", "plugin" — for logs/metrics

	raftNode *raft.Raft
	engine   storage.KVEngine
	dispatch Dispatcher
	logger   *slog.Logger

	loaders         []SnapshotLoader
	blobSnapshotter BlobSnapshotter
	cipher          adaptive.Cipher

	// changeLog lets a caller that last saw appliedIndex N ask for
	// every op-type applied since, instead of always replaying a full
	// snapshot (spec §4.8's incremental-change buffer).
	changeLog *incrbuf.Buffer[string]

	appliedIndex atomic.Uint64
	isLeader     atomic.Bool

	onBecomeLeader func()
	onStepDown     func()

	shutdownCh chan struct{}
}

// Deps bundles what NewGroup needs beyond the Raft bootstrap plumbing.
type Deps struct {
	Engine   storage.KVEngine
	Dispatch Dispatcher
	Loaders  []SnapshotLoader
	// BlobSnapshotter is set only for the plugin group.
	BlobSnapshotter BlobSnapshotter
	// Cipher, when set, seals the snapshot stream's KV dump and blob
	// data at rest and in transit between Raft peers (spec "security
	// at rest" config knob). Nil means snapshots are written plain.
	Cipher adaptive.Cipher
	Logger *slog.Logger

	// OnBecomeLeader/OnStepDown run the leader-hook side effects spec
	// §4.1 describes (the plugin group's bns/discovery watcher).
	OnBecomeLeader func()
	OnStepDown     func()
}

// NewGroup constructs a Group's FSM wiring. It does not attach a Raft
// node or start the leadership-observer goroutine: callers pass the
// *Group to BootstrapRaft, which builds the *raft.Raft around
// Group.FSM() and then calls Attach to record the node and start the
// watcher.
func NewGroup(name string, deps Deps) *Group {
	logger := newFSMLogger(deps.Logger)
	g := &Group{
		Name:            name,
		engine:          deps.Engine,
		dispatch:        deps.Dispatch,
		logger:          logger.With("group", name),
		loaders:         deps.Loaders,
		blobSnapshotter: deps.BlobSnapshotter,
		cipher:          deps.Cipher,
		changeLog:       incrbuf.New[string](changeLogGenSize),
		onBecomeLeader:  deps.OnBecomeLeader,
		onStepDown:      deps.OnStepDown,
		shutdownCh:      make(chan struct{}),
	}
	return g
}

// ChangesSince returns the op-type of every entry applied after
// lastSeenIndex, in index order, or reports needsFullResync if the
// change log no longer covers that point — the caller must fall back
// to a full snapshot reload instead of incremental replay.
func (g *Group) ChangesSince(lastSeenIndex uint64) (opTypes []string, needsFullResync bool) {
	needsFullResync = g.changeLog.Since(lastSeenIndex, func(c incrbuf.Change[string]) {
		opTypes = append(opTypes, c.Value)
	})
	return opTypes, needsFullResync
}

// FSM returns the raft.FSM adapter for this group, to be passed into
// raft.NewRaft.
func (g *Group) FSM() raft.FSM {
	return &fsm{g: g}
}

// Attach records the bootstrapped Raft node and starts the leadership
// watcher. Called once, immediately after raft.NewRaft succeeds.
func (g *Group) Attach(node *raft.Raft) {
	g.raftNode = node
	go g.watchLeadership()
}

func (g *Group) ctx() context.Context {
	return context.Background()
}

// IsLeader reports whether this replica believes itself to be the
// current leader for this group.
func (g *Group) IsLeader() bool {
	return g.isLeader.Load()
}

// AppliedIndex returns the highest Raft log index applied so far.
func (g *Group) AppliedIndex() uint64 {
	return g.appliedIndex.Load()
}

// LeaderAddr returns the best-effort current leader address, or "" if
// unknown.
func (g *Group) LeaderAddr() string {
	addr, _ := g.raftNode.LeaderWithID()
	return string(addr)
}

// watchLeadership runs for the lifetime of the group, firing the
// become-leader/step-down hooks spec §4.1 describes.
func (g *Group) watchLeadership() {
	ch := g.raftNode.LeaderCh()
	for {
		select {
		case leader, ok := <-ch:
			if !ok {
				return
			}
			g.isLeader.Store(leader)
			if leader {
				g.logger.Info("became leader")
				if g.onBecomeLeader != nil {
					g.onBecomeLeader()
				}
			} else {
				g.logger.Info("stepped down")
				if g.onStepDown != nil {
					g.onStepDown()
				}
			}
		case <-g.shutdownCh:
			return
		}
	}
}

// Close stops the leadership watcher. It does not shut down the
// underlying *raft.Raft — callers own that lifecycle via RaftControl.
func (g *Group) Close() {
	close(g.shutdownCh)
}

// Engine exposes the group's storage engine to managers that need
// direct read access outside of Apply (e.g. startup LoadSnapshot
// scans before the group attaches).
func (g *Group) Engine() storage.KVEngine {
	return g.engine
}

// waitShutdown polls a flag every 10ms so process exit bounds are
// predictable (spec §5 "usleep_fast_shutdown").
func waitShutdown(stop <-chan struct{}, timeout time.Duration) bool {
	deadline := time.After(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return true
		case <-deadline:
			return false
		case <-ticker.C:
		}
	}
}
