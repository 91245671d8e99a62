package replication

import (
	"encoding/json"
	"io"
	"log/slog"

	"github.com/hashicorp/raft"

	"github.com/eadiscovery/discoveryd/internal/errcode"
)

// SnapshotLoader is implemented by every manager attached to a Group:
// after a snapshot's meta rows have been ingested into the store, the
// Group calls LoadSnapshot on each registered manager so it can scan
// its own key prefix and rebuild in-memory maps and derived indexes.
type SnapshotLoader interface {
	LoadSnapshot() error
}

// BlobSnapshotter is implemented only by the plugin group: it
// additionally materializes binary artifact files alongside the meta
// column-family dump (spec §4.1, §4.4).
type BlobSnapshotter interface {
	// SnapshotBlobs writes every live and tombstoned blob's metadata
	// and content to w, appended after the KV dump.
	SnapshotBlobs(w io.Writer) error
	// RestoreBlobs reads blob entries written by SnapshotBlobs and
	// materializes them in the local data root, skipping any blob
	// that already exists with the same size.
	RestoreBlobs(r io.Reader) error
}

// fsm adapts a Group to raft.FSM.
type fsm struct {
	g *Group
}

var _ raft.FSM = (*fsm)(nil)

// Apply decodes one committed log entry and dispatches it to the
// registered handler for its op-type. A decode failure or unknown
// op-type is reported in the ApplyResult but still counts as applied
// — it must never stall the replica or subsequent entries.
func (f *fsm) Apply(log *raft.Log) interface{} {
	var env Envelope
	if err := json.Unmarshal(log.Data, &env); err != nil {
		f.g.logger.Error("apply: decode failed", "index", log.Index, "error", err)
		f.g.appliedIndex.Store(log.Index)
		return &ApplyResult{Err: errcode.New(errcode.PARSE_FROM_PB_FAIL, err.Error())}
	}

	handler, ok := f.g.dispatch[env.OpType]
	if !ok {
		f.g.logger.Warn("apply: unknown op type", "index", log.Index, "op_type", env.OpType)
		f.g.appliedIndex.Store(log.Index)
		return &ApplyResult{Err: errcode.New(errcode.UNKNOWN_REQ_TYPE, "unknown op type: "+env.OpType)}
	}

	resp, err := handler(log.Index, env.Payload)
	f.g.appliedIndex.Store(log.Index)
	f.g.changeLog.Append(log.Index, env.OpType)
	return &ApplyResult{Response: resp, Err: err}
}

// Snapshot returns a Snapshotter that, when Persist is called by
// Raft's snapshot runner (on its own worker), dumps the "meta" column
// family and — for groups with a BlobSnapshotter — every plugin blob.
func (f *fsm) Snapshot() (raft.FSMSnapshot, error) {
	return &fsmSnapshot{g: f.g}, nil
}

// Restore rebuilds state from a snapshot stream: range-delete the
// meta column family, ingest the dumped rows, materialize blobs (if
// any), then ask every registered manager to reload from the now
// current store contents.
func (f *fsm) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	return f.g.restoreFromSnapshot(rc)
}

func newFSMLogger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
