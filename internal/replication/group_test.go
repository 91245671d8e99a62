package replication

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hashicorp/raft"

	"github.com/eadiscovery/discoveryd/internal/storage"
)

// fakeEngine is a minimal in-memory storage.KVEngine for tests that
// don't need Badger's durability, just the KVEngine contract.
type fakeEngine struct {
	data map[string][]byte
}

func newFakeEngine() *fakeEngine { return &fakeEngine{data: make(map[string][]byte)} }

func (f *fakeEngine) Get(ctx context.Context, key []byte) ([]byte, error) {
	v, ok := f.data[string(key)]
	if !ok {
		return nil, storage.ErrKeyNotFound
	}
	return v, nil
}
func (f *fakeEngine) Set(ctx context.Context, key, value []byte) error {
	f.data[string(key)] = value
	return nil
}
func (f *fakeEngine) Delete(ctx context.Context, key []byte) error {
	delete(f.data, string(key))
	return nil
}
func (f *fakeEngine) WriteBatch(ctx context.Context, ops []storage.KVOp) error {
	for _, op := range ops {
		if op.Value == nil {
			delete(f.data, string(op.Key))
			continue
		}
		f.data[string(op.Key)] = op.Value
	}
	return nil
}
func (f *fakeEngine) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	for k, v := range f.data {
		if len(k) < len(prefix) || k[:len(prefix)] != string(prefix) {
			continue
		}
		if !fn([]byte(k), v) {
			break
		}
	}
	return nil
}
func (f *fakeEngine) DeletePrefix(ctx context.Context, prefix []byte) error {
	for k := range f.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == string(prefix) {
			delete(f.data, k)
		}
	}
	return nil
}
func (f *fakeEngine) SaveSnapshot(ctx context.Context) (io.ReadCloser, error) {
	return nil, nil
}
func (f *fakeEngine) LoadSnapshot(ctx context.Context, r io.Reader) error {
	return nil
}
func (f *fakeEngine) GC(ctx context.Context) (uint64, error)    { return 0, nil }
func (f *fakeEngine) Stats(ctx context.Context) (*storage.KVStats, error) {
	return &storage.KVStats{}, nil
}
func (f *fakeEngine) Close() error { return nil }

type setPayload struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func newSingleNodeGroup(t *testing.T, name string, engine storage.KVEngine, dispatch Dispatcher) (*Group, *raft.Raft) {
	t.Helper()

	group := NewGroup(name, Deps{
		Engine:   engine,
		Dispatch: dispatch,
		Logger:   slog.Default(),
	})

	store := raft.NewInmemStore()
	snapStore := raft.NewInmemSnapshotStore()
	_, transport := raft.NewInmemTransport("node1")

	cfg := raft.DefaultConfig()
	cfg.LocalID = "node1"
	cfg.HeartbeatTimeout = 50 * time.Millisecond
	cfg.ElectionTimeout = 50 * time.Millisecond
	cfg.LeaderLeaseTimeout = 50 * time.Millisecond
	cfg.CommitTimeout = 5 * time.Millisecond

	node, err := raft.NewRaft(cfg, group.FSM(), store, store, snapStore, transport)
	if err != nil {
		t.Fatalf("new raft: %v", err)
	}

	future := node.BootstrapCluster(raft.Configuration{
		Servers: []raft.Server{{ID: "node1", Address: transport.LocalAddr()}},
	})
	if err := future.Error(); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	group.Attach(node)

	deadline := time.After(3 * time.Second)
	for !group.IsLeader() {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for leadership")
		case <-time.After(10 * time.Millisecond):
		}
	}

	t.Cleanup(func() {
		group.Close()
		node.Shutdown()
	})

	return group, node
}

func TestGroupSubmitAppliesAndStores(t *testing.T) {
	engine := newFakeEngine()

	dispatch := Dispatcher{
		"SET": func(index uint64, payload []byte) ([]byte, error) {
			var p setPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return nil, err
			}
			key := storage.WithPrefix(storage.PrefixMeta, []byte(p.Key))
			if err := engine.Set(context.Background(), key, []byte(p.Value)); err != nil {
				return nil, err
			}
			return []byte("ok"), nil
		},
	}

	group, _ := newSingleNodeGroup(t, "test", engine, dispatch)

	payload, _ := json.Marshal(setPayload{Key: "a", Value: "1"})
	resp, err := group.Submit("SET", payload)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if string(resp) != "ok" {
		t.Errorf("expected ok response, got %s", resp)
	}

	got, err := engine.Get(context.Background(), storage.WithPrefix(storage.PrefixMeta, []byte("a")))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "1" {
		t.Errorf("expected value 1, got %s", got)
	}

	if group.AppliedIndex() == 0 {
		t.Error("expected applied index to advance")
	}
}

func TestGroupSubmitUnknownOpType(t *testing.T) {
	engine := newFakeEngine()
	group, _ := newSingleNodeGroup(t, "test", engine, Dispatcher{})

	_, err := group.Submit("NOPE", []byte(`{}`))
	if err == nil {
		t.Fatal("expected error for unknown op type")
	}
}

func TestGroupNotLeaderBeforeAttach(t *testing.T) {
	engine := newFakeEngine()
	group := NewGroup("unattached", Deps{Engine: engine, Dispatch: Dispatcher{}, Logger: slog.Default()})

	if group.IsLeader() {
		t.Fatal("expected not leader before Attach")
	}
}
