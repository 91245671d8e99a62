package tso

import (
	"context"
	"io"
	"testing"

	"github.com/eadiscovery/discoveryd/internal/storage"
)

type memEngine struct {
	data map[string][]byte
}

func newMemEngine() *memEngine { return &memEngine{data: make(map[string][]byte)} }

func (e *memEngine) Get(ctx context.Context, key []byte) ([]byte, error) {
	v, ok := e.data[string(key)]
	if !ok {
		return nil, storage.ErrKeyNotFound
	}
	return v, nil
}
func (e *memEngine) Set(ctx context.Context, key, value []byte) error {
	e.data[string(key)] = value
	return nil
}
func (e *memEngine) Delete(ctx context.Context, key []byte) error {
	delete(e.data, string(key))
	return nil
}
func (e *memEngine) WriteBatch(ctx context.Context, ops []storage.KVOp) error {
	for _, op := range ops {
		if op.Value == nil {
			delete(e.data, string(op.Key))
			continue
		}
		e.data[string(op.Key)] = op.Value
	}
	return nil
}
func (e *memEngine) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	for k, v := range e.data {
		if len(k) < len(prefix) || k[:len(prefix)] != string(prefix) {
			continue
		}
		if !fn([]byte(k), v) {
			break
		}
	}
	return nil
}
func (e *memEngine) DeletePrefix(ctx context.Context, prefix []byte) error {
	for k := range e.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == string(prefix) {
			delete(e.data, k)
		}
	}
	return nil
}
func (e *memEngine) SaveSnapshot(ctx context.Context) (io.ReadCloser, error) {
	return nil, nil
}
func (e *memEngine) LoadSnapshot(ctx context.Context, r io.Reader) error {
	return nil
}
func (e *memEngine) GC(ctx context.Context) (uint64, error) { return 0, nil }
func (e *memEngine) Stats(ctx context.Context) (*storage.KVStats, error) {
	return &storage.KVStats{}, nil
}
func (e *memEngine) Close() error { return nil }

// loopbackSubmit applies the payload directly against handler, as a
// single-node Raft group would after committing it to every replica.
func loopbackSubmit(m *Manager) func(string, []byte) ([]byte, error) {
	return func(opType string, payload []byte) ([]byte, error) {
		return m.handleUpdateSavedPhysical(0, payload)
	}
}

func TestGenTSONotPrimedUntilFirstTick(t *testing.T) {
	m := New(newMemEngine())
	if _, err := m.GenTSO(1); err == nil {
		t.Fatal("expected error before first tick primes the clock")
	}
}

func TestTickPrimesAndGenTSOAdvancesLogical(t *testing.T) {
	m := New(newMemEngine())
	m.now = func() int64 { return 1000 }

	if err := m.Tick(loopbackSubmit(m)); err != nil {
		t.Fatalf("tick: %v", err)
	}
	r1, err := m.GenTSO(5)
	if err != nil {
		t.Fatal(err)
	}
	if r1.Logical != 0 {
		t.Fatalf("expected first gen logical=0, got %d", r1.Logical)
	}
	r2, err := m.GenTSO(3)
	if err != nil {
		t.Fatal(err)
	}
	if r2.Logical != 5 {
		t.Fatalf("expected second gen logical=5, got %d", r2.Logical)
	}
	if r1.Physical != r2.Physical {
		t.Fatal("expected physical unchanged between gens within the same tick")
	}
}

func TestGenTSORejectsLogicalOverflow(t *testing.T) {
	m := New(newMemEngine())
	m.now = func() int64 { return 1000 }
	if err := m.Tick(loopbackSubmit(m)); err != nil {
		t.Fatal(err)
	}
	if _, err := m.GenTSO(maxLogical + 1); err == nil {
		t.Fatal("expected overflow to be rejected")
	}
}

func TestTickExtendsSavedBoundOnlyWhenNeeded(t *testing.T) {
	m := New(newMemEngine())
	calls := 0
	wrapped := func(opType string, payload []byte) ([]byte, error) {
		calls++
		return m.handleUpdateSavedPhysical(0, payload)
	}

	m.now = func() int64 { return 1000 }
	if err := m.Tick(wrapped); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("expected first tick to extend the bound, got %d calls", calls)
	}

	// Second tick stays well within the 3000ms extension, so it must
	// not submit another Raft entry.
	m.now = func() int64 { return 1001 }
	if err := m.Tick(wrapped); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("expected second tick to skip the Raft round trip, got %d calls", calls)
	}
}

func TestLoadSnapshotResyncsFromSavedBound(t *testing.T) {
	engine := newMemEngine()
	m := New(engine)
	m.now = func() int64 { return 5000 }
	if err := m.Tick(loopbackSubmit(m)); err != nil {
		t.Fatal(err)
	}

	fresh := New(engine)
	if err := fresh.LoadSnapshot(); err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if _, err := fresh.GenTSO(1); err == nil {
		t.Fatal("expected fresh manager to require a Tick before GenTSO, even after LoadSnapshot")
	}
	if fresh.savedPhysical != 5000+extendMS {
		t.Fatalf("expected saved bound to survive reload, got %d", fresh.savedPhysical)
	}
}
