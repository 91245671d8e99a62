package replication

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/eadiscovery/discoveryd/internal/storage"
	snapshotcrypt "github.com/eadiscovery/discoveryd/internal/storage/snapshot"
)

// memSink is a minimal raft.SnapshotSink backed by a bytes.Buffer, for
// testing fsmSnapshot.Persist without a real FileSnapshotStore.
type memSink struct {
	bytes.Buffer
	id        string
	cancelled bool
}

func (s *memSink) ID() string   { return s.id }
func (s *memSink) Cancel() error { s.cancelled = true; return nil }
func (s *memSink) Close() error  { return nil }

type recordingLoader struct {
	loaded bool
}

func (r *recordingLoader) LoadSnapshot() error {
	r.loaded = true
	return nil
}

func TestSnapshotPersistAndRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	engine := newFakeEngine()

	keys := map[string]string{"alpha": "1", "beta": "2", "gamma": "3"}
	for k, v := range keys {
		if err := engine.Set(ctx, storage.WithPrefix(storage.PrefixMeta, []byte(k)), []byte(v)); err != nil {
			t.Fatal(err)
		}
	}

	loader := &recordingLoader{}
	group := NewGroup("test", Deps{
		Engine:   engine,
		Dispatch: Dispatcher{},
		Loaders:  []SnapshotLoader{loader},
		Logger:   slog.Default(),
	})

	snap := &fsmSnapshot{g: group}
	sink := &memSink{id: "snap-1"}
	if err := snap.Persist(sink); err != nil {
		t.Fatalf("persist: %v", err)
	}

	// Wipe the store, then restore from the persisted bytes.
	dstEngine := newFakeEngine()
	group2 := NewGroup("test", Deps{
		Engine:   dstEngine,
		Dispatch: Dispatcher{},
		Loaders:  []SnapshotLoader{loader},
		Logger:   slog.Default(),
	})

	if err := group2.restoreFromSnapshot(bytes.NewReader(sink.Bytes())); err != nil {
		t.Fatalf("restore: %v", err)
	}

	for k, v := range keys {
		got, err := dstEngine.Get(ctx, storage.WithPrefix(storage.PrefixMeta, []byte(k)))
		if err != nil {
			t.Fatalf("get %s: %v", k, err)
		}
		if string(got) != v {
			t.Errorf("key %s: expected %s, got %s", k, v, got)
		}
	}

	if !loader.loaded {
		t.Error("expected LoadSnapshot to be called on registered manager")
	}
}

func TestSnapshotRestoreRejectsBadMagic(t *testing.T) {
	group := NewGroup("test", Deps{
		Engine:   newFakeEngine(),
		Dispatch: Dispatcher{},
		Logger:   slog.Default(),
	})

	err := group.restoreFromSnapshot(bytes.NewReader([]byte("not-a-snapshot-stream-of-any-kind")))
	if err == nil {
		t.Fatal("expected error for bad magic")
	}
}

type fakeBlobSnapshotter struct {
	snapshotCalled bool
	restoreCalled  bool
}

func (b *fakeBlobSnapshotter) SnapshotBlobs(w io.Writer) error {
	b.snapshotCalled = true
	_, err := w.Write([]byte("BLOBMARK"))
	return err
}

func (b *fakeBlobSnapshotter) RestoreBlobs(r io.Reader) error {
	b.restoreCalled = true
	buf := make([]byte, 8)
	_, err := r.Read(buf)
	return err
}

func TestSnapshotIncludesBlobsForPluginLikeGroups(t *testing.T) {
	ctx := context.Background()
	engine := newFakeEngine()
	if err := engine.Set(ctx, storage.WithPrefix(storage.PrefixMeta, []byte("k")), []byte("v")); err != nil {
		t.Fatal(err)
	}

	blobs := &fakeBlobSnapshotter{}
	group := NewGroup("plugin", Deps{
		Engine:          engine,
		Dispatch:        Dispatcher{},
		BlobSnapshotter: blobs,
		Logger:          slog.Default(),
	})

	snap := &fsmSnapshot{g: group}
	sink := &memSink{id: "snap-plugin"}
	if err := snap.Persist(sink); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if !blobs.snapshotCalled {
		t.Error("expected SnapshotBlobs to be called")
	}

	dstEngine := newFakeEngine()
	group2 := NewGroup("plugin", Deps{
		Engine:          dstEngine,
		Dispatch:        Dispatcher{},
		BlobSnapshotter: blobs,
		Logger:          slog.Default(),
	})
	if err := group2.restoreFromSnapshot(bytes.NewReader(sink.Bytes())); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !blobs.restoreCalled {
		t.Error("expected RestoreBlobs to be called")
	}
}

func TestSnapshotEncryptedRoundTrip(t *testing.T) {
	ctx := context.Background()
	engine := newFakeEngine()
	keys := map[string]string{"alpha": "1", "beta": "2"}
	for k, v := range keys {
		if err := engine.Set(ctx, storage.WithPrefix(storage.PrefixMeta, []byte(k)), []byte(v)); err != nil {
			t.Fatal(err)
		}
	}

	cipher, _, err := snapshotcrypt.NewCipherFromConfig(snapshotcrypt.EncryptionConfig{Key: make([]byte, 32)})
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}

	group := NewGroup("test", Deps{
		Engine:   engine,
		Dispatch: Dispatcher{},
		Cipher:   cipher,
		Logger:   slog.Default(),
	})

	snap := &fsmSnapshot{g: group}
	sink := &memSink{id: "snap-enc"}
	if err := snap.Persist(sink); err != nil {
		t.Fatalf("persist: %v", err)
	}

	// The meta key names must not appear in plaintext in the sealed stream.
	if bytes.Contains(sink.Bytes(), []byte("alpha")) {
		t.Error("expected snapshot body to be encrypted, found plaintext key")
	}

	dstEngine := newFakeEngine()
	group2 := NewGroup("test", Deps{
		Engine:   dstEngine,
		Dispatch: Dispatcher{},
		Cipher:   cipher,
		Logger:   slog.Default(),
	})
	if err := group2.restoreFromSnapshot(bytes.NewReader(sink.Bytes())); err != nil {
		t.Fatalf("restore: %v", err)
	}
	for k, v := range keys {
		got, err := dstEngine.Get(ctx, storage.WithPrefix(storage.PrefixMeta, []byte(k)))
		if err != nil {
			t.Fatalf("get %s: %v", k, err)
		}
		if string(got) != v {
			t.Errorf("key %s: expected %s, got %s", k, v, got)
		}
	}
}

func TestSnapshotRestoreEncryptedWithoutCipherFails(t *testing.T) {
	ctx := context.Background()
	engine := newFakeEngine()
	if err := engine.Set(ctx, storage.WithPrefix(storage.PrefixMeta, []byte("k")), []byte("v")); err != nil {
		t.Fatal(err)
	}

	cipher, _, err := snapshotcrypt.NewCipherFromConfig(snapshotcrypt.EncryptionConfig{Key: make([]byte, 32)})
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}

	group := NewGroup("test", Deps{Engine: engine, Dispatch: Dispatcher{}, Cipher: cipher, Logger: slog.Default()})
	snap := &fsmSnapshot{g: group}
	sink := &memSink{id: "snap-enc-2"}
	if err := snap.Persist(sink); err != nil {
		t.Fatalf("persist: %v", err)
	}

	group2 := NewGroup("test", Deps{Engine: newFakeEngine(), Dispatch: Dispatcher{}, Logger: slog.Default()})
	if err := group2.restoreFromSnapshot(bytes.NewReader(sink.Bytes())); err == nil {
		t.Fatal("expected restore without configured cipher to fail on an encrypted snapshot")
	}
}
