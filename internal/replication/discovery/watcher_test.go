package discovery

import (
	"log/slog"
	"os"
	"strconv"
	"testing"
	"time"
)

func TestWatcherDisabledByDefault(t *testing.T) {
	w := New(Config{NodeID: "node-1"})
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if w.ml != nil {
		t.Fatal("expected no memberlist instance when Enabled is false")
	}
	// Stop must be a safe no-op when Start never actually gossiped.
	w.Stop()
}

func TestWatcherStartStop(t *testing.T) {
	cfg := Config{
		Enabled:  true,
		NodeID:   "node-1",
		BindAddr: "127.0.0.1",
		BindPort: 0,
		Logger:   slog.New(slog.NewTextHandler(os.Stdout, nil)),
	}
	w := New(cfg)
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if w.ml == nil {
		t.Fatal("expected a memberlist instance once enabled")
	}
	w.Stop()
	if w.ml != nil {
		t.Fatal("expected Stop to clear the memberlist instance")
	}
}

func TestWatcherJoinsPeer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	w1 := New(Config{Enabled: true, NodeID: "node-1", BindAddr: "127.0.0.1", BindPort: 0, Logger: logger})
	if err := w1.Start(); err != nil {
		t.Fatalf("Start node-1: %v", err)
	}
	defer w1.Stop()

	seedAddr := w1.ml.LocalNode().Addr.String() + ":" + strconv.Itoa(int(w1.ml.LocalNode().Port))

	w2 := New(Config{
		Enabled:   true,
		NodeID:    "node-2",
		BindAddr:  "127.0.0.1",
		BindPort:  0,
		SeedNodes: []string{seedAddr},
		Logger:    logger,
	})
	if err := w2.Start(); err != nil {
		t.Fatalf("Start node-2: %v", err)
	}
	defer w2.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(w1.ml.Members()) == 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("node-1 never saw node-2 join, members: %v", w1.ml.Members())
}
