// Package discovery implements the plugin group's bns/discovery
// watcher (spec §4.1 leader hooks): a gossip-membership auxiliary
// goroutine that the local replica starts on becoming the plugin
// group's Raft leader and joins on stepping down. Disabled by default.
//
// Grounded on the teacher's clusterserver.Discovery, trimmed to what
// an auxiliary watcher needs: this package only observes membership
// changes and logs them, it does not feed Raft membership (hashicorp/raft
// already owns that) or drive plugin dispatch.
package discovery

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/hashicorp/memberlist"
)

// Config configures the watcher's gossip membership layer.
type Config struct {
	// Enabled gates whether Start actually launches the gossip
	// listener; spec §4.1 calls for the watcher to ship disabled by
	// default.
	Enabled bool

	NodeID    string
	BindAddr  string
	BindPort  int
	SeedNodes []string

	Logger *slog.Logger
}

// Watcher runs the auxiliary gossip-membership goroutine for the
// plugin group's leader.
type Watcher struct {
	cfg    Config
	logger *slog.Logger

	ml *memberlist.Memberlist

	stopCh chan struct{}
	done   chan struct{}
}

// New creates a Watcher. It does not start gossiping until Start is called.
func New(cfg Config) *Watcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Watcher{cfg: cfg, logger: cfg.Logger}
}

// Start launches the watcher's auxiliary goroutine. A no-op when the
// watcher is disabled (the default). Intended to be called from a
// replication.Group's OnBecomeLeader hook.
func (w *Watcher) Start() error {
	if !w.cfg.Enabled {
		w.logger.Debug("discovery watcher disabled, skipping start")
		return nil
	}

	mlConfig := memberlist.DefaultLANConfig()
	mlConfig.Name = w.cfg.NodeID
	if w.cfg.BindAddr != "" {
		mlConfig.BindAddr = w.cfg.BindAddr
	}
	if w.cfg.BindPort != 0 {
		mlConfig.BindPort = w.cfg.BindPort
	}
	mlConfig.LogOutput = &slogWriter{logger: w.logger}

	events := make(chan memberlist.NodeEvent, 64)
	mlConfig.Events = &memberlist.ChannelEventDelegate{Ch: events}

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return fmt.Errorf("create memberlist: %w", err)
	}
	w.ml = ml

	if len(w.cfg.SeedNodes) > 0 {
		if _, err := ml.Join(w.cfg.SeedNodes); err != nil {
			ml.Shutdown()
			w.ml = nil
			return fmt.Errorf("join seed nodes: %w", err)
		}
	}

	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})
	go w.run(events)

	w.logger.Info("discovery watcher started", "node_id", w.cfg.NodeID)
	return nil
}

func (w *Watcher) run(events <-chan memberlist.NodeEvent) {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Event {
			case memberlist.NodeJoin:
				w.logger.Info("discovery peer joined",
					"node_id", ev.Node.Name,
					"addr", net.JoinHostPort(ev.Node.Addr.String(), fmt.Sprintf("%d", ev.Node.Port)))
			case memberlist.NodeLeave:
				w.logger.Info("discovery peer left", "node_id", ev.Node.Name)
			case memberlist.NodeUpdate:
				w.logger.Debug("discovery peer updated", "node_id", ev.Node.Name)
			}
		case <-w.stopCh:
			return
		}
	}
}

// Stop signals the auxiliary goroutine to exit and joins it before
// returning, per spec §4.1's step-down hook. Safe to call even if
// Start was never called or the watcher is disabled.
func (w *Watcher) Stop() {
	if w.ml == nil {
		return
	}
	close(w.stopCh)
	if err := w.ml.Leave(0); err != nil {
		w.logger.Warn("discovery watcher leave failed", "error", err)
	}
	if err := w.ml.Shutdown(); err != nil {
		w.logger.Warn("discovery watcher shutdown failed", "error", err)
	}
	<-w.done
	w.ml = nil
}

// slogWriter adapts slog.Logger to io.Writer for memberlist's own
// internal logging.
type slogWriter struct {
	logger *slog.Logger
}

func (sw *slogWriter) Write(p []byte) (int, error) {
	sw.logger.Debug(string(p))
	return len(p), nil
}
