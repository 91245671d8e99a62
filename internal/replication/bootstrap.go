package replication

import (
	"fmt"
	"io"
	stdlog "log"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// RaftConfig configures one Raft group's on-disk layout and network
// identity (spec §6 "<raft_data>/<group>/stable/…",
// "<raft_data>/<group>/snapshot/…").
type RaftConfig struct {
	GroupName string
	DataDir   string // base directory; group files live under DataDir/GroupName
	LocalID   string
	BindAddr  string

	Bootstrap     bool // true only for a brand-new single-node cluster
	SnapshotRetain int
}

func (c RaftConfig) groupDir() string {
	return filepath.Join(c.DataDir, c.GroupName)
}

func resolveTCPAddr(bindAddr string) (*net.TCPAddr, error) {
	return net.ResolveTCPAddr("tcp", bindAddr)
}

// BootstrapRaft opens the boltdb stable/log store and file snapshot
// store for one group, builds the *raft.Raft node around the given
// Group's FSM, attaches it, and — if Bootstrap is set — seeds a
// single-node configuration so the group can make progress before any
// peers join.
func BootstrapRaft(cfg RaftConfig, group *Group, logger *slog.Logger) (*raft.Raft, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dir := cfg.groupDir()
	if err := os.MkdirAll(filepath.Join(dir, "stable"), 0o755); err != nil {
		return nil, fmt.Errorf("replication: create stable dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "snapshot"), 0o755); err != nil {
		return nil, fmt.Errorf("replication: create snapshot dir: %w", err)
	}

	boltPath := filepath.Join(dir, "stable", "raft.db")
	store, err := raftboltdb.NewBoltStore(boltPath)
	if err != nil {
		return nil, fmt.Errorf("replication: open boltdb store: %w", err)
	}

	snapRetain := cfg.SnapshotRetain
	if snapRetain <= 0 {
		snapRetain = 2
	}
	snapStore, err := raft.NewFileSnapshotStore(filepath.Join(dir, "snapshot"), snapRetain, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("replication: open snapshot store: %w", err)
	}

	addr, err := resolveTCPAddr(cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("replication: resolve bind addr: %w", err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("replication: create transport: %w", err)
	}

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.LocalID)
	raftCfg.Logger = newHCLogAdapter(cfg.GroupName, logger)

	node, err := raft.NewRaft(raftCfg, group.FSM(), store, store, snapStore, transport)
	if err != nil {
		return nil, fmt.Errorf("replication: new raft: %w", err)
	}

	if cfg.Bootstrap {
		hasState, err := raft.HasExistingState(store, store, snapStore)
		if err != nil {
			return nil, fmt.Errorf("replication: check existing state: %w", err)
		}
		if !hasState {
			configuration := raft.Configuration{
				Servers: []raft.Server{
					{ID: raftCfg.LocalID, Address: transport.LocalAddr()},
				},
			}
			if err := node.BootstrapCluster(configuration).Error(); err != nil {
				return nil, fmt.Errorf("replication: bootstrap cluster: %w", err)
			}
		}
	}

	group.Attach(node)
	return node, nil
}

// newHCLogAdapter wraps the project's slog.Logger as an hclog.Logger,
// the interface hashicorp/raft requires for Config.Logger.
func newHCLogAdapter(name string, logger *slog.Logger) hclog.Logger {
	return &hclogAdapter{name: name, logger: logger.With("component", "raft."+name)}
}

type hclogAdapter struct {
	name   string
	logger *slog.Logger
}

func (h *hclogAdapter) Log(level hclog.Level, msg string, args ...interface{}) {
	switch level {
	case hclog.Trace, hclog.Debug:
		h.logger.Debug(msg, args...)
	case hclog.Info:
		h.logger.Info(msg, args...)
	case hclog.Warn:
		h.logger.Warn(msg, args...)
	case hclog.Error:
		h.logger.Error(msg, args...)
	default:
		h.logger.Info(msg, args...)
	}
}

func (h *hclogAdapter) Trace(msg string, args ...interface{}) { h.logger.Debug(msg, args...) }
func (h *hclogAdapter) Debug(msg string, args ...interface{}) { h.logger.Debug(msg, args...) }
func (h *hclogAdapter) Info(msg string, args ...interface{})  { h.logger.Info(msg, args...) }
func (h *hclogAdapter) Warn(msg string, args ...interface{})  { h.logger.Warn(msg, args...) }
func (h *hclogAdapter) Error(msg string, args ...interface{}) { h.logger.Error(msg, args...) }

func (h *hclogAdapter) IsTrace() bool { return false }
func (h *hclogAdapter) IsDebug() bool { return true }
func (h *hclogAdapter) IsInfo() bool  { return true }
func (h *hclogAdapter) IsWarn() bool  { return true }
func (h *hclogAdapter) IsError() bool { return true }

func (h *hclogAdapter) ImpliedArgs() []interface{} { return nil }

func (h *hclogAdapter) With(args ...interface{}) hclog.Logger {
	return &hclogAdapter{name: h.name, logger: h.logger.With(args...)}
}

func (h *hclogAdapter) Name() string { return h.name }

func (h *hclogAdapter) Named(name string) hclog.Logger {
	return &hclogAdapter{name: h.name + "." + name, logger: h.logger.With("subsystem", name)}
}

func (h *hclogAdapter) ResetNamed(name string) hclog.Logger {
	return &hclogAdapter{name: name, logger: h.logger}
}

func (h *hclogAdapter) SetLevel(hclog.Level) {}

func (h *hclogAdapter) GetLevel() hclog.Level { return hclog.Info }

// slogWriter adapts the adapter's slog.Logger to io.Writer, for raft
// internals (and StandardLogger/StandardWriter callers) that want a
// plain writer instead of structured logging.
type slogWriter struct {
	logger *slog.Logger
}

func (w *slogWriter) Write(p []byte) (int, error) {
	w.logger.Info(string(p))
	return len(p), nil
}

func (h *hclogAdapter) StandardLogger(opts *hclog.StandardLoggerOptions) *stdlog.Logger {
	return stdlog.New(&slogWriter{logger: h.logger}, "", 0)
}

func (h *hclogAdapter) StandardWriter(opts *hclog.StandardLoggerOptions) io.Writer {
	return &slogWriter{logger: h.logger}
}
