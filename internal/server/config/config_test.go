// Package config defines the server configuration structure.
package config

import (
	"os"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Listen.RPCAddr != DefaultRPCAddr {
		t.Errorf("Listen.RPCAddr = %q, want %q", cfg.Listen.RPCAddr, DefaultRPCAddr)
	}
	if cfg.Listen.RESTAddr != DefaultRESTAddr {
		t.Errorf("Listen.RESTAddr = %q, want %q", cfg.Listen.RESTAddr, DefaultRESTAddr)
	}

	if cfg.Raft.Registry.BindAddr != DefaultRegistryRaftAddr {
		t.Errorf("Raft.Registry.BindAddr = %q, want %q", cfg.Raft.Registry.BindAddr, DefaultRegistryRaftAddr)
	}
	if !cfg.Raft.Registry.Bootstrap {
		t.Error("Raft.Registry.Bootstrap should default to true for single-node development")
	}
	if cfg.Raft.AutoID.BindAddr != DefaultAutoIDRaftAddr {
		t.Errorf("Raft.AutoID.BindAddr = %q, want %q", cfg.Raft.AutoID.BindAddr, DefaultAutoIDRaftAddr)
	}
	if cfg.Raft.TSO.BindAddr != DefaultTSORaftAddr {
		t.Errorf("Raft.TSO.BindAddr = %q, want %q", cfg.Raft.TSO.BindAddr, DefaultTSORaftAddr)
	}
	if len(cfg.Raft.PluginNodes) != 1 || cfg.Raft.PluginNodes[0] != DefaultPluginRaftAddr {
		t.Errorf("Raft.PluginNodes = %v, want [%q]", cfg.Raft.PluginNodes, DefaultPluginRaftAddr)
	}

	if cfg.Storage.DataDir != DefaultStorageDataDir {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, DefaultStorageDataDir)
	}
	if cfg.Storage.WALSyncInterval != DefaultWALSyncInterval {
		t.Errorf("Storage.WALSyncInterval = %v, want %v", cfg.Storage.WALSyncInterval, DefaultWALSyncInterval)
	}
	if cfg.Storage.SnapshotKeep != DefaultSnapshotKeep {
		t.Errorf("Storage.SnapshotKeep = %d, want %d", cfg.Storage.SnapshotKeep, DefaultSnapshotKeep)
	}

	if cfg.Plugin.DataRoot != DefaultPluginDataRoot {
		t.Errorf("Plugin.DataRoot = %q, want %q", cfg.Plugin.DataRoot, DefaultPluginDataRoot)
	}
	if cfg.Plugin.Group.BindAddr != DefaultPluginRaftAddr {
		t.Errorf("Plugin.Group.BindAddr = %q, want %q", cfg.Plugin.Group.BindAddr, DefaultPluginRaftAddr)
	}

	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, DefaultLogLevel)
	}
	if cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, DefaultLogFormat)
	}
}

func TestSanitize(t *testing.T) {
	cfg := &ServerConfig{
		Security: SecuritySection{
			SnapshotEncryptionKey: "super-secret-key-1234567890",
		},
	}

	sanitized := Sanitize(cfg)

	if cfg.Security.SnapshotEncryptionKey != "super-secret-key-1234567890" {
		t.Error("original config should not be modified")
	}
	if sanitized.Security.SnapshotEncryptionKey == cfg.Security.SnapshotEncryptionKey {
		t.Error("sanitized config should mask the encryption key")
	}
	if len(sanitized.Security.SnapshotEncryptionKey) != len(cfg.Security.SnapshotEncryptionKey) {
		t.Errorf("masked key length = %d, want %d", len(sanitized.Security.SnapshotEncryptionKey), len(cfg.Security.SnapshotEncryptionKey))
	}
}

func TestSanitize_EmptyKey(t *testing.T) {
	cfg := &ServerConfig{}
	sanitized := Sanitize(cfg)
	if sanitized.Security.SnapshotEncryptionKey != "" {
		t.Error("empty key should remain empty")
	}
}

func TestSanitize_ShortKey(t *testing.T) {
	cfg := &ServerConfig{Security: SecuritySection{SnapshotEncryptionKey: "abc"}}
	sanitized := Sanitize(cfg)
	if sanitized.Security.SnapshotEncryptionKey != "****" {
		t.Errorf("short key should be fully masked, got %q", sanitized.Security.SnapshotEncryptionKey)
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"a", "****"},
		{"ab", "****"},
		{"abc", "****"},
		{"abcd", "****"},
		{"abcde", "ab*de"},
		{"abcdef", "ab**ef"},
		{"1234567890", "12******90"},
	}

	for _, tt := range tests {
		result := maskSecret(tt.input)
		if result != tt.expected {
			t.Errorf("maskSecret(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func validConfig(dataDir, raftDir string) *ServerConfig {
	return &ServerConfig{
		Listen: ListenSection{RPCAddr: "127.0.0.1:5080", RESTAddr: "127.0.0.1:5090"},
		Raft: RaftSection{
			DataDir:      raftDir,
			SnapshotKeep: 2,
			Registry:     GroupSection{BindAddr: "127.0.0.1:5081", Bootstrap: true},
			AutoID:       GroupSection{BindAddr: "127.0.0.1:5082", Bootstrap: true},
			TSO:          GroupSection{BindAddr: "127.0.0.1:5083", Bootstrap: true},
		},
		Storage: StorageSection{
			DataDir:         dataDir,
			WALSyncInterval: 100 * time.Millisecond,
			SnapshotKeep:    3,
		},
	}
}

func TestVerify_ValidConfig(t *testing.T) {
	cfg := validConfig(t.TempDir(), t.TempDir())
	if err := Verify(cfg); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
}

func TestVerify_EmptyRPCAddr(t *testing.T) {
	cfg := validConfig(t.TempDir(), t.TempDir())
	cfg.Listen.RPCAddr = ""
	if err := Verify(cfg); err == nil {
		t.Error("expected error for empty listen.rpc_addr")
	}
}

func TestVerify_MismatchedTLSFiles(t *testing.T) {
	cfg := validConfig(t.TempDir(), t.TempDir())
	cfg.Listen.TLSCertFile = "/path/to/cert.pem"
	if err := Verify(cfg); err == nil {
		t.Error("expected error for tls_cert_file set without tls_key_file")
	}
}

func TestVerify_MissingGroupBindAddr(t *testing.T) {
	cfg := validConfig(t.TempDir(), t.TempDir())
	cfg.Raft.AutoID.BindAddr = ""
	if err := Verify(cfg); err == nil {
		t.Error("expected error for missing raft.autoid.bind_addr")
	}
}

func TestVerify_EmptyDataDir(t *testing.T) {
	cfg := validConfig("", t.TempDir())
	if err := Verify(cfg); err == nil {
		t.Error("expected error for empty storage.data_dir")
	}
}

func TestVerify_InvalidSnapshotKeep(t *testing.T) {
	cfg := validConfig(t.TempDir(), t.TempDir())
	cfg.Storage.SnapshotKeep = 0
	if err := Verify(cfg); err == nil {
		t.Error("expected error for invalid storage.snapshot_keep")
	}
}

func TestVerify_CreateDataDir(t *testing.T) {
	dir := t.TempDir()
	newDir := dir + "/subdir/data"
	cfg := validConfig(newDir, t.TempDir())

	if err := Verify(cfg); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
	if _, err := os.Stat(newDir); os.IsNotExist(err) {
		t.Error("data directory should have been created")
	}
}

func TestConstants(t *testing.T) {
	if DefaultRPCAddr != "127.0.0.1:5080" {
		t.Errorf("DefaultRPCAddr = %q", DefaultRPCAddr)
	}
	if DefaultRESTAddr != "127.0.0.1:5090" {
		t.Errorf("DefaultRESTAddr = %q", DefaultRESTAddr)
	}
	if DefaultLogLevel != "info" {
		t.Errorf("DefaultLogLevel = %q", DefaultLogLevel)
	}
	if DefaultLogFormat != "json" {
		t.Errorf("DefaultLogFormat = %q", DefaultLogFormat)
	}
}

func TestServerConfig_Struct(t *testing.T) {
	cfg := ServerConfig{
		Node: NodeSection{ID: "node-1"},
		Listen: ListenSection{
			RPCAddr:     "0.0.0.0:5080",
			RESTAddr:    "0.0.0.0:5090",
			TLSCertFile: "/path/to/cert.pem",
			TLSKeyFile:  "/path/to/key.pem",
		},
		Raft: RaftSection{
			DataDir:     "/raft",
			Registry:    GroupSection{BindAddr: "0.0.0.0:5081", Peers: []string{"node-2:5081"}},
			PluginNodes: []string{"node-2:5084", "node-3:5084"},
		},
		Storage: StorageSection{
			DataDir:         "/data",
			WALSyncInterval: 50 * time.Millisecond,
			SnapshotKeep:    5,
		},
		Security: SecuritySection{
			SnapshotEncryptionKey: "secret",
			TLSCAFile:             "/path/to/ca.pem",
		},
		Log: LogSection{Level: "debug", Format: "text"},
	}

	if cfg.Listen.RPCAddr != "0.0.0.0:5080" {
		t.Error("RPC addr not set correctly")
	}
	if cfg.Node.ID != "node-1" {
		t.Error("node ID not set correctly")
	}
	if len(cfg.Raft.PluginNodes) != 2 {
		t.Error("plugin nodes not set correctly")
	}
}
