// Package config defines the server configuration structure.
package config

import "time"

// ServerConfig is the root configuration for discovery-server and
// discovery-pluginserver.
type ServerConfig struct {
	Node     NodeSection     `koanf:"node"`
	Listen   ListenSection   `koanf:"listen"`
	Raft     RaftSection     `koanf:"raft"`
	Storage  StorageSection  `koanf:"storage"`
	Plugin   PluginSection   `koanf:"plugin"`
	Security SecuritySection `koanf:"security"`
	Log      LogSection      `koanf:"log"`
}

// NodeSection identifies this replica within every Raft group it
// co-resides in (spec §2 item 4: the registry, auto-id, and TSO
// groups always share a LocalID/process; the plugin group's LocalID
// is set independently in its own process's config).
type NodeSection struct {
	ID string `koanf:"id"`
}

// ListenSection configures the two HTTP surfaces a discovery-server
// process exposes: the Connect RPC surface (the local rpcserver.Service
// every wire method funnels into) and the REST bridge.
type ListenSection struct {
	RPCAddr     string `koanf:"rpc_addr"`
	RESTAddr    string `koanf:"rest_addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`
}

// RaftSection configures the three co-resident Raft groups a
// discovery-server process runs (registry, auto-id, TSO) plus the
// candidate node list the router's forwarding clients use to locate
// the dedicated plugin-server group.
type RaftSection struct {
	DataDir      string       `koanf:"data_dir"`
	SnapshotKeep int          `koanf:"snapshot_keep"`
	Registry     GroupSection `koanf:"registry"`
	AutoID       GroupSection `koanf:"autoid"`
	TSO          GroupSection `koanf:"tso"`
	PluginNodes  []string     `koanf:"plugin_nodes"`
}

// GroupSection configures one Raft group's network identity and
// initial membership.
type GroupSection struct {
	BindAddr  string   `koanf:"bind_addr"`
	Bootstrap bool     `koanf:"bootstrap"`
	Peers     []string `koanf:"peers"`
}

// StorageSection configures the embedded KV engine backing every
// group's "meta" column family.
type StorageSection struct {
	DataDir         string        `koanf:"data_dir"`
	WALSyncInterval time.Duration `koanf:"wal_sync_interval"`
	SnapshotKeep    int           `koanf:"snapshot_keep"`
}

// PluginSection configures the plugin manager's blob storage and
// read-link cache (spec §4.4/§4.8); meaningful only in
// discovery-pluginserver, where the dedicated plugin Raft group runs.
type PluginSection struct {
	DataRoot      string           `koanf:"data_root"`
	ReadCacheSize int              `koanf:"read_cache_size"`
	Group         GroupSection     `koanf:"group"`
	Discovery     DiscoverySection `koanf:"discovery"`
}

// DiscoverySection configures the plugin group's bns/discovery watcher
// (spec §4.1 leader hooks) — an auxiliary gossip-membership goroutine
// started when this replica becomes the plugin group's Raft leader.
// Disabled by default.
type DiscoverySection struct {
	Enabled   bool     `koanf:"enabled"`
	BindAddr  string   `koanf:"bind_addr"`
	BindPort  int      `koanf:"bind_port"`
	SeedNodes []string `koanf:"seed_nodes"`
}

// SecuritySection configures security settings.
type SecuritySection struct {
	SnapshotEncryptionKey string `koanf:"snapshot_encryption_key"`
	TLSCAFile             string `koanf:"tls_ca_file"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
