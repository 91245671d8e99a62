// Package config defines the server configuration structure.
package config

import "time"

// Default configuration values.
const (
	DefaultRPCAddr  = "127.0.0.1:5080"
	DefaultRESTAddr = "127.0.0.1:5090"

	DefaultRegistryRaftAddr = "127.0.0.1:5081"
	DefaultAutoIDRaftAddr   = "127.0.0.1:5082"
	DefaultTSORaftAddr      = "127.0.0.1:5083"
	DefaultPluginRaftAddr   = "127.0.0.1:5084"

	DefaultRaftDataDir     = "/var/lib/discoveryd/raft"
	DefaultRaftSnapshotKeep = 2

	DefaultStorageDataDir  = "/var/lib/discoveryd/data"
	DefaultWALSyncInterval = 100 * time.Millisecond
	DefaultSnapshotKeep    = 3

	DefaultPluginDataRoot      = "/var/lib/discoveryd/plugins"
	DefaultPluginReadCacheSize = 64
	DefaultDiscoveryBindPort   = 5085

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default discovery-server configuration: a
// single-node bootstrap cluster for every group, suitable for local
// development.
func Default() *ServerConfig {
	return &ServerConfig{
		Listen: ListenSection{
			RPCAddr:  DefaultRPCAddr,
			RESTAddr: DefaultRESTAddr,
		},
		Raft: RaftSection{
			DataDir:      DefaultRaftDataDir,
			SnapshotKeep: DefaultRaftSnapshotKeep,
			Registry: GroupSection{
				BindAddr:  DefaultRegistryRaftAddr,
				Bootstrap: true,
			},
			AutoID: GroupSection{
				BindAddr:  DefaultAutoIDRaftAddr,
				Bootstrap: true,
			},
			TSO: GroupSection{
				BindAddr:  DefaultTSORaftAddr,
				Bootstrap: true,
			},
			PluginNodes: []string{DefaultPluginRaftAddr},
		},
		Storage: StorageSection{
			DataDir:         DefaultStorageDataDir,
			WALSyncInterval: DefaultWALSyncInterval,
			SnapshotKeep:    DefaultSnapshotKeep,
		},
		Plugin: PluginSection{
			DataRoot:      DefaultPluginDataRoot,
			ReadCacheSize: DefaultPluginReadCacheSize,
			Group: GroupSection{
				BindAddr:  DefaultPluginRaftAddr,
				Bootstrap: true,
			},
			Discovery: DiscoverySection{
				Enabled:  false,
				BindPort: DefaultDiscoveryBindPort,
			},
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
