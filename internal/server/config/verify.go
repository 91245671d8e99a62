// Package config defines the server configuration structure.
package config

import (
	"errors"
	"os"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyListen(&cfg.Listen); err != nil {
		return err
	}
	if err := verifyRaft(&cfg.Raft); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifySecurity(&cfg.Security); err != nil {
		return err
	}
	return nil
}

func verifySecurity(cfg *SecuritySection) error {
	// Matches snapshot.MinKeyLength; kept as a literal here rather than
	// importing internal/storage/snapshot, which this package otherwise
	// has no dependency on.
	const minSnapshotKeyLength = 16
	if cfg.SnapshotEncryptionKey != "" && len(cfg.SnapshotEncryptionKey) < minSnapshotKeyLength {
		return errors.New("security.snapshot_encryption_key must be at least 16 bytes")
	}
	return nil
}

func verifyListen(cfg *ListenSection) error {
	if cfg.RPCAddr == "" {
		return errors.New("listen.rpc_addr is required")
	}
	if cfg.RESTAddr == "" {
		return errors.New("listen.rest_addr is required")
	}
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return errors.New("listen.tls_cert_file and listen.tls_key_file must both be set or both empty")
	}
	return nil
}

func verifyRaft(cfg *RaftSection) error {
	if cfg.DataDir == "" {
		return errors.New("raft.data_dir is required")
	}
	if cfg.SnapshotKeep < 1 {
		return errors.New("raft.snapshot_keep must be at least 1")
	}
	for name, group := range map[string]GroupSection{
		"raft.registry": cfg.Registry,
		"raft.autoid":   cfg.AutoID,
		"raft.tso":      cfg.TSO,
	} {
		if group.BindAddr == "" {
			return errors.New(name + ".bind_addr is required")
		}
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}

	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return errors.New("cannot create data directory: " + err.Error())
	}

	if cfg.SnapshotKeep < 1 {
		return errors.New("storage.snapshot_keep must be at least 1")
	}

	return nil
}
