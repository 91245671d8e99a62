// Package main provides the entry point for discovery-pluginserver.
//
// discovery-pluginserver runs the dedicated plugin Raft group (spec
// §2 item 4: plugin artifacts are large enough, and changed rarely
// enough, to warrant their own group rather than riding along with
// the registry group) and the Connect RPC surface that serves it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/eadiscovery/discoveryd/internal/infra/confloader"
	"github.com/eadiscovery/discoveryd/internal/infra/shutdown"
	"github.com/eadiscovery/discoveryd/internal/registry/plugin"
	"github.com/eadiscovery/discoveryd/internal/replication"
	"github.com/eadiscovery/discoveryd/internal/replication/discovery"
	serverconfig "github.com/eadiscovery/discoveryd/internal/server/config"
	"github.com/eadiscovery/discoveryd/internal/server/rpcserver"
	"github.com/eadiscovery/discoveryd/internal/storage"
	snapshotcrypt "github.com/eadiscovery/discoveryd/internal/storage/snapshot"
	"github.com/eadiscovery/discoveryd/internal/telemetry/logger"
	"github.com/eadiscovery/discoveryd/pkg/crypto/adaptive"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("discovery-pluginserver %s (commit: %s, built: %s)\n", version, commit, buildTime)
		return nil
	}

	cfg := serverconfig.Default()
	opts := []confloader.Option{}
	if *configFile != "" {
		opts = append(opts, confloader.WithConfigFile(*configFile))
	}
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := serverconfig.Verify(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stdout})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)
	slogLogger := slog.Default()
	log.Info("starting discovery-pluginserver", "version", version, "commit", commit, "node_id", cfg.Node.ID)

	engine, err := storage.NewBadgerEngine(storage.DefaultKVConfig(filepath.Join(cfg.Storage.DataDir, "plugin")), slogLogger)
	if err != nil {
		return fmt.Errorf("open plugin storage: %w", err)
	}

	pluginMgr := plugin.New(engine, cfg.Plugin.DataRoot, cfg.Plugin.ReadCacheSize)

	var cipher adaptive.Cipher
	if cfg.Security.SnapshotEncryptionKey != "" {
		subkey, err := snapshotcrypt.DeriveSubkey([]byte(cfg.Security.SnapshotEncryptionKey), "snapshot:plugin", 32)
		if err != nil {
			return fmt.Errorf("plugin snapshot cipher: %w", err)
		}
		cipher, _, err = snapshotcrypt.NewCipherFromConfig(snapshotcrypt.EncryptionConfig{Key: subkey})
		if err != nil {
			return fmt.Errorf("plugin snapshot cipher: %w", err)
		}
	}

	watcher := discovery.New(discovery.Config{
		Enabled:   cfg.Plugin.Discovery.Enabled,
		NodeID:    cfg.Node.ID,
		BindAddr:  cfg.Plugin.Discovery.BindAddr,
		BindPort:  cfg.Plugin.Discovery.BindPort,
		SeedNodes: cfg.Plugin.Discovery.SeedNodes,
		Logger:    slogLogger,
	})

	group := replication.NewGroup("plugin", replication.Deps{
		Engine:   engine,
		Dispatch: pluginMgr.Dispatchers(),
		Loaders:  []replication.SnapshotLoader{pluginMgr},
		Cipher:   cipher,
		Logger:   slogLogger,
		OnBecomeLeader: func() {
			if err := watcher.Start(); err != nil {
				log.Error("discovery watcher start failed", "error", err)
			}
		},
		OnStepDown: watcher.Stop,
	})
	if _, err := replication.BootstrapRaft(replication.RaftConfig{
		GroupName:      "plugin",
		DataDir:        cfg.Raft.DataDir,
		LocalID:        cfg.Node.ID,
		BindAddr:       cfg.Plugin.Group.BindAddr,
		Bootstrap:      cfg.Plugin.Group.Bootstrap,
		SnapshotRetain: cfg.Raft.SnapshotKeep,
	}, group, slogLogger); err != nil {
		return fmt.Errorf("bootstrap plugin group: %w", err)
	}

	svc := rpcserver.New()
	svc.Bind("plugin", group, pluginQueries(pluginMgr))
	rpcserver.BindRaftControl(svc, map[string]*replication.Group{"plugin": group})

	rpcServer := &http.Server{Addr: cfg.Listen.RPCAddr, Handler: svc.Routes()}

	shutdownHandler := shutdown.NewHandler(30 * time.Second)
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down rpc server")
		return rpcServer.Shutdown(ctx)
	})
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down plugin group")
		group.Close()
		watcher.Stop()
		return nil
	})
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("closing storage engine")
		return engine.Close()
	})

	go func() {
		log.Info("rpc server listening", "addr", cfg.Listen.RPCAddr)
		var serveErr error
		if cfg.Listen.TLSCertFile != "" && cfg.Listen.TLSKeyFile != "" {
			serveErr = rpcServer.ListenAndServeTLS(cfg.Listen.TLSCertFile, cfg.Listen.TLSKeyFile)
		} else {
			serveErr = rpcServer.ListenAndServe()
		}
		if serveErr != nil && serveErr != http.ErrServerClosed {
			log.Error("rpc server error", "error", serveErr)
		}
	}()

	log.Info("plugin server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	log.Info("plugin server stopped gracefully")
	return nil
}
