// Package main provides the entry point for discovery-server.
//
// discovery-server runs the three co-resident Raft groups that back
// the control plane's registry (namespace/zone/servlet/instance/
// privilege/config), auto-increment id, and timestamp oracle
// services, plus the Connect RPC surface, REST bridge, and router
// that expose them. The dedicated plugin group lives in a separate
// discovery-pluginserver process this one forwards to.
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

	"github.com/eadiscovery/discoveryd/internal/client/followclient"
	"github.com/eadiscovery/discoveryd/internal/infra/confloader"
	"github.com/eadiscovery/discoveryd/internal/infra/shutdown"
	"github.com/eadiscovery/discoveryd/internal/registry/autoid"
	"github.com/eadiscovery/discoveryd/internal/registry/config"
	"github.com/eadiscovery/discoveryd/internal/registry/instance"
	"github.com/eadiscovery/discoveryd/internal/registry/namespace"
	"github.com/eadiscovery/discoveryd/internal/registry/privilege"
	"github.com/eadiscovery/discoveryd/internal/registry/servlet"
	"github.com/eadiscovery/discoveryd/internal/registry/tso"
	"github.com/eadiscovery/discoveryd/internal/registry/zone"
	"github.com/eadiscovery/discoveryd/internal/replication"
	serverconfig "github.com/eadiscovery/discoveryd/internal/server/config"
	"github.com/eadiscovery/discoveryd/internal/server/restbridge"
	"github.com/eadiscovery/discoveryd/internal/server/router"
	"github.com/eadiscovery/discoveryd/internal/server/rpcserver"
	"github.com/eadiscovery/discoveryd/internal/storage"
	snapshotcrypt "github.com/eadiscovery/discoveryd/internal/storage/snapshot"
	"github.com/eadiscovery/discoveryd/internal/telemetry/logger"
	"github.com/eadiscovery/discoveryd/pkg/crypto/adaptive"
	"github.com/eadiscovery/discoveryd/internal/util/workerpool"
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
		fmt.Printf("discovery-server %s (commit: %s, built: %s)\n", version, commit, buildTime)
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, slogLogger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log.Info("starting discovery-server", "version", version, "commit", commit, "node_id", cfg.Node.ID)

	reg, err := newRegistry(cfg, slogLogger)
	if err != nil {
		return fmt.Errorf("init registry: %w", err)
	}

	svc := rpcserver.New()
	bindRegistryQueries(svc, reg)
	bindAutoIDQueries(svc, reg)
	bindTSOQueries(svc, reg)
	rpcserver.BindRaftControl(svc, map[string]*replication.Group{
		"registry": reg.registryGroup,
		"autoid":   reg.autoidGroup,
		"tso":      reg.tsoGroup,
	})

	clients, err := newForwardingClients(cfg)
	if err != nil {
		return fmt.Errorf("init forwarding clients: %w", err)
	}
	rtr := router.New(clients, workerpool.New(64))
	bridge := restbridge.New(rtr)

	rpcServer := &http.Server{Addr: cfg.Listen.RPCAddr, Handler: svc.Routes()}
	restServer := &http.Server{Addr: cfg.Listen.RESTAddr, Handler: bridge.Routes()}

	shutdownHandler := shutdown.NewHandler(30 * time.Second)
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down REST bridge")
		return restServer.Shutdown(ctx)
	})
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down RPC server")
		return rpcServer.Shutdown(ctx)
	})
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down raft groups")
		reg.registryGroup.Close()
		reg.autoidGroup.Close()
		reg.tsoGroup.Close()
		reg.tsoCancel()
		return nil
	})
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("closing storage engines")
		return reg.closeEngines()
	})

	go func() {
		log.Info("rpc server listening", "addr", cfg.Listen.RPCAddr)
		if err := serveHTTP(rpcServer, cfg.Listen.TLSCertFile, cfg.Listen.TLSKeyFile); err != nil && err != http.ErrServerClosed {
			log.Error("rpc server error", "error", err)
		}
	}()
	go func() {
		log.Info("rest bridge listening", "addr", cfg.Listen.RESTAddr)
		if err := serveHTTP(restServer, cfg.Listen.TLSCertFile, cfg.Listen.TLSKeyFile); err != nil && err != http.ErrServerClosed {
			log.Error("rest bridge error", "error", err)
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}

func serveHTTP(s *http.Server, certFile, keyFile string) error {
	if certFile != "" && keyFile != "" {
		return s.ListenAndServeTLS(certFile, keyFile)
	}
	return s.ListenAndServe()
}

func loadConfig(configFile string) (*serverconfig.ServerConfig, error) {
	cfg := serverconfig.Default()
	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}
	if err := serverconfig.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func initLogger(cfg *serverconfig.ServerConfig) (logger.Logger, *slog.Logger, error) {
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stdout})
	if err != nil {
		return nil, nil, err
	}
	logger.SetDefault(log)
	return log, slog.Default(), nil
}

// nameResolver adapts the namespace/zone/servlet managers' own Get
// methods to instance.NameResolver, so instance.Manager can translate
// a (namespace, zone, servlet) name chain to ids without importing
// those packages itself.
type nameResolver struct {
	ns *namespace.Manager
	zn *zone.Manager
	sv *servlet.Manager
}

func (r nameResolver) ResolveNamespace(name string) (uint64, bool) {
	ns, ok := r.ns.Get(name)
	return ns.ID, ok
}

func (r nameResolver) ResolveZone(namespaceID uint64, name string) (uint64, bool) {
	z, ok := r.zn.Get(namespaceID, name)
	return z.ID, ok
}

func (r nameResolver) ResolveServlet(zoneID uint64, name string) (uint64, bool) {
	s, ok := r.sv.Get(zoneID, name)
	return s.ID, ok
}

// registry bundles every manager and Raft group this process runs.
type registry struct {
	registryEngine storage.KVEngine
	autoidEngine   storage.KVEngine
	tsoEngine      storage.KVEngine

	namespaceMgr *namespace.Manager
	zoneMgr      *zone.Manager
	servletMgr   *servlet.Manager
	instanceMgr  *instance.Manager
	privilegeMgr *privilege.Manager
	configMgr    *config.Manager
	autoidMgr    *autoid.Manager
	tsoMgr       *tso.Manager

	registryGroup *replication.Group
	autoidGroup   *replication.Group
	tsoGroup      *replication.Group

	tsoCancel context.CancelFunc
}

func (r *registry) closeEngines() error {
	var firstErr error
	for _, e := range []storage.KVEngine{r.registryEngine, r.autoidEngine, r.tsoEngine} {
		if err := e.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// newRegistry wires the six registry managers' cross-manager hooks,
// opens one storage engine per co-resident Raft group (spec §2 item
// 4: registry/autoid/tso each keep their own "meta" namespace so a
// snapshot restore of one group can never touch another's rows), and
// bootstraps all three groups.
func newRegistry(cfg *serverconfig.ServerConfig, log *slog.Logger) (*registry, error) {
	registryEngine, err := openEngine(cfg, "registry", log)
	if err != nil {
		return nil, err
	}
	autoidEngine, err := openEngine(cfg, "autoid", log)
	if err != nil {
		return nil, err
	}
	tsoEngine, err := openEngine(cfg, "tso", log)
	if err != nil {
		return nil, err
	}

	registryCipher, err := groupCipher(cfg, "registry")
	if err != nil {
		return nil, fmt.Errorf("registry snapshot cipher: %w", err)
	}
	autoidCipher, err := groupCipher(cfg, "autoid")
	if err != nil {
		return nil, fmt.Errorf("autoid snapshot cipher: %w", err)
	}
	tsoCipher, err := groupCipher(cfg, "tso")
	if err != nil {
		return nil, fmt.Errorf("tso snapshot cipher: %w", err)
	}

	namespaceMgr := namespace.New(registryEngine)
	zoneMgr := zone.New(registryEngine)
	servletMgr := servlet.New(registryEngine)
	instanceMgr := instance.New(registryEngine, nameResolver{ns: namespaceMgr, zn: zoneMgr, sv: servletMgr})
	privilegeMgr := privilege.New(registryEngine)
	configMgr := config.New(registryEngine)
	autoidMgr := autoid.New(autoidEngine)
	tsoMgr := tso.New(tsoEngine)

	namespaceMgr.HasZones = zoneMgr.HasZoneInNamespace
	zoneMgr.NamespaceExists = func(id uint64) bool { _, ok := namespaceMgr.GetByID(id); return ok }
	zoneMgr.HasServlets = servletMgr.HasServletInZone
	servletMgr.ZoneExists = func(id uint64) bool { _, ok := zoneMgr.GetByID(id); return ok }
	servletMgr.HasInstances = instanceMgr.HasInstanceInServlet

	r := &registry{
		registryEngine: registryEngine,
		autoidEngine:   autoidEngine,
		tsoEngine:      tsoEngine,
		namespaceMgr:   namespaceMgr,
		zoneMgr:        zoneMgr,
		servletMgr:     servletMgr,
		instanceMgr:    instanceMgr,
		privilegeMgr:   privilegeMgr,
		configMgr:      configMgr,
		autoidMgr:      autoidMgr,
		tsoMgr:         tsoMgr,
	}

	registryDispatch := replication.MergeDispatchers(
		namespaceMgr.Dispatchers(),
		zoneMgr.Dispatchers(),
		servletMgr.Dispatchers(),
		instanceMgr.Dispatchers(),
		privilegeMgr.Dispatchers(),
		configMgr.Dispatchers(),
	)
	registryLoaders := []replication.SnapshotLoader{namespaceMgr, zoneMgr, servletMgr, instanceMgr, privilegeMgr, configMgr}

	r.registryGroup = replication.NewGroup("registry", replication.Deps{
		Engine: registryEngine, Dispatch: registryDispatch, Loaders: registryLoaders, Cipher: registryCipher, Logger: log,
	})
	if _, err := replication.BootstrapRaft(raftConfigFor(cfg, "registry", cfg.Raft.Registry), r.registryGroup, log); err != nil {
		return nil, fmt.Errorf("bootstrap registry group: %w", err)
	}

	r.autoidGroup = replication.NewGroup("autoid", replication.Deps{
		Engine: autoidEngine, Dispatch: autoidMgr.Dispatchers(), Loaders: []replication.SnapshotLoader{autoidMgr}, Cipher: autoidCipher, Logger: log,
	})
	if _, err := replication.BootstrapRaft(raftConfigFor(cfg, "autoid", cfg.Raft.AutoID), r.autoidGroup, log); err != nil {
		return nil, fmt.Errorf("bootstrap autoid group: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.tsoCancel = cancel
	r.tsoGroup = replication.NewGroup("tso", replication.Deps{
		Engine: tsoEngine, Dispatch: tsoMgr.Dispatchers(), Loaders: []replication.SnapshotLoader{tsoMgr}, Cipher: tsoCipher, Logger: log,
		OnBecomeLeader: func() {
			tsoMgr.ResetTSO()
			go tsoMgr.RunTicker(ctx, r.tsoGroup.Submit)
		},
	})
	if _, err := replication.BootstrapRaft(raftConfigFor(cfg, "tso", cfg.Raft.TSO), r.tsoGroup, log); err != nil {
		return nil, fmt.Errorf("bootstrap tso group: %w", err)
	}

	return r, nil
}

func openEngine(cfg *serverconfig.ServerConfig, group string, log *slog.Logger) (storage.KVEngine, error) {
	kvCfg := storage.DefaultKVConfig(filepath.Join(cfg.Storage.DataDir, group))
	if cfg.Storage.WALSyncInterval > 0 {
		kvCfg.Badger.SyncWrites = true
	}
	return storage.NewBadgerEngine(kvCfg, log)
}

// groupCipher derives a per-group snapshot cipher from the configured
// master key, so a leaked registry snapshot doesn't also expose the
// autoid or tso groups' data. Returns a nil Cipher (snapshots written
// plain) when no key is configured.
func groupCipher(cfg *serverconfig.ServerConfig, group string) (adaptive.Cipher, error) {
	if cfg.Security.SnapshotEncryptionKey == "" {
		return nil, nil
	}
	subkey, err := snapshotcrypt.DeriveSubkey([]byte(cfg.Security.SnapshotEncryptionKey), "snapshot:"+group, 32)
	if err != nil {
		return nil, err
	}
	cipher, _, err := snapshotcrypt.NewCipherFromConfig(snapshotcrypt.EncryptionConfig{Key: subkey})
	return cipher, err
}

func raftConfigFor(cfg *serverconfig.ServerConfig, name string, group serverconfig.GroupSection) replication.RaftConfig {
	return replication.RaftConfig{
		GroupName:      name,
		DataDir:        cfg.Raft.DataDir,
		LocalID:        cfg.Node.ID,
		BindAddr:       group.BindAddr,
		Bootstrap:      group.Bootstrap,
		SnapshotRetain: cfg.Raft.SnapshotKeep,
	}
}

// newForwardingClients builds the router.Clients the REST bridge
// forwards through. Registry/autoid/tso target this same process's
// own RPC surface (the bridge always goes over the wire, even to a
// co-resident group, so a follower can forward to whichever peer is
// actually leader); plugin targets the dedicated plugin-server
// cluster's node list.
func newForwardingClients(cfg *serverconfig.ServerConfig) (router.Clients, error) {
	self := []string{cfg.Listen.RPCAddr}
	transport := followclient.NewConnectTransport()
	fwdCfg := func(nodes []string) followclient.Config {
		return router.NewForwardingConfig(nodes, 5*time.Second, 10*time.Second)
	}
	return router.Clients{
		Registry: followclient.New(fwdCfg(self), transport),
		AutoID:   followclient.New(fwdCfg(self), transport),
		TSO:      followclient.New(fwdCfg(self), transport),
		Plugin:   followclient.New(fwdCfg(cfg.Raft.PluginNodes), transport),
	}, nil
}
