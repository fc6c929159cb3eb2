// Package main provides the entry point for clustercommd.
//
// clustercommd is the coordinator daemon: it runs the Raft/Gossip topology
// service, the ClusterComm dispatcher, and the HTTP listener that exposes
// the dispatcher's inbound async-answer endpoint and the inter-coordinator
// topology control plane.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/shardmesh/clustercomm/internal/comm/answer"
	"github.com/shardmesh/clustercomm/internal/comm/destination"
	"github.com/shardmesh/clustercomm/internal/comm/dispatcher"
	"github.com/shardmesh/clustercomm/internal/comm/request"
	"github.com/shardmesh/clustercomm/internal/comm/transport"
	"github.com/shardmesh/clustercomm/internal/config"
	"github.com/shardmesh/clustercomm/internal/identity"
	"github.com/shardmesh/clustercomm/internal/infra/buildinfo"
	"github.com/shardmesh/clustercomm/internal/infra/confloader"
	"github.com/shardmesh/clustercomm/internal/infra/shutdown"
	"github.com/shardmesh/clustercomm/internal/infra/tlsroots"
	"github.com/shardmesh/clustercomm/internal/server/httpserver"
	"github.com/shardmesh/clustercomm/internal/telemetry/logger"
	"github.com/shardmesh/clustercomm/internal/telemetry/metric"
	"github.com/shardmesh/clustercomm/internal/topology"
	"github.com/shardmesh/clustercomm/pkg/hlc"
	"golang.org/x/time/rate"
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
		fmt.Printf("clustercommd %s\n", buildinfo.String())
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

	log.Info("starting clustercommd",
		"version", buildinfo.Version,
		"commit", buildinfo.Commit,
		"config", *configFile)

	topologyCfg, err := config.ToTopologyConfig(cfg, slogLogger)
	if err != nil {
		return fmt.Errorf("build topology config: %w", err)
	}

	topologySvc, err := topology.New(topologyCfg)
	if err != nil {
		return fmt.Errorf("start topology service: %w", err)
	}

	// The identity's Authorization header value is "bearer <secret>"; the
	// router compares the raw header against RouterConfig.SharedSecret
	// verbatim, so both sides carry the same prefix.
	routerSecret := ""
	if cfg.Security.SharedSecret != "" {
		routerSecret = "bearer " + cfg.Security.SharedSecret
	}
	ident := identity.NewWithCredential(topologyCfg.Raft.NodeID, cfg.Security.SharedSecret)

	comm, metrics, err := initDispatcher(cfg, ident, topologySvc, slogLogger)
	if err != nil {
		return fmt.Errorf("init dispatcher: %w", err)
	}

	answerHandler := answer.NewHandler(comm, slogLogger)
	controlHandler := topology.NewControlHandler(topologySvc, slogLogger)

	router := httpserver.NewRouter(&httpserver.RouterConfig{
		AnswerHandler:    answerHandler,
		ControlHandler:   controlHandler,
		Metrics:          metrics,
		Ready:            func() bool { return true },
		Logger:           slogLogger,
		SharedSecret:     routerSecret,
		ControlAllowList: cfg.Security.ControlAllowList,
		GlobalRateLimit:  1000,
		EnableAudit:      true,
	})

	httpServer := httpserver.New(cfg.Server.Addr, router)

	var certWatcher *tlsroots.Watcher
	if cfg.Server.TLSCertFile != "" && cfg.Server.TLSKeyFile != "" {
		certWatcher, err = tlsroots.NewWatcher(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile, tlsroots.WithLogger(slogLogger))
		if err != nil {
			return fmt.Errorf("start certificate watcher: %w", err)
		}
		httpServer.SetTLSConfig(&tls.Config{GetCertificate: certWatcher.GetCertificate})
		certWatcher.StartAsync()
	}

	shutdownHandler := shutdown.NewHandler(30 * time.Second)

	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		if certWatcher != nil {
			certWatcher.Stop()
		}
		return httpServer.Shutdown(ctx)
	})

	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down dispatcher")
		comm.Shutdown()
		return nil
	})

	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down topology service")
		return topologySvc.Close()
	})

	go func() {
		log.Info("HTTP server listening", "addr", cfg.Server.Addr)

		var err error
		if certWatcher != nil {
			// Cert/key paths are already loaded by certWatcher via
			// TLSConfig.GetCertificate.
			err = httpServer.ListenAndServeTLS("", "")
		} else {
			err = httpServer.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("coordinator started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("coordinator stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*config.CoordinatorConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	loader := confloader.NewLoader(opts...)

	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// initLogger initializes the structured logger.
// Returns both the logger interface and a slog.Logger for components, like
// the topology service and dispatcher, that take the standard library type
// directly.
func initLogger(cfg *config.CoordinatorConfig) (logger.Logger, *slog.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, nil, err
	}

	logger.SetDefault(log)

	return log, log.(logger.SlogSource).Slog(), nil
}

// initDispatcher wires the transport driver, destination resolver, request
// preparer, and topology service into a ClusterComm instance, and builds the
// metrics registry it reports completions to.
func initDispatcher(cfg *config.CoordinatorConfig, ident *identity.Service, topologySvc *topology.Service, log *slog.Logger) (*dispatcher.ClusterComm, *metric.Registry, error) {
	tlsConfig, err := peerTLSConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	driver := transport.NewHTTPDriver(transport.Config{
		MaxConcurrent:   cfg.Dispatcher.MaxConcurrent,
		PerHostRate:     rate.Limit(cfg.Dispatcher.PerHostRatePerSec),
		PerHostBurst:    cfg.Dispatcher.PerHostBurst,
		TLSClientConfig: tlsConfig,
	})

	resolver := destination.New(topologySvc, log)
	preparer := request.New(ident, hlc.New())

	comm := dispatcher.New(driver, resolver, preparer, topologySvc, log)

	metrics := metric.NewRegistry()
	comm.SetMetrics(metrics)

	return comm, metrics, nil
}

// peerTLSConfig builds the TLS client config the transport driver uses for
// ssl:// destinations. It trusts the system roots plus, if configured, the
// cluster's private CA; nil means the driver falls back to ssl://
// connections being rejected unless the system roots already cover them.
func peerTLSConfig(cfg *config.CoordinatorConfig) (*tls.Config, error) {
	if cfg.Security.TLSCAFile == "" {
		return nil, nil
	}

	pool, err := tlsroots.NewPool()
	if err != nil {
		return nil, fmt.Errorf("load system roots: %w", err)
	}
	if err := pool.AddCertFile(cfg.Security.TLSCAFile); err != nil {
		return nil, fmt.Errorf("load cluster CA %s: %w", cfg.Security.TLSCAFile, err)
	}

	return pool.TLSConfig(), nil
}
