// Package main provides the entry point for the repogate server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/repogate/internal/auth"
	"github.com/vyrodovalexey/repogate/internal/auth/dispatch"
	"github.com/vyrodovalexey/repogate/internal/auth/oidc"
	"github.com/vyrodovalexey/repogate/internal/auth/password"
	"github.com/vyrodovalexey/repogate/internal/auth/registry"
	"github.com/vyrodovalexey/repogate/internal/auth/system"
	"github.com/vyrodovalexey/repogate/internal/auth/token"
	"github.com/vyrodovalexey/repogate/internal/config"
	"github.com/vyrodovalexey/repogate/internal/directory"
	"github.com/vyrodovalexey/repogate/internal/execution"
	"github.com/vyrodovalexey/repogate/internal/logger"
	"github.com/vyrodovalexey/repogate/internal/metrics"
	"github.com/vyrodovalexey/repogate/internal/repository"
	"github.com/vyrodovalexey/repogate/internal/repository/engine"
	"github.com/vyrodovalexey/repogate/internal/server"
	"github.com/vyrodovalexey/repogate/internal/service"
	"github.com/vyrodovalexey/repogate/internal/telemetry"
	tlspkg "github.com/vyrodovalexey/repogate/internal/tls"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use basic logger for startup errors
		basicLogger, _ := zap.NewProduction()
		basicLogger.Fatal("failed to load configuration", zap.Error(err))
	}

	serviceName := cfg.OTEL.ServiceName
	if serviceName == "" {
		serviceName = telemetry.DefaultServiceName
	}

	log, err := logger.InitLogger(cfg.LogLevel, serviceName)
	if err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Fatal("failed to initialize logger", zap.Error(err))
	}

	log.Info("starting repogate", zap.String("config", cfg.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, log)
	cancel()
	if err != nil {
		log.Error("server error", zap.Error(err))
		logger.SyncLogger(log)
		os.Exit(1)
	}

	log.Info("server shutdown complete")
	logger.SyncLogger(log)
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if err := telemetry.InitTracer(ctx, telemetry.Config{
		Enabled:     cfg.OTEL.Enabled,
		Endpoint:    cfg.OTEL.Endpoint,
		ServiceName: cfg.OTEL.ServiceName,
	}, log); err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer telemetry.ShutdownTracer(log)

	store, err := openDirectory(cfg.Directory)
	if err != nil {
		return err
	}
	log.Info("directory loaded", zap.Int("users", store.Len()))

	var (
		tokens directory.TokenResolver = store
		checks []metrics.Check
	)
	if cfg.Vault.Enabled {
		resolver, vaultErr := directory.NewVaultTokenResolver(directory.VaultConfig{
			Address: cfg.Vault.Addr,
			Token:   cfg.Vault.Token,
			Mount:   cfg.Vault.KVMount,
			Prefix:  cfg.Vault.TokenPrefix,
		}, store, log)
		if vaultErr != nil {
			return fmt.Errorf("creating vault token resolver: %w", vaultErr)
		}
		tokens = resolver
		checks = append(checks, metrics.Check{Name: "vault", Fn: resolver.Healthy})
	}

	// Registration order is evaluation order within a kind.
	reg := registry.New(log)
	reg.Register(auth.KindPassword, password.Factory(store, log))
	reg.Register(auth.KindToken, token.Factory(tokens, log))
	if cfg.OIDC.Enabled {
		oidcCfg := oidc.Config{
			IssuerURL:      cfg.OIDC.IssuerURL,
			ClientID:       cfg.OIDC.ClientID,
			UsernameClaim:  cfg.OIDC.UsernameClaim,
			DomainID:       cfg.OIDC.DomainID,
			RequiredClaims: oidc.ParseRequiredClaims(cfg.OIDC.RequiredClaims),
		}
		provider, oidcErr := oidc.NewProvider(ctx, oidcCfg, log)
		if oidcErr != nil {
			return fmt.Errorf("creating OIDC provider: %w", oidcErr)
		}
		reg.Register(auth.KindToken, oidc.Factory(provider.Verifier(), store, oidcCfg, log))
		checks = append(checks, metrics.Check{Name: "oidc", Fn: provider.Healthy})
	}
	reg.Register(auth.KindSystem, system.Factory)

	eng, err := engine.New(engine.Config{
		Name:             cfg.Repository.Name,
		Workspaces:       cfg.Repository.Workspaces,
		DefaultWorkspace: cfg.Repository.DefaultWorkspace,
	}, dispatch.New(reg, log), log)
	if err != nil {
		return fmt.Errorf("creating repository engine: %w", err)
	}
	repo := repository.NewContentRepository(eng, log)

	if err := selfCheck(ctx, repo, reg, log); err != nil {
		return err
	}

	metricsServer := metrics.NewServer(cfg.MetricsPort, log, checks...)
	metricsServer.Start()
	defer metricsServer.Shutdown()

	srvCfg := server.Config{
		Address:          cfg.GRPCAddress(),
		ShutdownTimeout:  cfg.ShutdownTimeout,
		EnableReflection: cfg.EnableReflection,
	}
	if cfg.TLS.Enabled {
		srvCfg.TLS, err = tlspkg.ServerConfig(tlspkg.Config{
			CertFile:     cfg.TLS.CertFile,
			KeyFile:      cfg.TLS.KeyFile,
			ClientCAFile: cfg.TLS.ClientCAFile,
		})
		if err != nil {
			return fmt.Errorf("building listener TLS: %w", err)
		}
	}

	srv := server.NewServer(srvCfg, service.New(repo, reg, log), log)

	return srv.Start(ctx)
}

// openDirectory loads the directory seed, or returns an empty directory when none is configured.
func openDirectory(cfg config.DirectoryConfig) (*directory.MemoryStore, error) {
	if cfg.File == "" {
		return directory.NewMemoryStore(), nil
	}
	store, err := directory.LoadFile(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("loading directory: %w", err)
	}
	return store, nil
}

// selfCheck opens and releases a system session on the default workspace.
func selfCheck(ctx context.Context, repo *repository.ContentRepository, reg *registry.Registry, log *zap.Logger) error {
	id := execution.NewID()
	ctx = execution.WithID(ctx, id)
	defer reg.Evict(id)

	h, err := repo.LoginAsSystem(ctx, "")
	if err != nil {
		return fmt.Errorf("opening system session: %w", err)
	}
	log.Info("system session verified",
		zap.String("repository", repo.Descriptor(engine.DescRepositoryName)),
		zap.String("workspace", h.Conn().Workspace()),
	)
	if err := repo.Release(ctx, h); err != nil {
		return fmt.Errorf("releasing system session: %w", err)
	}
	return nil
}
