// Package app assembles the services from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"

	sssogin "github.com/CoachCoe/polkadot-sso/api/gin"
	"github.com/CoachCoe/polkadot-sso/cache"
	cacheredis "github.com/CoachCoe/polkadot-sso/cache/redis"
	"github.com/CoachCoe/polkadot-sso/client"
	"github.com/CoachCoe/polkadot-sso/config"
	"github.com/CoachCoe/polkadot-sso/domain"
	"github.com/CoachCoe/polkadot-sso/internal/audit"
	"github.com/CoachCoe/polkadot-sso/internal/auth"
	"github.com/CoachCoe/polkadot-sso/internal/federation"
	"github.com/CoachCoe/polkadot-sso/internal/memstore"
	"github.com/CoachCoe/polkadot-sso/internal/metrics"
	"github.com/CoachCoe/polkadot-sso/internal/server"
	"github.com/CoachCoe/polkadot-sso/internal/telegram"
	"github.com/CoachCoe/polkadot-sso/log"
	"github.com/CoachCoe/polkadot-sso/mongodb"
	"github.com/CoachCoe/polkadot-sso/services"
	"github.com/CoachCoe/polkadot-sso/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// App holds every long-lived component of a running server.
type App struct {
	Config   *config.ServerConfig
	Logger   log.Logger
	Store    domain.Store
	Denylist cache.Denylist
	Clients  *client.MemoryClientStore
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Challenges *services.ChallengeService
	Tokens     *services.TokenService
	Login      *services.LoginService
	Sweeper    *services.Sweeper
	API        *sssogin.AuthAPI

	limiter *sssogin.RateLimiter
	pingers map[string]server.Pinger
	closers []func() error
}

// OpenStore connects the storage driver named in cfg.
func OpenStore(ctx context.Context, cfg *config.ServerConfig) (domain.Store, error) {
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		return sqlite.Open(cfg.SQLitePath)
	case config.DriverMongo:
		mc, db, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, err
		}

		store, err := mongodb.NewStore(ctx, mc, db)
		if err != nil {
			_ = mc.Disconnect(context.Background())

			return nil, err
		}

		return store, nil
	case config.DriverMemory:
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// New wires the application. Close releases what it opened, also on error paths.
func New(ctx context.Context, cfg *config.ServerConfig, logger log.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		pingers:  make(map[string]server.Pinger),
	}

	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)

	if err := a.init(ctx); err != nil {
		_ = a.Close()

		return nil, err
	}

	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening %s storage: %w", cfg.StorageDriver, err)
	}

	a.Store = store
	a.closers = append(a.closers, store.Close)

	if p, ok := store.(server.Pinger); ok {
		a.pingers["storage"] = p
	}

	a.Denylist = a.openDenylist()

	a.Clients, err = loadClients(ctx, cfg.ClientsFile, a.Logger)
	if err != nil {
		return err
	}

	providers, err := federation.NewRegistryFromConfig(ctx, cfg.OAuthProviders)
	if err != nil {
		return fmt.Errorf("configuring identity providers: %w", err)
	}

	var sink audit.Sink = audit.Nop{}
	if cfg.AuditLogEnabled {
		sink = audit.NewZerologSink(os.Stdout, cfg.OtelServiceName)
	}

	clients := client.NewClientService(a.Clients, auth.NewBcryptPasswordHasher(bcrypt.DefaultCost))

	a.Challenges = services.NewChallengeService(store, clients, providers, services.ChallengeConfig{
		TTL:             cfg.ChallengeTTL,
		ProviderTTL:     cfg.ProviderChallengeTTLs(),
		WalletDomain:    cfg.WalletDomain,
		WalletURI:       cfg.WalletURI,
		WalletStatement: cfg.WalletStatement,
		WalletChainID:   cfg.WalletChainID,
		TelegramEnabled: cfg.TelegramBotToken != "",
	}, a.Metrics)

	verifiers := []services.ProofVerifier{
		services.NewWalletVerifier(),
		services.NewOAuthVerifier(providers, cfg.FetchUserInfo),
	}
	if cfg.TelegramBotToken != "" {
		verifiers = append(verifiers, services.NewTelegramVerifier(telegram.NewValidator(cfg.TelegramBotToken, cfg.TelegramMaxAuthAge)))
	}

	engine := services.NewVerificationEngine(a.Challenges, a.Metrics, sink, verifiers...)
	issuer := services.NewSessionIssuer(store, store, cfg.AuthCodeTTL, a.Metrics)

	signer := services.NewTokenSigner()
	signer.AddKeySigner(string(services.TokenAccess), cfg.AccessTokenSecret)
	signer.AddKeySigner(string(services.TokenRefresh), cfg.RefreshTokenSecret)

	a.Tokens = services.NewTokenService(store, store, clients, a.Denylist, signer, services.TokenConfig{
		Issuer:     cfg.Issuer,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}, a.Metrics, sink)

	a.Login = services.NewLoginService(engine, issuer, clients)
	a.Sweeper = services.NewSweeper(a.Challenges, store, cfg.SweepInterval, a.Metrics)

	if cfg.RateLimitPerMinute > 0 {
		a.limiter = sssogin.NewRateLimiter(cfg.RateLimitPerMinute, a.Metrics)
		a.closers = append(a.closers, func() error {
			a.limiter.Stop()
			return nil
		})
	}

	a.API = sssogin.NewAuthAPI(&sssogin.AuthAPIOptions{
		Challenges:  a.Challenges,
		Login:       a.Login,
		Tokens:      a.Tokens,
		RateLimiter: a.limiter,
	})

	a.Logger.Info(ctx, "Application initialized", log.Fields{
		"storage":   cfg.StorageDriver,
		"clients":   a.Clients.Len(),
		"providers": providers.Names(),
		"telegram":  cfg.TelegramBotToken != "",
	})

	return nil
}

func (a *App) openDenylist() cache.Denylist {
	if a.Config.RedisAddr == "" {
		d := cache.NewMemoryDenylist()
		a.closers = append(a.closers, func() error {
			d.Stop()
			return nil
		})

		return d
	}

	rc := redis.NewClient(&redis.Options{
		Addr:     a.Config.RedisAddr,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
	})
	a.closers = append(a.closers, rc.Close)

	d := cacheredis.NewDenylist(rc, a.Config.RedisPrefix)
	a.pingers["redis"] = d

	return d
}

// loadClients reads the client registry. A missing file yields an empty registry.
func loadClients(ctx context.Context, path string, logger log.Logger) (*client.MemoryClientStore, error) {
	store, err := client.LoadRegistryFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn(ctx, "Client registry not found, no clients are registered", log.Fields{"path": path})

		return client.NewMemoryClientStore()
	}

	if err != nil {
		return nil, fmt.Errorf("loading client registry: %w", err)
	}

	return store, nil
}

// HTTPServer builds the HTTP server for the wired API.
func (a *App) HTTPServer() *http.Server {
	return server.NewHTTPServer(a.Config, a.Logger, server.Options{
		AuthAPI:  a.API,
		Clients:  a.Clients,
		Gatherer: a.Registry,
		Pingers:  a.pingers,
	})
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}

	a.closers = nil

	return errors.Join(errs...)
}
