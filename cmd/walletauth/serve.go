package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/layer-3/walletauth/adapters/cache"
	"github.com/layer-3/walletauth/adapters/events"
	"github.com/layer-3/walletauth/adapters/store"
	"github.com/layer-3/walletauth/adapters/tokenizer"
	"github.com/layer-3/walletauth/config"
	"github.com/layer-3/walletauth/internal/logger"
	"github.com/layer-3/walletauth/ports"
	"github.com/layer-3/walletauth/service"
	transport "github.com/layer-3/walletauth/transport/http"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.LogLevel, cfg.Env)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

type deps struct {
	cache    ports.NonceCache
	issuers  ports.IssuerRepository
	tokens   ports.TokenRepository
	events   ports.EventPublisher
	closers  []func() error
	redisCli *redis.Client
}

func (d *deps) close(log *zap.Logger) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			log.Warn("failed to close dependency", zap.Error(err))
		}
	}
}

func (d *deps) redisClient(cfg *config.Config) (*redis.Client, error) {
	if d.redisCli != nil {
		return d.redisCli, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	d.redisCli = redis.NewClient(opts)
	d.closers = append(d.closers, d.redisCli.Close)
	return d.redisCli, nil
}

func buildDeps(ctx context.Context, cfg *config.Config, log *zap.Logger) (*deps, error) {
	d := &deps{}

	switch cfg.CacheDriver {
	case config.DriverRedis:
		client, err := d.redisClient(cfg)
		if err != nil {
			return d, err
		}
		if err := client.Ping(ctx).Err(); err != nil {
			return d, fmt.Errorf("failed to reach redis: %w", err)
		}
		d.cache = cache.NewRedisCache(client, "")
	default:
		log.Warn("using in-memory nonce cache, challenges are not shared between instances")
		d.cache = cache.NewMemoryCache()
	}

	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return d, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		d.closers = append(d.closers, func() error { return client.Disconnect(context.Background()) })
		if err := client.Ping(ctx, nil); err != nil {
			return d, fmt.Errorf("failed to reach mongo: %w", err)
		}
		s := store.NewMongoStore(client, cfg.MongoDatabase)
		if err := s.EnsureIndexes(ctx); err != nil {
			return d, err
		}
		d.issuers, d.tokens = s, s
	default:
		log.Warn("using in-memory store, identities and sessions are lost on restart")
		s := store.NewMemoryStore()
		d.issuers, d.tokens = s, s
	}

	switch cfg.EventsDriver {
	case config.DriverRedis:
		client, err := d.redisClient(cfg)
		if err != nil {
			return d, err
		}
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: client},
			events.NewWatermillLogger(log.Named("watermill")),
		)
		if err != nil {
			return d, fmt.Errorf("failed to create redis publisher: %w", err)
		}
		wp := events.NewWatermillPublisher(publisher, cfg.EventsTopic)
		d.closers = append(d.closers, wp.Close)
		d.events = wp
	default:
		d.events = events.NewLogPublisher(log)
	}

	return d, nil
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	domain, err := cfg.Hostname()
	if err != nil {
		return err
	}

	signKey, ephemeral, err := loadSigningKey(cfg.SigningKeyFile)
	if err != nil {
		return err
	}
	if ephemeral {
		log.Warn("SIGNING_KEY_FILE is not set, using an ephemeral key; sessions will not survive a restart")
	}

	d, err := buildDeps(ctx, cfg, log)
	defer d.close(log)
	if err != nil {
		return err
	}

	audit := service.NewAuditor(d.events, log)
	authService := service.NewAuthService(
		service.NewChallengeManager(d.cache, domain, cfg.AppName, cfg.NonceTTL),
		service.NewSignatureVerifier(log, service.WithAddressBinding(cfg.Ed25519AddressBinding)),
		service.NewIssuerResolver(d.issuers),
		service.NewTokenManager(
			tokenizer.NewJWTTokenizer(signKey, cfg.AppName, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
			d.tokens, audit, log,
		),
		d.issuers,
		audit,
		log,
	)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           transport.SetupRouter(authService, log, cfg.Development()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("domain", domain))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
