package factory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"review-auth/internal/audit"
	"review-auth/internal/bucketing"
	"review-auth/internal/client"
	"review-auth/internal/config"
	"review-auth/internal/filter"
	"review-auth/internal/handler"
	"review-auth/internal/hashing"
	redisrepo "review-auth/internal/repository/redis"
	"review-auth/internal/repository/scylla"
	"review-auth/internal/secrets"
	"review-auth/internal/service"
	"review-auth/internal/session"
	"review-auth/internal/token"
	"review-auth/internal/util"
)

// Factory wires the whole service. Redis and Scylla are required; the audit
// sinks (Kafka, ClickHouse, Elasticsearch) are optional and degrade to a
// warning when their backend is unreachable.
type Factory struct {
	Config *config.Config

	Redis  *client.RedisClient
	Scylla *scylla.ScyllaClient

	kafka      *client.KafkaProducer
	clickhouse *client.ClickHouseClient
	elastic    *client.ESClient

	Buckets         *bucketing.Manager
	Codec           *token.Codec
	Validator       *token.Validator
	Sweeper         *token.Sweeper
	RevocationStore *redisrepo.RevocationStore
	Sessions        *session.Manager
	Users           scylla.UserRepository
	Recorder        *audit.Recorder
	AuthService     *service.AuthService
	Chain           *filter.Chain
	AuthHandler     *handler.AuthHandler
}

func NewFactory(ctx context.Context, cfg *config.Config) (*Factory, error) {
	f := &Factory{Config: cfg}

	redisClient, err := client.NewRedisClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	f.Redis = redisClient

	scyllaClient, err := scylla.NewScyllaClient(cfg)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to connect to scylla: %w", err)
	}
	f.Scylla = scyllaClient

	f.Buckets = bucketing.NewManager(cfg)

	keys, err := secrets.ResolveSigningKeys(ctx, cfg)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to resolve signing keys: %w", err)
	}

	f.Codec, err = token.NewCodec(keys, cfg.JWT.ActiveKeyID, cfg.JWT.TTL)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to build token codec: %w", err)
	}

	f.RevocationStore = redisrepo.NewRevocationStore(redisClient.Client, f.Buckets)
	f.Validator = token.NewValidator(f.Codec, f.RevocationStore)
	f.Sweeper = token.NewSweeper(f.RevocationStore, cfg.Security.SweepInterval)

	sessionStore := redisrepo.NewSessionStore(redisClient.Client)
	f.Sessions = session.NewManager(sessionStore, cfg.Session.CookieName,
		cfg.Session.TTL, cfg.Session.CookieSecure)

	f.Users = scylla.NewUserRepository(scyllaClient)

	f.Recorder = audit.NewRecorder(f.Buckets, f.buildSinks(cfg)...)

	f.AuthService = service.NewAuthService(f.Users, hashing.NewHasher(hashing.DefaultParams), f.Recorder)

	f.Chain = filter.NewChain(f.Sessions, f.Recorder, f.buildInspectors(cfg)...)

	f.AuthHandler = handler.NewAuthHandler(f.AuthService, f.Codec, f.Validator, f.Sessions, f.Recorder)

	util.Info("Service components initialized",
		zap.Bool("kafka", f.kafka != nil),
		zap.Bool("clickhouse", f.clickhouse != nil),
		zap.Bool("elasticsearch", f.elastic != nil),
		zap.Bool("injection_filter", cfg.Security.InjectionFilterEnabled))

	return f, nil
}

// buildSinks connects the optional audit backends. A failed backend is
// logged and skipped; security events still flow to the remaining sinks.
func (f *Factory) buildSinks(cfg *config.Config) []audit.Sink {
	var sinks []audit.Sink

	if cfg.Kafka.Enabled {
		producer, err := client.NewKafkaProducer(cfg)
		if err != nil {
			util.Warn("Kafka unavailable, events will not be streamed", zap.Error(err))
		} else {
			f.kafka = producer
			sinks = append(sinks, &audit.KafkaSink{Producer: producer})
		}
	}

	if cfg.Clickhouse.Enabled {
		ch, err := client.NewClickHouseClient(cfg)
		if err != nil {
			util.Warn("ClickHouse unavailable, events will not be archived", zap.Error(err))
		} else {
			f.clickhouse = ch
			sinks = append(sinks, &audit.ClickHouseSink{Client: ch})
		}
	}

	if cfg.Elasticsearch.Enabled {
		es, err := client.NewElasticsearchClient(cfg)
		if err != nil {
			util.Warn("Elasticsearch unavailable, events will not be indexed", zap.Error(err))
		} else {
			f.elastic = es
			sinks = append(sinks, &audit.ElasticsearchSink{Client: es})
		}
	}

	return sinks
}

// buildInspectors fixes the defense order: path traversal first, then ban
// enforcement, then hijack detection, then pattern scanning.
func (f *Factory) buildInspectors(cfg *config.Config) []filter.Inspector {
	inspectors := []filter.Inspector{
		filter.NewPathTraversalInspector(),
		filter.NewBannedInspector(f.Sessions, f.Users, f.Codec),
		filter.NewHijackInspector(f.Sessions),
	}
	if cfg.Security.InjectionFilterEnabled {
		inspectors = append(inspectors, filter.NewInjectionInspector())
	}
	return inspectors
}

// HealthCheck pings the required backends.
func (f *Factory) HealthCheck(ctx context.Context) error {
	if err := f.Redis.HealthCheck(ctx); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := f.Scylla.HealthCheck(); err != nil {
		return fmt.Errorf("scylla: %w", err)
	}
	return nil
}

// Close releases backends in reverse construction order.
func (f *Factory) Close() {
	if f.kafka != nil {
		if err := f.kafka.Close(); err != nil {
			util.Warn("Kafka close failed", zap.Error(err))
		}
	}
	if f.clickhouse != nil {
		if err := f.clickhouse.Close(); err != nil {
			util.Warn("ClickHouse close failed", zap.Error(err))
		}
	}
	if f.Scylla != nil {
		f.Scylla.Close()
	}
	if f.Redis != nil {
		if err := f.Redis.Close(); err != nil {
			util.Warn("Redis close failed", zap.Error(err))
		}
	}
}
