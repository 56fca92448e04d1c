package cli

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/chatflow"
	"github.com/aretw0/chatflow/pkg/adapters/dynamodb"
	"github.com/aretw0/chatflow/pkg/adapters/file"
	"github.com/aretw0/chatflow/pkg/adapters/postgres"
	"github.com/aretw0/chatflow/pkg/adapters/redis"
	"github.com/aretw0/chatflow/pkg/adapters/sqlite"
	"github.com/aretw0/chatflow/pkg/adapters/yaml"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/observability"
	"github.com/aretw0/chatflow/pkg/persistence/middleware"
	"github.com/aretw0/chatflow/pkg/ports"
)

// DefaultDir is where the CLI keeps device state.
const DefaultDir = ".chatflow"

// LocalStore is a local store the CLI can list and close.
type LocalStore interface {
	ports.LocalStore
	ports.KeyLister
}

// remoteStore is what every shipped remote adapter provides.
type remoteStore interface {
	ports.RemoteStore
	middleware.MetadataWriter
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// LoadFlow reads a flow file.
func LoadFlow(path string) (*domain.Graph, error) {
	if path == "" {
		return nil, errors.New("flow file is required")
	}
	return yaml.Load(path)
}

// OpenLocalStore opens the device store selected by opts.
func OpenLocalStore(opts StoreOptions) (LocalStore, func() error, error) {
	dir := opts.Dir
	if dir == "" {
		dir = DefaultDir
	}

	switch opts.Local {
	case "", "file":
		return file.New(filepath.Join(dir, "store")), nopCloser{}.Close, nil
	case "sqlite":
		store, err := sqlite.Open(filepath.Join(dir, "chatflow.db"))
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown local store %q (want file or sqlite)", opts.Local)
	}
}

// openRemoteStore returns nil when no remote is configured.
func openRemoteStore(ctx context.Context, opts StoreOptions) (remoteStore, func() error, error) {
	configured := 0
	for _, set := range []bool{opts.RedisAddr != "", opts.DynamoTable != "", opts.PostgresDSN != ""} {
		if set {
			configured++
		}
	}
	if configured > 1 {
		return nil, nil, errors.New("configure at most one remote store")
	}

	switch {
	case opts.RedisAddr != "":
		redisOpts := []redis.Option{redis.WithTTL(opts.RemoteTTL)}
		if opts.RedisPrefix != "" {
			redisOpts = append(redisOpts, redis.WithPrefix(opts.RedisPrefix))
		}
		store := redis.New(opts.RedisAddr, opts.RedisPassword, opts.RedisDB, redisOpts...)
		return store, store.Close, nil

	case opts.DynamoTable != "":
		store, err := dynamodb.Dial(ctx, opts.DynamoTable, dynamodb.WithTTL(opts.RemoteTTL))
		if err != nil {
			return nil, nil, err
		}
		return store, nopCloser{}.Close, nil

	case opts.PostgresDSN != "":
		pool, err := postgres.NewPool(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		store := postgres.New(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, func() error { pool.Close(); return nil }, nil
	}
	return nil, nopCloser{}.Close, nil
}

// remoteMiddlewares builds the decorators requested by opts.
func remoteMiddlewares(opts StoreOptions) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(opts.PIIPatterns) > 0 {
		pii, err := middleware.NewPIIMiddleware(opts.PIIPatterns)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}
	if opts.EncryptionKey != "" {
		key, err := base64.StdEncoding.DecodeString(opts.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("encryption key: %w", err)
		}
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	return mws, nil
}

// Bundle is an engine plus the stores backing it.
type Bundle struct {
	Engine *chatflow.Engine
	Local  LocalStore
	close  []func() error
}

// Close releases sessions and stores.
func (b *Bundle) Close() error {
	if b.Engine != nil {
		b.Engine.Close()
	}
	return b.closeStores()
}

// createEngine wires a chatflow engine with standard CLI conventions.
func createEngine(ctx context.Context, graph *domain.Graph, opts RunOptions, logger *slog.Logger, extra ...chatflow.Option) (*Bundle, error) {
	strategy, err := domain.ParseSaveStrategy(opts.SaveStrategy)
	if err != nil {
		return nil, err
	}

	local, closeLocal, err := OpenLocalStore(opts.Store)
	if err != nil {
		return nil, err
	}
	b := &Bundle{Local: local, close: []func() error{closeLocal}}

	engineOpts := []chatflow.Option{
		chatflow.WithLogger(logger),
		chatflow.WithLocalStore(local),
		chatflow.WithSaveStrategy(strategy),
	}
	if opts.Scenario != "" {
		engineOpts = append(engineOpts, chatflow.WithScenario(opts.Scenario))
	}
	if opts.Session != "" {
		engineOpts = append(engineOpts, chatflow.WithSessionRequest(domain.SessionRequest(opts.Session)))
	}
	if opts.RemoteTimeout > 0 {
		engineOpts = append(engineOpts, chatflow.WithRemoteTimeout(opts.RemoteTimeout))
	}
	if opts.Debug {
		engineOpts = append(engineOpts, chatflow.WithLifecycleHooks(observability.LoggingHooks(logger)))
	}

	remote, closeRemote, err := openRemoteStore(ctx, opts.Store)
	if err != nil {
		_ = b.closeStores()
		return nil, err
	}
	b.close = append(b.close, closeRemote)

	if remote != nil {
		mws, err := remoteMiddlewares(opts.Store)
		if err != nil {
			_ = b.closeStores()
			return nil, err
		}
		var target ports.RemoteStore = remote
		if opts.Store.MetadataOnly {
			target = middleware.NewMetadataOnly(remote)
		}
		engineOpts = append(engineOpts, chatflow.WithRemoteStore(target, mws...))
	}

	engineOpts = append(engineOpts, extra...)
	eng, err := chatflow.New(graph, engineOpts...)
	if err != nil {
		_ = b.closeStores()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	b.Engine = eng
	return b, nil
}

func (b *Bundle) closeStores() error {
	var errs []error
	for i := len(b.close) - 1; i >= 0; i-- {
		errs = append(errs, b.close[i]())
	}
	return errors.Join(errs...)
}
