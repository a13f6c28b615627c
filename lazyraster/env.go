package lazyraster

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/justapithecus/lazyraster/array"
	"github.com/justapithecus/lazyraster/internal/config"
	"github.com/justapithecus/lazyraster/internal/logger"
	s3client "github.com/justapithecus/lazyraster/internal/s3"
	"github.com/justapithecus/lazyraster/internal/storage"
	"github.com/justapithecus/lazyraster/lazyraster/redisstore"
	s3store "github.com/justapithecus/lazyraster/lazyraster/s3"
)

// Env is the configuration read from LAZYRASTER_* environment variables.
type Env struct {
	Config config.Config

	// Store is the configured store, or nil for the per-path filesystem default.
	Store Store

	// Cache is shared by every evaluation using Compute or Write options.
	// Nil unless LAZYRASTER_CHUNK_CACHE is positive.
	Cache *array.Cache

	// Logger is built from LAZYRASTER_LOG_LEVEL and LAZYRASTER_LOG_CONSOLE.
	Logger zerolog.Logger

	closer io.Closer
}

// OptionsFromEnv reads LAZYRASTER_* variables and connects the configured
// store. LAZYRASTER_STORE selects "fs" (default), "memory", "s3" or "redis".
// Close the Env when done to release store connections.
func OptionsFromEnv(ctx context.Context) (*Env, error) {
	return envFrom(ctx, config.FromEnv(), os.Stderr)
}

func envFrom(ctx context.Context, cfg config.Config, logOut io.Writer) (*Env, error) {
	env := &Env{
		Config: cfg,
		Logger: logger.Build(logger.Config{
			Level:     cfg.LogLevel,
			Console:   cfg.LogConsole,
			Component: "lazyraster",
		}, logOut),
	}

	switch cfg.Store {
	case "", "fs":
		if cfg.Root != "" {
			fs, err := storage.NewFS(cfg.Root)
			if err != nil {
				return nil, fmt.Errorf("lazyraster: store root: %w", err)
			}
			env.Store = fs
		}
	case "memory":
		env.Store = storage.NewMemory()
	case "s3":
		st, err := s3store.NewWithClientConfig(ctx, s3client.ClientConfig{
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			UsePathStyle: cfg.S3PathStyle,
			Credentials:  s3client.StaticCredentials(cfg.S3AccessKey, cfg.S3SecretKey),
		}, s3store.Config{Bucket: cfg.S3Bucket, Prefix: cfg.S3Prefix})
		if err != nil {
			return nil, fmt.Errorf("lazyraster: %w", err)
		}
		env.Store = st
	case "redis":
		st, err := redisstore.New(ctx, cfg.RedisAddr, cfg.RedisPrefix)
		if err != nil {
			return nil, fmt.Errorf("lazyraster: %w", err)
		}
		env.Store = st
		env.closer = st
	default:
		return nil, fmt.Errorf("lazyraster: unknown store %q", cfg.Store)
	}

	if cfg.ChunkCache > 0 {
		c, err := array.NewCache(cfg.ChunkCache)
		if err != nil {
			_ = env.Close()
			return nil, fmt.Errorf("lazyraster: %w", err)
		}
		env.Cache = c
	}
	return env, nil
}

// Context attaches the configured logger to ctx.
func (e *Env) Context(ctx context.Context) context.Context {
	return logger.Attach(ctx, e.Logger)
}

// ReadOptions returns the options for ReadRaster and ReadRasterBand.
func (e *Env) ReadOptions() []Option {
	opts := []Option{WithBlockSize(e.Config.BlockSize)}
	if e.Store != nil {
		opts = append(opts, WithStore(e.Store))
	}
	return opts
}

// WriteOptions returns the options for WriteRaster.
func (e *Env) WriteOptions() []Option {
	var opts []Option
	if e.Store != nil {
		opts = append(opts, WithStore(e.Store))
	}
	if e.Config.Workers > 0 {
		opts = append(opts, WithWorkers(e.Config.Workers))
	}
	if e.Cache != nil {
		opts = append(opts, WithCache(e.Cache))
	}
	return opts
}

// ComputeOptions returns the options for evaluating read arrays.
func (e *Env) ComputeOptions() []array.Option {
	var opts []array.Option
	if e.Config.Workers > 0 {
		opts = append(opts, array.WithWorkers(e.Config.Workers))
	}
	if e.Cache != nil {
		opts = append(opts, array.WithCache(e.Cache))
	}
	return opts
}

// Close releases the store connection, if any.
func (e *Env) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer.Close()
}
