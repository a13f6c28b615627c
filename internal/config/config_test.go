package config

import "testing"

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.BlockSize != 1 {
		t.Errorf("BlockSize = %d, want 1", cfg.BlockSize)
	}
	if cfg.Store != "fs" {
		t.Errorf("Store = %q, want fs", cfg.Store)
	}
	if cfg.S3Region != "us-east-1" {
		t.Errorf("S3Region = %q", cfg.S3Region)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("LAZYRASTER_LOG_LEVEL", "debug")
	t.Setenv("LAZYRASTER_LOG_CONSOLE", "yes")
	t.Setenv("LAZYRASTER_WORKERS", "3")
	t.Setenv("LAZYRASTER_CHUNK_CACHE", "128")
	t.Setenv("LAZYRASTER_BLOCK_SIZE", "4")
	t.Setenv("LAZYRASTER_STORE", "S3")
	t.Setenv("LAZYRASTER_S3_BUCKET", "rasters")
	t.Setenv("LAZYRASTER_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("LAZYRASTER_S3_PATH_STYLE", "true")
	t.Setenv("LAZYRASTER_REDIS_ADDR", "redis:6379")

	cfg := FromEnv()
	if cfg.LogLevel != "debug" || !cfg.LogConsole {
		t.Errorf("log settings = %q, %v", cfg.LogLevel, cfg.LogConsole)
	}
	if cfg.Workers != 3 || cfg.ChunkCache != 128 || cfg.BlockSize != 4 {
		t.Errorf("engine settings = %d, %d, %d", cfg.Workers, cfg.ChunkCache, cfg.BlockSize)
	}
	if cfg.Store != "s3" || cfg.S3Bucket != "rasters" || !cfg.S3PathStyle {
		t.Errorf("s3 settings = %+v", cfg)
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Errorf("RedisAddr = %q", cfg.RedisAddr)
	}
}

func TestFromEnv_ClampsInvalidValues(t *testing.T) {
	t.Setenv("LAZYRASTER_BLOCK_SIZE", "0")
	t.Setenv("LAZYRASTER_WORKERS", "-2")
	t.Setenv("LAZYRASTER_CHUNK_CACHE", "lots")
	t.Setenv("LAZYRASTER_LOG_CONSOLE", "maybe")

	cfg := FromEnv()
	if cfg.BlockSize != 1 {
		t.Errorf("BlockSize = %d, want 1", cfg.BlockSize)
	}
	if cfg.Workers != 0 {
		t.Errorf("Workers = %d, want 0", cfg.Workers)
	}
	if cfg.ChunkCache != 0 {
		t.Errorf("ChunkCache = %d, want 0", cfg.ChunkCache)
	}
	if cfg.LogConsole {
		t.Error("unparseable bool should keep the default")
	}
}
