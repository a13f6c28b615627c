// Package config reads library settings from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Prefix is prepended to every environment variable name.
const Prefix = "LAZYRASTER_"

type Config struct {
	LogLevel   string
	LogConsole bool

	Workers    int
	ChunkCache int
	BlockSize  int

	Store string
	Root  string

	S3Bucket    string
	S3Prefix    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
	S3AccessKey string
	S3SecretKey string

	RedisAddr   string
	RedisPrefix string
}

func FromEnv() Config {
	blockSize := getint("BLOCK_SIZE", 1)
	if blockSize < 1 {
		blockSize = 1
	}
	workers := getint("WORKERS", 0)
	if workers < 0 {
		workers = 0
	}

	return Config{
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),

		Workers:    workers,
		ChunkCache: max(getint("CHUNK_CACHE", 0), 0),
		BlockSize:  blockSize,

		Store: strings.ToLower(getenv("STORE", "fs")),
		Root:  getenv("ROOT", ""),

		S3Bucket:    getenv("S3_BUCKET", ""),
		S3Prefix:    getenv("S3_PREFIX", ""),
		S3Region:    getenv("S3_REGION", "us-east-1"),
		S3Endpoint:  getenv("S3_ENDPOINT", ""),
		S3PathStyle: getbool("S3_PATH_STYLE", false),
		S3AccessKey: getenv("S3_ACCESS_KEY_ID", ""),
		S3SecretKey: getenv("S3_SECRET_ACCESS_KEY", ""),

		RedisAddr:   getenv("REDIS_ADDR", "localhost:6379"),
		RedisPrefix: getenv("REDIS_PREFIX", "lazyraster"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(Prefix + k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(Prefix + k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(Prefix + k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}
