package lazyraster

import (
	"bytes"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/justapithecus/lazyraster/array"
	"github.com/justapithecus/lazyraster/internal/config"
	"github.com/justapithecus/lazyraster/internal/storage"
	"github.com/justapithecus/lazyraster/internal/testutil"
	"github.com/justapithecus/lazyraster/lazyraster/redisstore"
)

func TestOptionsFromEnv_Defaults(t *testing.T) {
	env, err := OptionsFromEnv(t.Context())
	if err != nil {
		t.Fatalf("OptionsFromEnv failed: %v", err)
	}
	defer func() { _ = env.Close() }()

	if env.Store != nil {
		t.Errorf("default store = %T, want nil", env.Store)
	}
	if env.Cache != nil {
		t.Error("cache should be disabled by default")
	}
	if got := len(env.ReadOptions()); got != 1 {
		t.Errorf("ReadOptions has %d options, want 1", got)
	}
	if got := len(env.WriteOptions()); got != 0 {
		t.Errorf("WriteOptions has %d options, want 0", got)
	}
}

func TestOptionsFromEnv_MemoryStoreAndCache(t *testing.T) {
	t.Setenv("LAZYRASTER_STORE", "memory")
	t.Setenv("LAZYRASTER_CHUNK_CACHE", "32")
	t.Setenv("LAZYRASTER_WORKERS", "2")
	t.Setenv("LAZYRASTER_BLOCK_SIZE", "2")
	ctx := t.Context()

	env, err := OptionsFromEnv(ctx)
	if err != nil {
		t.Fatalf("OptionsFromEnv failed: %v", err)
	}
	defer func() { _ = env.Close() }()

	if _, ok := env.Store.(*storage.Memory); !ok {
		t.Fatalf("store = %T, want *storage.Memory", env.Store)
	}
	data, err := testutil.WriteSample(ctx, env.Store, samplePath)
	if err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}

	a, err := ReadRasterBand(ctx, samplePath, 1, env.ReadOptions()...)
	if err != nil {
		t.Fatalf("ReadRasterBand failed: %v", err)
	}
	if chunks := a.Chunks(); chunks[0][0] != 2*testutil.SampleBlock {
		t.Errorf("chunks = %v, want block size 2", chunks)
	}
	assertEqual(t, compute(t, a, env.ComputeOptions()...), testutil.Band(data, 1))
	if env.Cache.Len() == 0 {
		t.Error("expected computed chunks in the shared cache")
	}

	if err := WriteRaster(ctx, "copy", a, outProfile(), env.WriteOptions()...); err != nil {
		t.Fatalf("WriteRaster failed: %v", err)
	}
}

func TestOptionsFromEnv_UnknownStore(t *testing.T) {
	t.Setenv("LAZYRASTER_STORE", "ftp")
	if _, err := OptionsFromEnv(t.Context()); err == nil {
		t.Fatal("expected error for unknown store")
	}
}

func TestOptionsFromEnv_FilesystemRoot(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LAZYRASTER_ROOT", dir)

	env, err := OptionsFromEnv(t.Context())
	if err != nil {
		t.Fatalf("OptionsFromEnv failed: %v", err)
	}
	fs, ok := env.Store.(*storage.FS)
	if !ok || fs.Root() != dir {
		t.Fatalf("store = %#v, want FS rooted at %s", env.Store, dir)
	}
}

func TestOptionsFromEnv_S3RequiresBucket(t *testing.T) {
	t.Setenv("LAZYRASTER_STORE", "s3")
	t.Setenv("LAZYRASTER_S3_ACCESS_KEY_ID", "key")
	t.Setenv("LAZYRASTER_S3_SECRET_ACCESS_KEY", "secret")
	if _, err := OptionsFromEnv(t.Context()); err == nil {
		t.Fatal("expected error without a bucket")
	}
}

func TestOptionsFromEnv_RedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	t.Setenv("LAZYRASTER_STORE", "redis")
	t.Setenv("LAZYRASTER_REDIS_ADDR", mr.Addr())
	ctx := t.Context()

	env, err := OptionsFromEnv(ctx)
	if err != nil {
		t.Fatalf("OptionsFromEnv failed: %v", err)
	}
	defer func() { _ = env.Close() }()
	if _, ok := env.Store.(*redisstore.Store); !ok {
		t.Fatalf("store = %T, want *redisstore.Store", env.Store)
	}

	band := testutil.Band(testutil.SampleData(), 1)
	p := outProfile()
	p.Count = 1
	if err := WriteRaster(ctx, "out", band, p, env.WriteOptions()...); err != nil {
		t.Fatalf("WriteRaster failed: %v", err)
	}
	if !mr.Exists("lazyraster/out/raster.json") {
		t.Error("expected header under the redis keyspace")
	}
	a, err := ReadRasterBand(ctx, "out", 1, env.ReadOptions()...)
	if err != nil {
		t.Fatalf("ReadRasterBand failed: %v", err)
	}
	assertEqual(t, compute(t, a), band)
}

func TestEnv_ContextLogsGraphBuild(t *testing.T) {
	var buf bytes.Buffer
	env, err := envFrom(t.Context(), config.Config{Store: "memory", LogLevel: "debug", BlockSize: 1}, &buf)
	if err != nil {
		t.Fatalf("envFrom failed: %v", err)
	}
	ctx := env.Context(t.Context())
	if _, err := testutil.WriteSample(ctx, env.Store, samplePath); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}

	a, err := ReadRasterBand(ctx, samplePath, 2, env.ReadOptions()...)
	if err != nil {
		t.Fatalf("ReadRasterBand failed: %v", err)
	}
	p := outProfile()
	p.Count = 1
	if err := WriteRaster(ctx, "out", a, p, append(env.WriteOptions(), WithCache(mustCache(t)))...); err != nil {
		t.Fatalf("WriteRaster failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"msg":"graph build"`, `"component":"lazyraster"`, `"op":"write_raster"`, `"msg":"sink open"`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in log output:\n%s", want, out)
		}
	}
}

func mustCache(t *testing.T) *array.Cache {
	t.Helper()
	c, err := array.NewCache(8)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	return c
}
