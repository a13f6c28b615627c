package redisstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/justapithecus/lazyraster/internal/storage"
)

func newMini(t *testing.T, keyspace string) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	s, err := New(ctx, mr.Addr(), keyspace)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestNew_RequiresAddr(t *testing.T) {
	if _, err := New(t.Context(), "", "x"); err == nil {
		t.Fatal("expected error for empty address")
	}
}

func TestNew_RejectsEscapingKeyspace(t *testing.T) {
	if _, err := New(t.Context(), "localhost:0", "../up"); !errors.Is(err, storage.ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
}

func TestPutGet_UsesKeyspace(t *testing.T) {
	s, mr := newMini(t, "rasters")
	ctx := t.Context()

	if err := s.Put(ctx, "dem/b1/0.0", bytes.NewReader([]byte("tile"))); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if got, err := mr.Get("rasters/dem/b1/0.0"); err != nil || got != "tile" {
		t.Fatalf("raw key = %q, %v", got, err)
	}

	rc, err := s.Get(ctx, "dem/b1/0.0")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	b, _ := io.ReadAll(rc)
	if string(b) != "tile" {
		t.Fatalf("Get = %q", b)
	}
}

func TestPut_Overwrites(t *testing.T) {
	s, _ := newMini(t, "")
	ctx := t.Context()

	_ = s.Put(ctx, "k", bytes.NewReader([]byte("old")))
	if err := s.Put(ctx, "k", bytes.NewReader([]byte("new"))); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := storage.ReadAll(ctx, s, "k")
	if err != nil || string(got) != "new" {
		t.Fatalf("ReadAll = %q, %v", got, err)
	}
}

func TestGet_MissingIsErrNotFound(t *testing.T) {
	s, _ := newMini(t, "rasters")
	if _, err := s.Get(t.Context(), "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExistsAndDelete(t *testing.T) {
	s, _ := newMini(t, "rasters")
	ctx := t.Context()

	_ = s.Put(ctx, "a", bytes.NewReader([]byte("x")))
	ok, err := s.Exists(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	ok, _ = s.Exists(ctx, "a")
	if ok {
		t.Fatal("expected a to be deleted")
	}
}

func TestList_PrefixAndGlobCharacters(t *testing.T) {
	s, mr := newMini(t, "rasters")
	ctx := t.Context()

	for _, p := range []string{"a/raster.json", "a/b1/0.0", "ab/raster.json", "we*ird/raster.json", "weird/x"} {
		if err := s.Put(ctx, p, bytes.NewReader([]byte(p))); err != nil {
			t.Fatalf("Put(%q): %v", p, err)
		}
	}
	// Outside the keyspace.
	_ = mr.Set("other/a/raster.json", "x")

	got, err := s.List(ctx, "a/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if want := []string{"a/b1/0.0", "a/raster.json"}; !slices.Equal(got, want) {
		t.Fatalf("List(a/) = %v, want %v", got, want)
	}

	got, _ = s.List(ctx, "we*ird/")
	if want := []string{"we*ird/raster.json"}; !slices.Equal(got, want) {
		t.Fatalf("List(we*ird/) = %v, want %v", got, want)
	}
}

func TestList_ManyKeysAcrossScanPages(t *testing.T) {
	s, _ := newMini(t, "rasters")
	ctx := t.Context()

	const n = 1300
	for i := range n {
		if err := s.Put(ctx, fmt.Sprintf("big/b1/%d.0", i), bytes.NewReader(nil)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	got, err := s.List(ctx, "big/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != n {
		t.Fatalf("List returned %d paths, want %d", len(got), n)
	}

	if err := storage.DeletePrefix(ctx, s, "big/"); err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	got, _ = s.List(ctx, "big/")
	if len(got) != 0 {
		t.Fatalf("expected empty listing after DeletePrefix, got %d", len(got))
	}
}

func TestInvalidPaths(t *testing.T) {
	s, _ := newMini(t, "")
	for _, p := range []string{"", "..", "../x"} {
		if err := s.Put(t.Context(), p, bytes.NewReader(nil)); !errors.Is(err, storage.ErrInvalidPath) {
			t.Errorf("Put(%q): expected ErrInvalidPath, got %v", p, err)
		}
	}
}

func TestCanceledContext(t *testing.T) {
	s, _ := newMini(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Put(ctx, "k", bytes.NewReader([]byte("v"))); err == nil {
		t.Fatal("expected error on Put with canceled context")
	}
	if _, err := s.Get(ctx, "k"); err == nil {
		t.Fatal("expected error on Get with canceled context")
	}
}
