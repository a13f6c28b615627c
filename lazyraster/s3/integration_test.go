package s3_test

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	s3client "github.com/justapithecus/lazyraster/internal/s3"
	"github.com/justapithecus/lazyraster/internal/storage"
	"github.com/justapithecus/lazyraster/internal/testutil"
	"github.com/justapithecus/lazyraster/lazyraster"
	"github.com/justapithecus/lazyraster/lazyraster/s3"
)

// flagIntegration gates integration tests that require running S3 services.
// Pass -integration to enable.
var flagIntegration = flag.Bool("integration", false, "run integration tests (requires LocalStack and MinIO)")

// Integration tests for S3-compatible backends.
//
// To run:
//
//	docker run -d -p 4566:4566 localstack/localstack
//	docker run -d -p 9000:9000 minio/minio server /data
//	go test -v ./lazyraster/s3/... -integration
func skipIfNoS3(t *testing.T) {
	t.Helper()
	if !*flagIntegration {
		t.Skip("skipping integration test; use -integration to enable")
	}
}

// s3Backend describes an S3-compatible backend for table-driven tests.
type s3Backend struct {
	name string
	cfg  s3client.ClientConfig
}

var s3Backends = []s3Backend{
	{"LocalStack", s3client.ClientConfig{
		Region:       "us-east-1",
		Endpoint:     "http://localhost:4566",
		UsePathStyle: true,
		Credentials:  s3client.StaticCredentials("test", "test"),
	}},
	{"MinIO", s3client.ClientConfig{
		Region:       "us-east-1",
		Endpoint:     "http://localhost:9000",
		UsePathStyle: true,
		Credentials:  s3client.StaticCredentials("minioadmin", "minioadmin"),
	}},
}

// setupTestBucket creates a unique bucket and registers cleanup via t.Cleanup.
func setupTestBucket(t *testing.T, backend s3Backend) *s3.Store {
	t.Helper()
	skipIfNoS3(t)

	ctx := t.Context()
	client, err := s3client.NewClient(ctx, backend.cfg)
	if err != nil {
		t.Fatalf("failed to create %s client: %v", backend.name, err)
	}

	bucket := fmt.Sprintf("lazyraster-test-%d", time.Now().UnixNano())
	_, err = client.CreateBucket(ctx, &awss3.CreateBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	t.Cleanup(func() {
		cleanupCtx := context.Background()
		p := awss3.NewListObjectsV2Paginator(client, &awss3.ListObjectsV2Input{Bucket: aws.String(bucket)})
		for p.HasMorePages() {
			out, err := p.NextPage(cleanupCtx)
			if err != nil {
				break
			}
			for _, obj := range out.Contents {
				_, _ = client.DeleteObject(cleanupCtx, &awss3.DeleteObjectInput{Bucket: aws.String(bucket), Key: obj.Key})
			}
		}
		_, _ = client.DeleteBucket(cleanupCtx, &awss3.DeleteBucketInput{Bucket: aws.String(bucket)})
	})

	store, err := s3.New(client, s3.Config{Bucket: bucket, Prefix: "rasters"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func TestIntegration_PutOverwriteList(t *testing.T) {
	for _, backend := range s3Backends {
		t.Run(backend.name, func(t *testing.T) {
			store := setupTestBucket(t, backend)
			ctx := t.Context()

			key := "r/b1/0.0"
			for _, content := range []string{"first", "second"} {
				if err := store.Put(ctx, key, bytes.NewReader([]byte(content))); err != nil {
					t.Fatalf("Put failed: %v", err)
				}
			}

			keys, err := store.List(ctx, "r/")
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if !slices.Contains(keys, key) {
				t.Errorf("expected key %q in list, got %v", key, keys)
			}

			data, err := storage.ReadAll(ctx, store, key)
			if err != nil {
				t.Fatalf("ReadAll failed: %v", err)
			}
			if string(data) != "second" {
				t.Errorf("expected overwritten content, got %q", data)
			}
		})
	}
}

func TestIntegration_RasterRoundTrip(t *testing.T) {
	for _, backend := range s3Backends {
		t.Run(backend.name, func(t *testing.T) {
			store := setupTestBucket(t, backend)
			ctx := t.Context()

			data, err := testutil.WriteSample(ctx, store, "sample")
			if err != nil {
				t.Fatalf("WriteSample failed: %v", err)
			}

			a, err := lazyraster.ReadRaster(ctx, "sample", lazyraster.AllBands(), lazyraster.WithStore(store), lazyraster.WithBlockSize(2))
			if err != nil {
				t.Fatalf("ReadRaster failed: %v", err)
			}
			if err := lazyraster.WriteRaster(ctx, "copy", a, testutil.SampleProfile(), lazyraster.WithStore(store)); err != nil {
				t.Fatalf("WriteRaster failed: %v", err)
			}

			back, err := lazyraster.ReadRaster(ctx, "copy", lazyraster.AllBands(), lazyraster.WithStore(store))
			if err != nil {
				t.Fatalf("ReadRaster failed: %v", err)
			}
			got, err := back.Compute(ctx)
			if err != nil {
				t.Fatalf("Compute failed: %v", err)
			}
			if !got.Equal(data) {
				t.Error("raster copy differs from source")
			}
			if err := lazyraster.Verify(ctx, "copy", lazyraster.WithStore(store)); err != nil {
				t.Errorf("Verify failed: %v", err)
			}
		})
	}
}
