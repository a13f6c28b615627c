package s3

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
)

func TestNewClient_AppliesEndpointAndPathStyle(t *testing.T) {
	client, err := NewClient(t.Context(), ClientConfig{
		Region:       "us-east-1",
		Endpoint:     "http://localhost:9000",
		UsePathStyle: true,
		Credentials:  StaticCredentials("minioadmin", "minioadmin"),
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	opts := client.Options()
	if opts.Region != "us-east-1" {
		t.Errorf("Region = %q", opts.Region)
	}
	if aws.ToString(opts.BaseEndpoint) != "http://localhost:9000" {
		t.Errorf("BaseEndpoint = %q", aws.ToString(opts.BaseEndpoint))
	}
	if !opts.UsePathStyle {
		t.Error("UsePathStyle should be set")
	}
}

func TestStaticCredentials_EmptyKeyUsesDefaultChain(t *testing.T) {
	if StaticCredentials("", "secret") != nil {
		t.Error("empty key should yield nil provider")
	}
	if StaticCredentials("key", "secret") == nil {
		t.Error("non-empty key should yield a provider")
	}
}
