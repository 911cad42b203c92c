package s3blob

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alanyoungcy/polydash/internal/domain"
)

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		in     string
		useSSL bool
		want   string
	}{
		{"http://localhost:9000", true, "http://localhost:9000"},
		{"https://r2.example.com", false, "https://r2.example.com"},
		{"minio:9000", false, "http://minio:9000"},
		{"localhost:9000", true, "https://localhost:9000"},
		{"127.0.0.1:9000", false, "http://127.0.0.1:9000"},
		{"s3.example.com", true, "https://s3.example.com"},
	}
	for _, tt := range tests {
		if got := normaliseEndpoint(tt.in, tt.useSSL); got != tt.want {
			t.Errorf("normaliseEndpoint(%q, %v) = %q, want %q", tt.in, tt.useSSL, got, tt.want)
		}
	}
}

type statusErr int

func (e statusErr) Error() string       { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) HTTPStatusCode() int { return int(e) }

func TestIsNotFound(t *testing.T) {
	if !isNotFound(fmt.Errorf("wrapped: %w", &types.NoSuchKey{})) {
		t.Error("NoSuchKey")
	}
	if !isNotFound(&types.NotFound{}) {
		t.Error("NotFound")
	}
	if !isNotFound(statusErr(404)) {
		t.Error("bare 404")
	}
	if isNotFound(statusErr(500)) || isNotFound(errors.New("boom")) {
		t.Error("false positive")
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(context.Background(), ClientConfig{Region: "us-east-1"}); err == nil {
		t.Error("missing bucket accepted")
	}
	if _, err := New(context.Background(), ClientConfig{Bucket: "b"}); err == nil {
		t.Error("missing region accepted")
	}
	c, err := New(context.Background(), ClientConfig{
		Bucket: "b", Region: "us-east-1", Endpoint: "localhost:9000", ForcePathStyle: true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Bucket() != "b" {
		t.Errorf("bucket = %q", c.Bucket())
	}
	var _ domain.BlobWriter = NewWriter(c)
	var _ domain.BlobReader = NewReader(c)
}
