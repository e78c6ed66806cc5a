package storage

import (
	"context"
	"testing"

	"github.com/erp/manufacturing/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3ObjectStorage_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.StorageConfig
		wantErr string
	}{
		{name: "nil config", cfg: nil, wantErr: "configuration is required"},
		{name: "missing bucket", cfg: &config.StorageConfig{AccessKey: "k", SecretKey: "s"}, wantErr: "bucket is required"},
		{name: "missing keys", cfg: &config.StorageConfig{Bucket: "b"}, wantErr: "secret key are required"},
		{name: "bad endpoint", cfg: &config.StorageConfig{Bucket: "b", AccessKey: "k", SecretKey: "s", Endpoint: "http://"}, wantErr: "invalid storage endpoint"},
		{name: "valid", cfg: &config.StorageConfig{Bucket: "b", AccessKey: "k", SecretKey: "s", Endpoint: "localhost:9000", UsePathStyle: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewS3ObjectStorage(context.Background(), tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "b", s.bucket)
		})
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		useSSL   bool
		want     string
	}{
		{endpoint: "", want: ""},
		{endpoint: "minio:9000", want: "http://minio:9000"},
		{endpoint: "s3.example.com", useSSL: true, want: "https://s3.example.com"},
		{endpoint: "https://s3.example.com", want: "https://s3.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			got, err := normalizeEndpoint(tt.endpoint, tt.useSSL)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestS3ObjectStorage_EmptyKey(t *testing.T) {
	s, err := NewS3ObjectStorage(context.Background(), &config.StorageConfig{
		Bucket: "b", AccessKey: "k", SecretKey: "s", Endpoint: "localhost:9000",
	})
	require.NoError(t, err)

	assert.Error(t, s.Upload(context.Background(), "", []byte("{}"), "application/json"))
	_, err = s.ObjectExists(context.Background(), "")
	assert.Error(t, err)
}
