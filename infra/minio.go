package infra

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wwada/optiroute/config"
)

type MinioClient struct {
	Client       *minio.Client
	UploadBucket string
}

func InitMinioClient(cfg *config.EnvConfig) (*MinioClient, error) {
	client, err := minio.New(cfg.Minio.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Minio.RootUser, cfg.Minio.RootPassword, ""),
		Secure: cfg.Minio.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Minio.UploadBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check upload bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Minio.UploadBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create upload bucket: %w", err)
		}
	}

	return &MinioClient{
		Client:       client,
		UploadBucket: cfg.Minio.UploadBucket,
	}, nil
}

// PutUpload stores an uploaded stop file and returns nothing; the object
// key doubles as the job's input reference.
func (m *MinioClient) PutUpload(ctx context.Context, objectKey string, data []byte, contentType string) error {
	_, err := m.Client.PutObject(ctx, m.UploadBucket, objectKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

// FetchUpload reads back a stored upload by its object key.
func (m *MinioClient) FetchUpload(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := m.Client.GetObject(ctx, m.UploadBucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

func (m *MinioClient) RemoveUpload(ctx context.Context, objectKey string) error {
	return m.Client.RemoveObject(ctx, m.UploadBucket, objectKey, minio.RemoveObjectOptions{})
}
