package minio

import (
	"Solace/internal/api/config"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
)

// Storage 媒体对象存储
type Storage interface {
	Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error)
}

type storageImpl struct{}

// NewStorage 使用全局客户端
func NewStorage() Storage {
	return &storageImpl{}
}

func (s *storageImpl) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	if _, err := UploadFile(ctx, objectName, reader, size, contentType); err != nil {
		return "", err
	}
	return GetPublicURL(objectName), nil
}

// UploadFile 上传文件到MinIO
func UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	if Client == nil {
		return "", fmt.Errorf("minio client is not initialized")
	}

	uploadInfo, err := Client.PutObject(ctx, BucketName, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	return uploadInfo.Key, nil
}

// GetPublicURL 获取文件的公共访问URL
func GetPublicURL(objectName string) string {
	cfg := config.Cfg.MinIO
	endpoint := cfg.PublicEndpoint
	if endpoint == "" {
		endpoint = cfg.Endpoint
	}
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(endpoint, "/"), BucketName, objectName)
	}

	// 构造公共URL
	protocol := "http"
	if cfg.UseSSL {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", protocol, endpoint, BucketName, objectName)
}
