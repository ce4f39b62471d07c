package uploader

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"course_market/internal/pkg/config"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"go.uber.org/zap"
)

// Uploader 对象存储
type Uploader interface {
	Put(ctx context.Context, objectKey string, data []byte, contentType string) (string, error)
}

// AliyunOSSUploader 阿里云 OSS
type AliyunOSSUploader struct {
	bucket *oss.Bucket
	config config.OSSConfig
}

func NewAliyunOSSUploader(cfg config.OSSConfig) (*AliyunOSSUploader, error) {
	if cfg.Endpoint == "" || cfg.BucketName == "" {
		return nil, fmt.Errorf("oss config is missing")
	}

	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, err
	}

	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, err
	}

	return &AliyunOSSUploader{bucket: bucket, config: cfg}, nil
}

// Put 上传对象，返回 oss:// 形式的地址（凭证属于私有数据，不拼公网 URL）
func (u *AliyunOSSUploader) Put(ctx context.Context, objectKey string, data []byte, contentType string) (string, error) {
	key := path.Join(u.config.ReceiptPrefix, objectKey)
	err := u.bucket.PutObject(key, bytes.NewReader(data),
		oss.ContentType(contentType),
		oss.ObjectACL(oss.ACLPrivate),
		oss.WithContext(ctx),
	)
	if err != nil {
		return "", fmt.Errorf("oss put %s: %w", key, err)
	}
	return fmt.Sprintf("oss://%s/%s", u.config.BucketName, key), nil
}

// LogUploader 未配置 OSS 时的降级实现
type LogUploader struct {
	logger *zap.Logger
}

func NewLogUploader(logger *zap.Logger) *LogUploader {
	return &LogUploader{logger: logger}
}

func (u *LogUploader) Put(ctx context.Context, objectKey string, data []byte, contentType string) (string, error) {
	u.logger.Info("upload skipped (not configured)", zap.String("key", objectKey), zap.Int("size", len(data)))
	return "", nil
}

// New 按配置选择实现
func New(cfg config.OSSConfig, logger *zap.Logger) Uploader {
	u, err := NewAliyunOSSUploader(cfg)
	if err != nil {
		logger.Warn("oss uploader disabled", zap.Error(err))
		return NewLogUploader(logger)
	}
	return u
}
