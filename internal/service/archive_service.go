package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"testbank_backend/internal/config"
	"testbank_backend/internal/util"
	"testbank_backend/pkg/logger"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// ArchiveProvider 归档对象存储接口
type ArchiveProvider interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
}

// LocalArchiveProvider 写入本地目录
type LocalArchiveProvider struct {
	Root string
}

func (p *LocalArchiveProvider) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	dst := filepath.Join(p.Root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", err
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, reader); err != nil {
		return "", err
	}
	return dst, nil
}

// MinioArchiveProvider MinIO存储实现
type MinioArchiveProvider struct {
	Bucket string
	Client *minio.Client
}

func NewMinioArchiveProvider(cfg *config.StorageConfig) (*MinioArchiveProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}
	return &MinioArchiveProvider{Bucket: cfg.MinioBucket, Client: client}, nil
}

func (p *MinioArchiveProvider) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := p.Client.PutObject(ctx, p.Bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return "/" + p.Bucket + "/" + key, nil
}

// OSSArchiveProvider 阿里云OSS存储实现
type OSSArchiveProvider struct {
	Endpoint string
	Bucket   string
	Client   *oss.Client
}

func NewOSSArchiveProvider(cfg *config.StorageConfig) (*OSSArchiveProvider, error) {
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	if err != nil {
		return nil, err
	}
	return &OSSArchiveProvider{Endpoint: cfg.OSSEndpoint, Bucket: cfg.OSSBucket, Client: client}, nil
}

func (p *OSSArchiveProvider) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	bucket, err := p.Client.Bucket(p.Bucket)
	if err != nil {
		return "", err
	}
	if err := bucket.PutObject(key, reader, oss.ContentType(contentType)); err != nil {
		return "", err
	}
	return fmt.Sprintf("https://%s.%s/%s", p.Bucket, p.Endpoint, key), nil
}

// ArchiveService 评分后保存回顾快照，失败只记日志
type ArchiveService struct {
	Provider ArchiveProvider
	Enabled  bool
	Timeout  time.Duration
}

func NewArchiveService(cfg *config.StorageConfig) *ArchiveService {
	var provider ArchiveProvider
	switch cfg.Type {
	case util.StorageMinio:
		p, err := NewMinioArchiveProvider(cfg)
		if err != nil {
			logger.Log.Warn("MinIO archive provider unavailable, falling back to local", zap.Error(err))
		} else {
			provider = p
		}
	case util.StorageOSS:
		p, err := NewOSSArchiveProvider(cfg)
		if err != nil {
			logger.Log.Warn("OSS archive provider unavailable, falling back to local", zap.Error(err))
		} else {
			provider = p
		}
	case util.StorageLocal, "":
	default:
		logger.Log.Warn("Unknown storage type, archiving locally", zap.String("type", cfg.Type))
	}

	if provider == nil {
		provider = &LocalArchiveProvider{Root: cfg.LocalPath}
	}

	return &ArchiveService{
		Provider: provider,
		Enabled:  cfg.ArchiveReviews,
		Timeout:  30 * time.Second,
	}
}

func reviewArchiveKey(sessionID string) string {
	return "reviews/" + sessionID + ".json"
}

// ArchiveReview 上传 reviews/<sessionID>.json
func (s *ArchiveService) ArchiveReview(ctx context.Context, sessionID string, records []ReviewRecord) error {
	if s == nil || !s.Enabled {
		return nil
	}

	payload, err := json.Marshal(struct {
		SessionID  string         `json:"sessionId"`
		ArchivedAt time.Time      `json:"archivedAt"`
		Records    []ReviewRecord `json:"records"`
	}{
		SessionID:  sessionID,
		ArchivedAt: time.Now().UTC(),
		Records:    records,
	})
	if err != nil {
		return err
	}

	location, err := s.Provider.Put(ctx, reviewArchiveKey(sessionID), bytes.NewReader(payload), int64(len(payload)), util.MimeJSON)
	if err != nil {
		return err
	}
	logger.Log.Info("Exam review archived",
		zap.String("session_id", sessionID),
		zap.String("location", location),
		zap.Int("bytes", len(payload)),
	)
	return nil
}
