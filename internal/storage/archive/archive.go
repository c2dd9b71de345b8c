package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/pawpledge/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	ErrDisabled     = errors.New("payload archive disabled")
	ErrInputInvalid = errors.New("payload archive input invalid")
	ErrUploadFailed = errors.New("payload archive upload failed")
)

// ObjectPutter S3 写对象能力
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Object 待归档对象
type Object struct {
	Provider   string
	LedgerID   uint
	OccurredAt time.Time
	Body       []byte
}

// S3Archiver 原始回调报文归档到 S3 兼容存储
type S3Archiver struct {
	client  ObjectPutter
	bucket  string
	prefix  string
	timeout time.Duration
}

// New 按配置创建归档器，未启用时返回 ErrDisabled
func New(ctx context.Context, cfg config.ArchiveConfig) (*S3Archiver, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if strings.TrimSpace(cfg.Bucket) == "" || strings.TrimSpace(cfg.Region) == "" {
		return nil, fmt.Errorf("%w: bucket and region are required", ErrInputInvalid)
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, cfg), nil
}

// NewWithClient 使用指定客户端创建归档器
func NewWithClient(client ObjectPutter, cfg config.ArchiveConfig) *S3Archiver {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &S3Archiver{
		client:  client,
		bucket:  strings.TrimSpace(cfg.Bucket),
		prefix:  strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
		timeout: timeout,
	}
}

// ObjectKey 归档对象键：<prefix>/<provider>/<yyyy>/<mm>/ledger-<id>.json
func (a *S3Archiver) ObjectKey(obj Object) string {
	at := obj.OccurredAt.UTC()
	if obj.OccurredAt.IsZero() {
		at = time.Now().UTC()
	}
	provider := strings.TrimSpace(obj.Provider)
	if provider == "" {
		provider = "unknown"
	}
	return path.Join(a.prefix, provider, at.Format("2006"), at.Format("01"), fmt.Sprintf("ledger-%d.json", obj.LedgerID))
}

// Put 上传报文并返回对象键
func (a *S3Archiver) Put(ctx context.Context, obj Object) (string, error) {
	if a == nil || a.client == nil {
		return "", ErrDisabled
	}
	if obj.LedgerID == 0 || len(obj.Body) == 0 {
		return "", ErrInputInvalid
	}
	key := a.ObjectKey(obj)
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(obj.Body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"ledger-id": fmt.Sprintf("%d", obj.LedgerID),
			"provider":  obj.Provider,
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return key, nil
}
