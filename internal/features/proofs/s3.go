package proofs

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"healcoins.app/ledger/internal/config"
)

// S3Presigner подписывает PUT-запросы в S3-совместимое хранилище (S3, R2, MinIO).
type S3Presigner struct {
	presign *s3.PresignClient
	bucket  string
}

// NewS3Presigner создаёт клиент по S3_* настройкам.
func NewS3Presigner(cfg *config.Config) *S3Presigner {
	opts := s3.Options{
		Region: cfg.S3Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID,
			cfg.S3SecretAccessKey,
			"",
		),
	}
	if cfg.S3Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.S3Endpoint)
		opts.UsePathStyle = true
	}

	return &S3Presigner{
		presign: s3.NewPresignClient(s3.New(opts)),
		bucket:  cfg.S3Bucket,
	}
}

// PresignPut возвращает подписанный URL для загрузки объекта key.
func (p *S3Presigner) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	req, err := p.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(o *s3.PresignOptions) {
		o.Expires = ttl
	})
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
