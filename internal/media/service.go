// Package media manages collection photos in Cloudflare R2: presigned upload
// URLs for the client and public URL resolution for feed hydration.
package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/stampbook-app/stampbook-backend/internal/config"
	"github.com/stampbook-app/stampbook-backend/internal/model"
)

// PresignExpiry is how long a presigned upload URL stays valid.
const PresignExpiry = 15 * time.Minute

// Service handles photo storage on Cloudflare R2.
type Service struct {
	s3Client  *s3.Client
	presigner *s3.PresignClient
	bucket    string
	publicURL string
}

// NewService constructs an S3-compatible client for Cloudflare R2.
func NewService(ctx context.Context, cfg *config.Config) (*Service, error) {
	if cfg.R2AccountID == "" || cfg.R2AccessKeyID == "" || cfg.R2SecretAccessKey == "" || cfg.R2BucketName == "" || cfg.R2PublicURL == "" {
		return nil, fmt.Errorf("missing Cloudflare R2 configuration")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.R2AccessKeyID, cfg.R2SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for R2: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2AccountID)
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &Service{
		s3Client:  s3Client,
		presigner: s3.NewPresignClient(s3Client),
		bucket:    cfg.R2BucketName,
		publicURL: strings.TrimSuffix(cfg.R2PublicURL, "/"),
	}, nil
}

// PhotoURL resolves a stored object key to its public URL.
func (s *Service) PhotoURL(key string) string {
	if key == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s", s.publicURL, key)
}

// PresignPhotoUpload validates the request and returns a presigned PUT URL.
// The client uploads straight to R2 and sends the key back with the collect
// request.
func (s *Service) PresignPhotoUpload(ctx context.Context, req model.PresignPhotoRequest) (*model.PresignPhotoResponse, error) {
	if req.FileSize > model.MaxPhotoSizeBytes {
		return nil, model.ErrFileTooLarge
	}
	if !model.IsAllowedImageType(req.ContentType) {
		return nil, model.ErrInvalidImageType
	}

	key := fmt.Sprintf("%s/%s%s", model.PhotoFolder, uuid.NewString(), extensionFor(req.ContentType))

	presigned, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(req.ContentType),
		ContentLength: aws.Int64(req.FileSize),
	}, s3.WithPresignExpires(PresignExpiry))
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	return &model.PresignPhotoResponse{
		UploadURL:  presigned.URL,
		Key:        key,
		ExpiresInS: int(PresignExpiry.Seconds()),
	}, nil
}

// DeleteObject removes an object by key. Used when a collection is removed.
func (s *Service) DeleteObject(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from r2: %w", err)
	}
	return nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case model.ContentTypePNG:
		return ".png"
	case model.ContentTypeWebP:
		return ".webp"
	default:
		return ".jpg"
	}
}
