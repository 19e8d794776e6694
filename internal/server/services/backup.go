package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/common"
	sc "github.com/dmitrijs2005/gophnotes/internal/server/config"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// BackupService hands out presigned object-storage URLs for encrypted vault
// exports. The server never reads the objects.
type BackupService struct {
	config *sc.Config
}

func NewBackupService(config *sc.Config) *BackupService {
	return &BackupService{config: config}
}

func backupPrefix(userID string) string {
	return fmt.Sprintf("backups/%s/", userID)
}

// NewBackupKey returns backups/<user>/<yyyy>/<mm>/<dd>/<uuid>.
func NewBackupKey(userID string, now time.Time) string {
	return fmt.Sprintf("%s%04d/%02d/%02d/%v", backupPrefix(userID), now.Year(), now.Month(), now.Day(), uuid.New())
}

func (s *BackupService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

// PresignUpload returns a fresh object key and a PUT URL for it.
func (s *BackupService) PresignUpload(ctx context.Context, userID string) (string, string, error) {
	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return "", "", err
	}

	bucket := s.config.S3Bucket
	key := NewBackupKey(userID, timeNow())

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.BackupURLValidity))
	if err != nil {
		return "", "", err
	}

	return key, req.URL, nil
}

// PresignDownload returns a GET URL for key. Keys outside the caller's
// prefix yield common.ErrorNotFound.
func (s *BackupService) PresignDownload(ctx context.Context, userID, key string) (string, error) {
	if !strings.HasPrefix(key, backupPrefix(userID)) || strings.Contains(key, "..") {
		return "", common.ErrorNotFound
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket
	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.BackupURLValidity))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
