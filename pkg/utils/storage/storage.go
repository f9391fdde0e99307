package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

func getS3Client() (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			os.Getenv("R2_ACCESS_KEY"),
			os.Getenv("R2_SECRET_KEY"),
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %v", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", os.Getenv("R2_ACCOUNT_ID")))
		o.UsePathStyle = true
		o.Region = "auto"
	})

	return client, nil
}

type UploadConfig struct {
	// Already processed image bytes (pkg/utils/image).
	Data        *bytes.Buffer
	ContentType string
	// Path parts, slugged before use: e.g. "strategies", strategy slug.
	Folder string
	Name   string
	// Original filename, for the extension.
	Filename string
}

type UploadResult struct {
	URL string
	Key string
}

// Upload puts a processed image into the R2 bucket under an organized,
// URL-safe key and returns the public URL.
func Upload(cfg UploadConfig) (UploadResult, error) {
	safeFolder := slug.Make(cfg.Folder)
	safeName := slug.Make(cfg.Name)

	ext := filepath.Ext(cfg.Filename)
	uniqueID := fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.New().String())
	objectKey := filepath.Join(safeFolder, safeName, uniqueID+ext)

	client, err := getS3Client()
	if err != nil {
		return UploadResult{}, err
	}

	bucket := os.Getenv("R2_BUCKET")
	if bucket == "" {
		bucket = "coachpage-media"
	}

	_, err = client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(cfg.Data.Bytes()),
		ContentType: aws.String(cfg.ContentType),
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("could not upload object: %v", err)
	}

	publicBase := os.Getenv("R2_PUBLIC_URL")
	if publicBase == "" {
		publicBase = fmt.Sprintf("https://%s.r2.cloudflarestorage.com/%s", os.Getenv("R2_ACCOUNT_ID"), bucket)
	}

	return UploadResult{
		URL: fmt.Sprintf("%s/%s", publicBase, objectKey),
		Key: objectKey,
	}, nil
}
