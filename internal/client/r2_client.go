package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/SahanWeerasiri/genApp/internal/config"
	"github.com/SahanWeerasiri/genApp/internal/model"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const signedURLExpiry = 24 * time.Hour

// ArtifactArchive stores generated artifacts and returns a URL for them.
type ArtifactArchive interface {
	Archive(ctx context.Context, userID string, artifact *model.Artifact) (string, error)
}

// R2Client archives artifacts in a Cloudflare R2 bucket
type R2Client struct {
	s3Client   *s3.Client
	presigner  *s3.PresignClient
	bucketName string
	publicURL  string
}

// NewR2Client creates a new R2 storage client
func NewR2Client(cfg *config.R2Config) (*R2Client, error) {
	if cfg.AccountID == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("R2 configuration incomplete")
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	return &R2Client{
		s3Client:   s3Client,
		presigner:  s3.NewPresignClient(s3Client),
		bucketName: cfg.BucketName,
		publicURL:  cfg.PublicURL,
	}, nil
}

// Archive uploads the artifact under generations/{userID}/ and returns its
// public URL, or a day-long signed URL when the bucket has no public domain.
func (c *R2Client) Archive(ctx context.Context, userID string, artifact *model.Artifact) (string, error) {
	key := ArtifactKey(userID, artifact.MimeType)
	if err := c.upload(ctx, key, bytes.NewReader(artifact.Data), artifact.MimeType); err != nil {
		return "", err
	}
	if c.publicURL != "" {
		return c.PublicURL(key), nil
	}
	return c.signedURL(ctx, key, signedURLExpiry)
}

func (c *R2Client) upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucketName),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to R2: %w", err)
	}
	return nil
}

func (c *R2Client) signedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	presigned, err := c.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return presigned.URL, nil
}

// PublicURL returns the public CDN URL for a key
func (c *R2Client) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s", c.publicURL, key)
}

// ArtifactKey builds a unique object key for a user's artifact.
func ArtifactKey(userID, mimeType string) string {
	ext := ".bin"
	switch mimeType {
	case "image/png":
		ext = ".png"
	case "image/jpeg":
		ext = ".jpg"
	case "image/webp":
		ext = ".webp"
	}
	return fmt.Sprintf("generations/%s/%s%s", userID, uuid.New().String(), ext)
}
