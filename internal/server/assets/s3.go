// Package assets keeps one asset record per entry in S3-compatible object
// storage. The record's "visibility" object tag tracks whether the entry is
// publicly listed, hidden, or in the trash.
package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/pubflow/internal/logging"
	"github.com/dmitrijs2005/pubflow/internal/server/models"
)

const visibilityTag = "visibility"

// Visibility values stored in the object tag.
const (
	Visible = "visible"
	Hidden  = "hidden"
	Trashed = "trashed"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// ObjectAPI is the part of *s3.Client used here.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	PutObjectTagging(ctx context.Context, in *s3.PutObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.PutObjectTaggingOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds the object storage settings.
type S3Config struct {
	AccessKey    string
	SecretKey    string
	Region       string
	BaseEndpoint string
	Bucket       string
	Prefix       string
}

// NewS3Client builds an S3 client with static credentials, suitable for
// MinIO and other S3-compatible backends.
func NewS3Client(ctx context.Context, c S3Config) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// record is the JSON body of an asset object.
type record struct {
	EntityType string `json:"entity_type"`
	EntryID    string `json:"entry_id"`
	ScopeID    string `json:"scope_id"`
	OwnerID    string `json:"owner_id"`
	Title      string `json:"title"`
	URLTitle   string `json:"url_title"`
	Status     string `json:"status"`
}

type S3Visibility struct {
	api    ObjectAPI
	bucket string
	prefix string
	logger logging.Logger
}

func NewS3Visibility(api ObjectAPI, bucket, prefix string, logger logging.Logger) *S3Visibility {
	if prefix == "" {
		prefix = "assets"
	}
	return &S3Visibility{api: api, bucket: bucket, prefix: prefix, logger: logger.With("module", "assets")}
}

func (s *S3Visibility) key(entityType, entryID string) string {
	return path.Join(s.prefix, entityType, entryID+".json")
}

// VisibilityOf maps an entry status to its asset visibility.
func VisibilityOf(status models.Status) string {
	switch status {
	case models.StatusApproved:
		return Visible
	case models.StatusInTrash:
		return Trashed
	default:
		return Hidden
	}
}

// Register writes or refreshes the asset record of entry, tagged according
// to its current status.
func (s *S3Visibility) Register(ctx context.Context, entry *models.Entry) error {
	body, err := json.Marshal(record{
		EntityType: models.EntityType,
		EntryID:    entry.ID,
		ScopeID:    entry.ScopeID,
		OwnerID:    entry.OwnerID,
		Title:      entry.Title,
		URLTitle:   entry.URLTitle,
		Status:     string(entry.Status),
	})
	if err != nil {
		return fmt.Errorf("marshal asset: %w", err)
	}

	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(models.EntityType, entry.ID)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Tagging:     aws.String(visibilityTag + "=" + VisibilityOf(entry.Status)),
	})
	if err != nil {
		return fmt.Errorf("put asset: %w", err)
	}
	return nil
}

// SetVisible marks the asset visible or hidden.
func (s *S3Visibility) SetVisible(ctx context.Context, entityType, entryID string, visible bool) error {
	v := Hidden
	if visible {
		v = Visible
	}
	return s.tag(ctx, entityType, entryID, v)
}

// MarkTrashed marks the asset as trashed.
func (s *S3Visibility) MarkTrashed(ctx context.Context, entityType, entryID string) error {
	return s.tag(ctx, entityType, entryID, Trashed)
}

// Delete removes the asset record.
func (s *S3Visibility) Delete(ctx context.Context, entityType, entryID string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(entityType, entryID)),
	})
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	return nil
}

func (s *S3Visibility) tag(ctx context.Context, entityType, entryID, visibility string) error {
	_, err := s.api.PutObjectTagging(ctx, &s3.PutObjectTaggingInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(entityType, entryID)),
		Tagging: &types.Tagging{TagSet: []types.Tag{
			{Key: aws.String(visibilityTag), Value: aws.String(visibility)},
		}},
	})
	if err != nil {
		return fmt.Errorf("tag asset %s: %w", visibility, err)
	}
	s.logger.Debug(ctx, "asset visibility changed", "entry_id", entryID, "visibility", visibility)
	return nil
}
