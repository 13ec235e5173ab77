package s3

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dreschagin/plugin-performance-monitor/internal/application/port"
)

// URLMode selects how read URLs for stored reports are produced.
type URLMode string

const (
	URLModePresigned URLMode = "presigned"
	URLModePublic    URLMode = "public"
)

const (
	defaultListLimit = 24
	maxListLimit     = 200

	// Upper bound on keys scanned per listing; keys are date-partitioned,
	// so the newest reports are found by sorting the scanned page set.
	maxScannedKeys = 2000
)

type objectAPI interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Config holds connection settings for an S3-compatible bucket.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	URLMode         URLMode
	PresignedTTL    time.Duration
}

// ReportStorage stores exported reports in S3.
// Implements port.ReportStorage.
type ReportStorage struct {
	client       objectAPI
	presign      presignAPI
	bucket       string
	endpoint     string
	usePathStyle bool
	urlMode      URLMode
	presignedTTL time.Duration
}

// NewReportStorage creates an S3 report storage client.
func NewReportStorage(ctx context.Context, cfg Config) (*ReportStorage, error) {
	if err := normalizeConfig(&cfg); err != nil {
		return nil, err
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(options *s3.Options) {
		if cfg.Endpoint != "" {
			options.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		options.UsePathStyle = cfg.UsePathStyle
	})

	return newReportStorage(client, s3.NewPresignClient(client), cfg), nil
}

func normalizeConfig(cfg *Config) error {
	cfg.Bucket = strings.TrimSpace(cfg.Bucket)
	cfg.Region = strings.TrimSpace(cfg.Region)
	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	cfg.AccessKeyID = strings.TrimSpace(cfg.AccessKeyID)
	cfg.SecretAccessKey = strings.TrimSpace(cfg.SecretAccessKey)

	if cfg.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return fmt.Errorf("both s3 access key id and secret are required for static credentials")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.URLMode == "" {
		cfg.URLMode = URLModePresigned
	}
	if cfg.URLMode != URLModePresigned && cfg.URLMode != URLModePublic {
		return fmt.Errorf("unsupported s3 url mode: %s", cfg.URLMode)
	}
	if cfg.URLMode == URLModePublic && cfg.Endpoint == "" {
		cfg.Endpoint = fmt.Sprintf("https://s3.%s.amazonaws.com", cfg.Region)
	}
	if cfg.PresignedTTL <= 0 {
		cfg.PresignedTTL = 15 * time.Minute
	}
	return nil
}

func newReportStorage(client objectAPI, presign presignAPI, cfg Config) *ReportStorage {
	return &ReportStorage{
		client:       client,
		presign:      presign,
		bucket:       cfg.Bucket,
		endpoint:     cfg.Endpoint,
		usePathStyle: cfg.UsePathStyle,
		urlMode:      cfg.URLMode,
		presignedTTL: cfg.PresignedTTL,
	}
}

// PutObject uploads a report and returns a URL to read it.
func (s *ReportStorage) PutObject(ctx context.Context, key, contentType string, body []byte) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", fmt.Errorf("put object failed: %w", err)
	}

	return s.GetObjectURL(ctx, key)
}

// GetObjectURL returns a presigned or public URL for key.
func (s *ReportStorage) GetObjectURL(ctx context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}

	if s.urlMode == URLModePublic {
		return s.publicURL(key), nil
	}

	request, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignedTTL))
	if err != nil {
		return "", fmt.Errorf("presign failed: %w", err)
	}

	return request.URL, nil
}

// ListObjects returns up to limit objects under prefix, newest first.
func (s *ReportStorage) ListObjects(ctx context.Context, prefix string, limit int) ([]port.StoredObject, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, fmt.Errorf("prefix is required")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	objects := make([]port.StoredObject, 0, limit)
	for paginator.HasMorePages() && len(objects) < maxScannedKeys {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects failed: %w", err)
		}

		for _, object := range page.Contents {
			key := strings.TrimSpace(aws.ToString(object.Key))
			if key == "" {
				continue
			}
			objects = append(objects, port.StoredObject{
				Key:          key,
				SizeBytes:    aws.ToInt64(object.Size),
				LastModified: aws.ToTime(object.LastModified).UTC(),
			})
		}
	}

	sort.SliceStable(objects, func(i, j int) bool {
		if objects[i].LastModified.Equal(objects[j].LastModified) {
			return objects[i].Key > objects[j].Key
		}
		return objects[i].LastModified.After(objects[j].LastModified)
	})
	if len(objects) > limit {
		objects = objects[:limit]
	}

	for i := range objects {
		if url, err := s.GetObjectURL(ctx, objects[i].Key); err == nil {
			objects[i].URL = url
		}
	}

	return objects, nil
}

func (s *ReportStorage) publicURL(key string) string {
	escapedKey := strings.ReplaceAll(url.PathEscape(key), "%2F", "/")
	if s.usePathStyle {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, escapedKey)
	}

	scheme := "https://"
	host := s.endpoint
	if strings.HasPrefix(host, "http://") {
		scheme = "http://"
	}
	host = strings.TrimPrefix(strings.TrimPrefix(host, "https://"), "http://")
	return fmt.Sprintf("%s%s.%s/%s", scheme, s.bucket, host, escapedKey)
}
