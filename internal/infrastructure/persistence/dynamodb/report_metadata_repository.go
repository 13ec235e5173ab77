package dynamodb

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dreschagin/plugin-performance-monitor/internal/application/port"
)

const (
	defaultListLimit = 24
	maxListLimit     = 100

	reportFormatIndex = "GSI1"

	attrPK          = "PK"
	attrSK          = "SK"
	attrGSI1PK      = "GSI1PK"
	attrGSI1SK      = "GSI1SK"
	attrReportID    = "report_id"
	attrUserID      = "user_id"
	attrFormat      = "format"
	attrS3Key       = "s3_key"
	attrURL         = "url"
	attrContentType = "content_type"
	attrSizeBytes   = "size_bytes"
	attrRowCount    = "row_count"
	attrCreatedAt   = "created_at"
	attrExpiresAt   = "expires_at"
)

var userIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

type queryAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Config holds DynamoDB connection settings for the report index table.
type Config struct {
	TableName       string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	StrongReads     bool
}

// ReportMetadataRepository indexes exported reports per user.
// Table layout: PK=USER#<id>, SK=TS#<ms>#REPORT#<hash>; GSI1 partitions by user and format.
// expires_at holds epoch seconds for DynamoDB TTL.
type ReportMetadataRepository struct {
	client      queryAPI
	tableName   string
	strongReads bool
}

type cursorMode string

const (
	cursorModeUser   cursorMode = "user"
	cursorModeFormat cursorMode = "format"
)

type cursorPayload struct {
	Mode   cursorMode             `json:"mode"`
	UserID string                 `json:"user_id"`
	Format string                 `json:"format,omitempty"`
	FromMS int64                  `json:"from_ms,omitempty"`
	ToMS   int64                  `json:"to_ms,omitempty"`
	Key    map[string]cursorValue `json:"key"`
}

type cursorValue struct {
	S string `json:"s,omitempty"`
	N string `json:"n,omitempty"`
}

// NewReportMetadataRepository creates a DynamoDB-backed report index.
func NewReportMetadataRepository(ctx context.Context, cfg Config) (*ReportMetadataRepository, error) {
	tableName := strings.TrimSpace(cfg.TableName)
	if tableName == "" {
		return nil, fmt.Errorf("dynamodb table name is required")
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	accessKeyID := strings.TrimSpace(cfg.AccessKeyID)
	secretAccessKey := strings.TrimSpace(cfg.SecretAccessKey)
	if accessKeyID != "" || secretAccessKey != "" {
		if accessKeyID == "" || secretAccessKey == "" {
			return nil, fmt.Errorf("both dynamodb access key id and secret access key are required for static credentials")
		}
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws config for dynamodb: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(options *dynamodb.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			options.BaseEndpoint = aws.String(endpoint)
		}
	})

	return &ReportMetadataRepository{
		client:      client,
		tableName:   tableName,
		strongReads: cfg.StrongReads,
	}, nil
}

// Put indexes a single report.
func (r *ReportMetadataRepository) Put(ctx context.Context, record port.ReportMetadata) error {
	item, err := toItem(record)
	if err != nil {
		return err
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("dynamodb put failed: %w", err)
	}
	return nil
}

// ListByUser returns the user's reports newest first.
// A non-empty Format switches the query to the per-format index.
func (r *ReportMetadataRepository) ListByUser(ctx context.Context, query port.ReportListQuery) (port.ReportListPage, error) {
	userID := strings.TrimSpace(query.UserID)
	if !userIDPattern.MatchString(userID) {
		return port.ReportListPage{}, fmt.Errorf("invalid user_id")
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	format := strings.ToLower(strings.TrimSpace(query.Format))
	fromMS, toMS, hasRange, err := normalizeTimeRange(query.From, query.To)
	if err != nil {
		return port.ReportListPage{}, err
	}

	mode := cursorModeUser
	if format != "" {
		mode = cursorModeFormat
	}

	input := buildQuery(r.tableName, mode, userID, format, fromMS, toMS, hasRange)
	input.Limit = aws.Int32(int32(limit))
	if mode == cursorModeUser {
		input.ConsistentRead = aws.Bool(r.strongReads)
	}

	if cursor := strings.TrimSpace(query.Cursor); cursor != "" {
		startKey, err := decodeCursor(cursor, mode, userID, format, fromMS, toMS)
		if err != nil {
			return port.ReportListPage{}, err
		}
		input.ExclusiveStartKey = startKey
	}

	output, err := r.client.Query(ctx, input)
	if err != nil {
		return port.ReportListPage{}, fmt.Errorf("dynamodb query failed: %w", err)
	}

	items := make([]port.ReportMetadata, 0, len(output.Items))
	for _, raw := range output.Items {
		item, err := fromItem(raw)
		if err != nil {
			return port.ReportListPage{}, err
		}
		items = append(items, item)
	}

	page := port.ReportListPage{Items: items}
	if len(output.LastEvaluatedKey) > 0 {
		page.NextCursor, err = encodeCursor(output.LastEvaluatedKey, mode, userID, format, fromMS, toMS)
		if err != nil {
			return port.ReportListPage{}, err
		}
	}

	return page, nil
}

func buildQuery(table string, mode cursorMode, userID, format string, fromMS, toMS int64, hasRange bool) *dynamodb.QueryInput {
	pkAttr, skAttr, pk := attrPK, attrSK, buildPK(userID)
	if mode == cursorModeFormat {
		pkAttr, skAttr, pk = attrGSI1PK, attrGSI1SK, buildGSI1PK(userID, format)
	}

	input := &dynamodb.QueryInput{
		TableName:                aws.String(table),
		ScanIndexForward:         aws.Bool(false),
		ExpressionAttributeNames: map[string]string{"#pk": pkAttr},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
	}
	if mode == cursorModeFormat {
		input.IndexName = aws.String(reportFormatIndex)
	}

	keyCondition := "#pk = :pk"
	if hasRange {
		input.ExpressionAttributeNames["#sk"] = skAttr
		input.ExpressionAttributeValues[":from"] = &types.AttributeValueMemberS{Value: sortLowerBound(fromMS)}
		input.ExpressionAttributeValues[":to"] = &types.AttributeValueMemberS{Value: sortUpperBound(toMS)}
		keyCondition += " AND #sk BETWEEN :from AND :to"
	}
	input.KeyConditionExpression = aws.String(keyCondition)

	return input
}

func toItem(record port.ReportMetadata) (map[string]types.AttributeValue, error) {
	userID := strings.TrimSpace(record.UserID)
	reportID := strings.TrimSpace(record.ReportID)
	format := strings.ToLower(strings.TrimSpace(record.Format))
	s3Key := strings.TrimSpace(record.S3Key)

	if !userIDPattern.MatchString(userID) {
		return nil, fmt.Errorf("invalid user_id")
	}
	if reportID == "" {
		return nil, fmt.Errorf("report_id is required")
	}
	if format == "" {
		return nil, fmt.Errorf("format is required")
	}
	if s3Key == "" {
		return nil, fmt.Errorf("s3_key is required")
	}

	createdAt := record.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	createdAtMS := createdAt.UnixMilli()

	item := map[string]types.AttributeValue{
		attrPK:        &types.AttributeValueMemberS{Value: buildPK(userID)},
		attrSK:        &types.AttributeValueMemberS{Value: buildSK(createdAtMS, reportID)},
		attrGSI1PK:    &types.AttributeValueMemberS{Value: buildGSI1PK(userID, format)},
		attrGSI1SK:    &types.AttributeValueMemberS{Value: buildSK(createdAtMS, reportID)},
		attrReportID:  &types.AttributeValueMemberS{Value: reportID},
		attrUserID:    &types.AttributeValueMemberS{Value: userID},
		attrFormat:    &types.AttributeValueMemberS{Value: format},
		attrS3Key:     &types.AttributeValueMemberS{Value: s3Key},
		attrCreatedAt: &types.AttributeValueMemberN{Value: strconv.FormatInt(createdAtMS, 10)},
		attrRowCount:  &types.AttributeValueMemberN{Value: strconv.Itoa(record.RowCount)},
	}

	if url := strings.TrimSpace(record.URL); url != "" {
		item[attrURL] = &types.AttributeValueMemberS{Value: url}
	}
	if contentType := strings.TrimSpace(record.ContentType); contentType != "" {
		item[attrContentType] = &types.AttributeValueMemberS{Value: contentType}
	}
	if record.SizeBytes > 0 {
		item[attrSizeBytes] = &types.AttributeValueMemberN{Value: strconv.FormatInt(record.SizeBytes, 10)}
	}
	if !record.ExpiresAt.IsZero() {
		item[attrExpiresAt] = &types.AttributeValueMemberN{Value: strconv.FormatInt(record.ExpiresAt.UTC().Unix(), 10)}
	}

	return item, nil
}

func fromItem(item map[string]types.AttributeValue) (port.ReportMetadata, error) {
	var record port.ReportMetadata
	var err error

	if record.ReportID, err = attrString(item, attrReportID); err != nil {
		return port.ReportMetadata{}, err
	}
	if record.UserID, err = attrString(item, attrUserID); err != nil {
		return port.ReportMetadata{}, err
	}
	if record.Format, err = attrString(item, attrFormat); err != nil {
		return port.ReportMetadata{}, err
	}
	if record.S3Key, err = attrString(item, attrS3Key); err != nil {
		return port.ReportMetadata{}, err
	}
	createdAtMS, err := attrInt64(item, attrCreatedAt)
	if err != nil {
		return port.ReportMetadata{}, err
	}

	record.CreatedAt = time.UnixMilli(createdAtMS).UTC()
	record.URL = optionalString(item, attrURL)
	record.ContentType = optionalString(item, attrContentType)
	record.SizeBytes = optionalInt64(item, attrSizeBytes)
	record.RowCount = int(optionalInt64(item, attrRowCount))
	if expiresAt := optionalInt64(item, attrExpiresAt); expiresAt > 0 {
		record.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	}

	return record, nil
}

func normalizeTimeRange(from, to time.Time) (int64, int64, bool, error) {
	if from.IsZero() && to.IsZero() {
		return 0, math.MaxInt64, false, nil
	}

	fromMS := int64(0)
	toMS := int64(math.MaxInt64)
	if !from.IsZero() {
		fromMS = from.UTC().UnixMilli()
	}
	if !to.IsZero() {
		toMS = to.UTC().UnixMilli()
	}
	if fromMS > toMS {
		return 0, 0, false, fmt.Errorf("from must be less than or equal to to")
	}

	return fromMS, toMS, true, nil
}

func buildPK(userID string) string {
	return "USER#" + userID
}

func buildGSI1PK(userID, format string) string {
	return fmt.Sprintf("USER#%s#FORMAT#%s", userID, format)
}

func buildSK(createdAtMS int64, reportID string) string {
	return fmt.Sprintf("TS#%013d#REPORT#%s", createdAtMS, reportHash(reportID))
}

func sortLowerBound(tsMS int64) string {
	return fmt.Sprintf("TS#%013d#", tsMS)
}

func sortUpperBound(tsMS int64) string {
	return fmt.Sprintf("TS#%013d#~", tsMS)
}

func reportHash(reportID string) string {
	sum := sha1.Sum([]byte(reportID))
	return hex.EncodeToString(sum[:8])
}

func encodeCursor(key map[string]types.AttributeValue, mode cursorMode, userID, format string, fromMS, toMS int64) (string, error) {
	values := make(map[string]cursorValue, len(key))
	for name, raw := range key {
		switch value := raw.(type) {
		case *types.AttributeValueMemberS:
			values[name] = cursorValue{S: value.Value}
		case *types.AttributeValueMemberN:
			values[name] = cursorValue{N: value.Value}
		default:
			return "", fmt.Errorf("unsupported cursor attribute type for %s", name)
		}
	}

	serialized, err := json.Marshal(cursorPayload{
		Mode:   mode,
		UserID: userID,
		Format: format,
		FromMS: fromMS,
		ToMS:   toMS,
		Key:    values,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(serialized), nil
}

func decodeCursor(cursor string, mode cursorMode, userID, format string, fromMS, toMS int64) (map[string]types.AttributeValue, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor")
	}

	var payload cursorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("invalid cursor")
	}

	if payload.Mode != mode || payload.UserID != userID || payload.Format != format ||
		payload.FromMS != fromMS || payload.ToMS != toMS {
		return nil, fmt.Errorf("cursor does not match query filters")
	}

	key := make(map[string]types.AttributeValue, len(payload.Key))
	for name, value := range payload.Key {
		switch {
		case value.S != "":
			key[name] = &types.AttributeValueMemberS{Value: value.S}
		case value.N != "":
			key[name] = &types.AttributeValueMemberN{Value: value.N}
		default:
			return nil, fmt.Errorf("invalid cursor")
		}
	}

	return key, nil
}

func attrString(item map[string]types.AttributeValue, name string) (string, error) {
	value, ok := item[name].(*types.AttributeValueMemberS)
	if !ok || strings.TrimSpace(value.Value) == "" {
		return "", fmt.Errorf("missing or invalid attribute %s", name)
	}
	return value.Value, nil
}

func optionalString(item map[string]types.AttributeValue, name string) string {
	if value, ok := item[name].(*types.AttributeValueMemberS); ok {
		return value.Value
	}
	return ""
}

func attrInt64(item map[string]types.AttributeValue, name string) (int64, error) {
	value, ok := item[name].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("missing or invalid attribute %s", name)
	}
	parsed, err := strconv.ParseInt(value.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid attribute %s: %w", name, err)
	}
	return parsed, nil
}

func optionalInt64(item map[string]types.AttributeValue, name string) int64 {
	value, ok := item[name].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	parsed, err := strconv.ParseInt(value.Value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
