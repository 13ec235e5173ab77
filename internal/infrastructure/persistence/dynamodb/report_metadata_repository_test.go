package dynamodb

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dreschagin/plugin-performance-monitor/internal/application/port"
)

type fakeDynamo struct {
	items     []map[string]types.AttributeValue
	lastQuery *dynamodb.QueryInput
	lastKey   map[string]types.AttributeValue
}

func (f *fakeDynamo) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.items = append(f.items, params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.lastQuery = params
	return &dynamodb.QueryOutput{Items: f.items, LastEvaluatedKey: f.lastKey}, nil
}

func testRecord() port.ReportMetadata {
	created := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	return port.ReportMetadata{
		ReportID:    "report-1",
		UserID:      "user-1",
		Format:      "CSV",
		S3Key:       "reports/user-1/2024/06/15/20240615T120000Z_report-1.csv",
		URL:         "https://signed.example/r",
		ContentType: "text/csv",
		SizeBytes:   512,
		RowCount:    13,
		CreatedAt:   created,
		ExpiresAt:   created.Add(30 * 24 * time.Hour),
	}
}

func testRepository(client queryAPI) *ReportMetadataRepository {
	return &ReportMetadataRepository{client: client, tableName: "plugin-monitor-reports"}
}

func TestPutAndListRoundTrip(t *testing.T) {
	client := &fakeDynamo{}
	repo := testRepository(client)

	if err := repo.Put(context.Background(), testRecord()); err != nil {
		t.Fatalf("put: %v", err)
	}

	item := client.items[0]
	if pk := item[attrPK].(*types.AttributeValueMemberS).Value; pk != "USER#user-1" {
		t.Fatalf("unexpected PK %s", pk)
	}
	if gsi := item[attrGSI1PK].(*types.AttributeValueMemberS).Value; gsi != "USER#user-1#FORMAT#csv" {
		t.Fatalf("unexpected GSI1PK %s", gsi)
	}
	if ttl := item[attrExpiresAt].(*types.AttributeValueMemberN).Value; ttl != "1721044800" {
		t.Fatalf("unexpected expires_at %s", ttl)
	}

	page, err := repo.ListByUser(context.Background(), port.ReportListQuery{UserID: "user-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 1 || page.NextCursor != "" {
		t.Fatalf("unexpected page: %+v", page)
	}

	got := page.Items[0]
	want := testRecord()
	if got.ReportID != want.ReportID || got.Format != "csv" || got.RowCount != 13 || got.SizeBytes != 512 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Fatalf("timestamps not preserved: %+v", got)
	}

	q := client.lastQuery
	if q.IndexName != nil || aws.ToBool(q.ScanIndexForward) || aws.ToInt32(q.Limit) != defaultListLimit {
		t.Fatalf("unexpected query: %+v", q)
	}
}

func TestListByUser_FormatUsesIndexAndRange(t *testing.T) {
	client := &fakeDynamo{}
	repo := testRepository(client)

	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	_, err := repo.ListByUser(context.Background(), port.ReportListQuery{
		UserID: "user-1",
		Format: "json",
		From:   from,
		To:     to,
		Limit:  500,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	q := client.lastQuery
	if aws.ToString(q.IndexName) != reportFormatIndex {
		t.Fatalf("expected GSI query, got %v", q.IndexName)
	}
	if q.ConsistentRead != nil {
		t.Fatalf("GSI queries cannot be consistent")
	}
	if aws.ToInt32(q.Limit) != maxListLimit {
		t.Fatalf("expected limit clamp to %d", maxListLimit)
	}
	if q.ExpressionAttributeNames["#pk"] != attrGSI1PK || q.ExpressionAttributeNames["#sk"] != attrGSI1SK {
		t.Fatalf("unexpected attribute names: %v", q.ExpressionAttributeNames)
	}
	if aws.ToString(q.KeyConditionExpression) != "#pk = :pk AND #sk BETWEEN :from AND :to" {
		t.Fatalf("unexpected key condition: %s", aws.ToString(q.KeyConditionExpression))
	}
}

func TestListByUser_CursorRoundTrip(t *testing.T) {
	lastKey := map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: "USER#user-1"},
		attrSK: &types.AttributeValueMemberS{Value: "TS#0001718452800000#REPORT#abc"},
	}
	client := &fakeDynamo{lastKey: lastKey}
	repo := testRepository(client)

	page, err := repo.ListByUser(context.Background(), port.ReportListQuery{UserID: "user-1", Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.NextCursor == "" {
		t.Fatalf("expected next cursor")
	}

	client.lastKey = nil
	if _, err := repo.ListByUser(context.Background(), port.ReportListQuery{UserID: "user-1", Cursor: page.NextCursor}); err != nil {
		t.Fatalf("list with cursor: %v", err)
	}
	start := client.lastQuery.ExclusiveStartKey
	if start[attrSK].(*types.AttributeValueMemberS).Value != "TS#0001718452800000#REPORT#abc" {
		t.Fatalf("unexpected start key: %v", start)
	}

	if _, err := repo.ListByUser(context.Background(), port.ReportListQuery{UserID: "user-1", Format: "csv", Cursor: page.NextCursor}); err == nil {
		t.Fatalf("expected error for cursor from another filter")
	}
}

func TestValidationErrors(t *testing.T) {
	repo := testRepository(&fakeDynamo{})

	bad := testRecord()
	bad.UserID = "user/1"
	if err := repo.Put(context.Background(), bad); err == nil {
		t.Fatalf("expected invalid user error")
	}

	missing := testRecord()
	missing.S3Key = ""
	if err := repo.Put(context.Background(), missing); err == nil {
		t.Fatalf("expected missing key error")
	}

	_, err := repo.ListByUser(context.Background(), port.ReportListQuery{
		UserID: "user-1",
		From:   time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		To:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	if err == nil {
		t.Fatalf("expected inverted range error")
	}

	if _, err := repo.ListByUser(context.Background(), port.ReportListQuery{UserID: "user-1", Cursor: "%%%"}); err == nil {
		t.Fatalf("expected invalid cursor error")
	}
}
