package usecase

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/application/port"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/apperr"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/service"
	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"
)

type putCall struct {
	key         string
	contentType string
	body        []byte
}

type mockReportStorage struct {
	mu              sync.Mutex
	calls           []putCall
	putErr          error
	objectsByPrefix map[string][]port.StoredObject
	listErr         error
	lastPrefix      string
	lastLimit       int
}

func (m *mockReportStorage) PutObject(_ context.Context, key, contentType string, body []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, putCall{key: key, contentType: contentType, body: body})
	if m.putErr != nil {
		return "", m.putErr
	}
	return "https://example.com/" + key, nil
}

func (m *mockReportStorage) GetObjectURL(_ context.Context, key string) (string, error) {
	return "https://signed.example.com/" + key, nil
}

func (m *mockReportStorage) ListObjects(_ context.Context, prefix string, limit int) ([]port.StoredObject, error) {
	m.lastPrefix = prefix
	m.lastLimit = limit

	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.objectsByPrefix[prefix], nil
}

type mockReportMetadataRepository struct {
	page      port.ReportListPage
	err       error
	lastQuery port.ReportListQuery
	puts      []port.ReportMetadata
}

func (m *mockReportMetadataRepository) Put(_ context.Context, record port.ReportMetadata) error {
	m.puts = append(m.puts, record)
	return m.err
}

func (m *mockReportMetadataRepository) ListByUser(_ context.Context, query port.ReportListQuery) (port.ReportListPage, error) {
	m.lastQuery = query
	if m.err != nil {
		return port.ReportListPage{}, m.err
	}
	return m.page, nil
}

func newExportFixture(storage port.ReportStorage, metadata port.ReportMetadataRepository) *ExportReportUseCase {
	f := newAnalyticsFixture()
	summary := NewGetDashboardSummaryUseCase(
		f.measurements, f.alerts, f.catalog.catalog(),
		service.NewPerformanceAggregator(), service.NewPerformanceScorer(), testLogger(),
	)
	summary.now = fixedClock

	uc := NewExportReportUseCase(
		f.measurements, f.alerts, f.catalog.catalog(), summary,
		storage, metadata, nil,
		ExportReportConfig{KeyPrefix: "reports", Retention: 24 * time.Hour},
		logger.New("error"),
	)
	uc.now = fixedClock
	return uc
}

func TestExportReportUseCase_CSV(t *testing.T) {
	storage := &mockReportStorage{}
	metadata := &mockReportMetadataRepository{}
	uc := newExportFixture(storage, metadata)

	res, err := uc.Execute(context.Background(), ExportReportCommand{Scope: mustScope("user-1", ""), Format: "CSV"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	expectedPrefix := "reports/user-1/2024/06/15/20240615T120000Z_"
	if !strings.HasPrefix(res.S3Key, expectedPrefix) || !strings.HasSuffix(res.S3Key, ".csv") {
		t.Fatalf("unexpected key: %s", res.S3Key)
	}
	if len(storage.calls) != 1 || storage.calls[0].contentType != "text/csv" {
		t.Fatalf("unexpected uploads: %+v", storage.calls)
	}

	records, err := csv.NewReader(strings.NewReader(string(storage.calls[0].body))).ReadAll()
	if err != nil {
		t.Fatalf("invalid csv: %v", err)
	}
	if strings.Join(records[0], ",") != strings.Join(reportCSVHeader, ",") {
		t.Fatalf("unexpected header: %v", records[0])
	}
	// 3 дня x 4 установки пользователя + 1 замер вне окна
	if res.RowCount != 13 || len(records) != 14 {
		t.Fatalf("unexpected row count: result=%d csv=%d", res.RowCount, len(records))
	}
	for _, row := range records[1:] {
		if row[0] == "Foreign" {
			t.Fatalf("report must not contain other users' sites")
		}
	}

	if len(metadata.puts) != 1 {
		t.Fatalf("expected metadata to be indexed")
	}
	if !metadata.puts[0].ExpiresAt.Equal(testNow.Add(24 * time.Hour)) {
		t.Fatalf("unexpected expiry: %s", metadata.puts[0].ExpiresAt)
	}
}

func TestExportReportUseCase_JSON(t *testing.T) {
	storage := &mockReportStorage{}
	uc := newExportFixture(storage, nil)

	res, err := uc.Execute(context.Background(), ExportReportCommand{Scope: mustScope("user-1", "site-a"), Format: "json"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.ContentType != "application/json" {
		t.Fatalf("unexpected content type: %s", res.ContentType)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(storage.calls[0].body, &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if decoded["site_id"] != "site-a" {
		t.Fatalf("expected site scope in report, got %v", decoded["site_id"])
	}
	if _, ok := decoded["summary"]; !ok {
		t.Fatalf("expected summary section")
	}
}

func TestExportReportUseCase_Errors(t *testing.T) {
	tests := []struct {
		name    string
		storage *mockReportStorage
		cmd     ExportReportCommand
		check   func(error) bool
	}{
		{
			name:    "unsupported format",
			storage: &mockReportStorage{},
			cmd:     ExportReportCommand{Scope: mustScope("user-1", ""), Format: "xml"},
			check:   apperr.IsInvalid,
		},
		{
			name:    "unsafe user id",
			storage: &mockReportStorage{},
			cmd:     ExportReportCommand{Scope: mustScope("user/../1", ""), Format: "csv"},
			check:   apperr.IsInvalid,
		},
		{
			name:    "upload failure",
			storage: &mockReportStorage{putErr: errors.New("boom")},
			cmd:     ExportReportCommand{Scope: mustScope("user-1", ""), Format: "csv"},
			check: func(err error) bool {
				return err != nil && strings.Contains(err.Error(), "failed to upload report")
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			uc := newExportFixture(tc.storage, nil)
			_, err := uc.Execute(context.Background(), tc.cmd)
			if !tc.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestExportReportUseCase_IndexFailureKeepsReport(t *testing.T) {
	storage := &mockReportStorage{}
	uc := newExportFixture(storage, &mockReportMetadataRepository{err: errors.New("ddb down")})

	res, err := uc.Execute(context.Background(), ExportReportCommand{Scope: mustScope("user-1", ""), Format: "csv"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.URL == "" {
		t.Fatalf("expected uploaded report URL")
	}
}

func defaultListConfig(fallback bool) ListReportsConfig {
	return ListReportsConfig{
		KeyPrefix:           "reports",
		DefaultLimit:        24,
		MaxLimit:            100,
		FallbackToS3OnError: fallback,
	}
}

func TestListReportsUseCase_Success(t *testing.T) {
	storage := &mockReportStorage{
		objectsByPrefix: map[string][]port.StoredObject{
			"reports/user-1/": {
				{
					Key:          "reports/user-1/2026/02/08/20260208T090500Z_r-2.json",
					URL:          "https://example.com/2",
					LastModified: time.Date(2026, 2, 8, 9, 10, 0, 0, time.UTC),
				},
				{
					Key:          "reports/user-1/2026/02/08/20260208T090400Z_r-1.csv",
					URL:          "https://example.com/1",
					LastModified: time.Date(2026, 2, 8, 9, 9, 0, 0, time.UTC),
				},
			},
		},
	}

	uc := NewListReportsUseCase(storage, nil, defaultListConfig(true), logger.New("error"))

	res, err := uc.Execute(context.Background(), ListReportsCommand{UserID: "user-1"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if storage.lastPrefix != "reports/user-1/" {
		t.Fatalf("unexpected prefix: %s", storage.lastPrefix)
	}
	if storage.lastLimit != 24 {
		t.Fatalf("unexpected limit: %d", storage.lastLimit)
	}
	if len(res.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(res.Items))
	}
	if res.Items[0].ReportID != "r-2" || res.Items[0].Format != "json" {
		t.Fatalf("unexpected first item: %+v", res.Items[0])
	}
	if res.Items[0].CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be parsed")
	}
	if !res.Items[0].LastModified.After(res.Items[1].LastModified) {
		t.Fatalf("expected result sorted by last_modified desc")
	}
}

func TestListReportsUseCase_ValidationAndLimit(t *testing.T) {
	storage := &mockReportStorage{}
	uc := NewListReportsUseCase(storage, nil, ListReportsConfig{DefaultLimit: 10, MaxLimit: 50, FallbackToS3OnError: true}, logger.New("error"))

	if _, err := uc.Execute(context.Background(), ListReportsCommand{UserID: "invalid id"}); !apperr.IsInvalid(err) {
		t.Fatalf("expected invalid user id error, got %v", err)
	}

	if _, err := uc.Execute(context.Background(), ListReportsCommand{UserID: "user-1", Format: "pdf"}); !apperr.IsInvalid(err) {
		t.Fatalf("expected invalid format error, got %v", err)
	}

	from := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	if _, err := uc.Execute(context.Background(), ListReportsCommand{UserID: "user-1", From: from, To: from.Add(-time.Hour)}); !apperr.IsInvalid(err) {
		t.Fatalf("expected invalid range error, got %v", err)
	}

	if _, err := uc.Execute(context.Background(), ListReportsCommand{UserID: "user-1", Limit: 500}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if storage.lastLimit != 50 {
		t.Fatalf("expected clamped limit 50, got %d", storage.lastLimit)
	}
}

func TestListReportsUseCase_StorageError(t *testing.T) {
	storage := &mockReportStorage{listErr: errors.New("boom")}
	uc := NewListReportsUseCase(storage, nil, defaultListConfig(true), logger.New("error"))

	_, err := uc.Execute(context.Background(), ListReportsCommand{UserID: "user-1"})
	if err == nil || !strings.Contains(err.Error(), "failed to list reports") {
		t.Fatalf("expected storage error wrapper, got %v", err)
	}
}

func TestListReportsUseCase_MetadataPrimary(t *testing.T) {
	metadataRepo := &mockReportMetadataRepository{
		page: port.ReportListPage{
			Items: []port.ReportMetadata{
				{
					ReportID:  "r-1",
					UserID:    "user-1",
					Format:    "csv",
					S3Key:     "reports/user-1/2026/02/08/20260208T090500Z_r-1.csv",
					CreatedAt: time.Date(2026, 2, 8, 9, 5, 0, 0, time.UTC),
				},
			},
			NextCursor: "next-page",
		},
	}
	uc := NewListReportsUseCase(&mockReportStorage{}, metadataRepo, defaultListConfig(true), logger.New("error"))

	res, err := uc.Execute(context.Background(), ListReportsCommand{
		UserID: "user-1",
		Limit:  10,
		Format: "CSV",
		Cursor: "cursor",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if res.NextCursor != "next-page" {
		t.Fatalf("unexpected next cursor: %s", res.NextCursor)
	}
	if len(res.Items) != 1 || !strings.HasPrefix(res.Items[0].URL, "https://signed.example.com/") {
		t.Fatalf("expected signed URL, got %+v", res.Items)
	}
	if metadataRepo.lastQuery.Format != "csv" {
		t.Fatalf("expected normalized format filter, got %q", metadataRepo.lastQuery.Format)
	}
}

func TestListReportsUseCase_MetadataFallback(t *testing.T) {
	storage := &mockReportStorage{
		objectsByPrefix: map[string][]port.StoredObject{
			"reports/user-1/": {{
				Key:          "reports/user-1/2026/02/08/20260208T090500Z_r-1.csv",
				LastModified: time.Date(2026, 2, 8, 9, 10, 0, 0, time.UTC),
			}},
		},
	}

	withFallback := NewListReportsUseCase(storage, &mockReportMetadataRepository{err: errors.New("ddb down")}, defaultListConfig(true), logger.New("error"))
	res, err := withFallback.Execute(context.Background(), ListReportsCommand{UserID: "user-1"})
	if err != nil || len(res.Items) != 1 {
		t.Fatalf("expected S3 fallback, got %+v, %v", res, err)
	}

	if _, err := withFallback.Execute(context.Background(), ListReportsCommand{UserID: "user-1", Cursor: "c"}); !apperr.IsInvalid(err) {
		t.Fatalf("cursor without index must be invalid, got %v", err)
	}

	noFallback := NewListReportsUseCase(storage, &mockReportMetadataRepository{err: errors.New("ddb down")}, defaultListConfig(false), logger.New("error"))
	if _, err := noFallback.Execute(context.Background(), ListReportsCommand{UserID: "user-1"}); err == nil || !strings.Contains(err.Error(), "metadata index") {
		t.Fatalf("expected metadata index error, got %v", err)
	}
}

func TestInferReportHelpers(t *testing.T) {
	key := "reports/user-1/2026/02/08/20260208T090500Z_3f1c.json"
	id, format := inferReportIdentity(key)
	if id != "3f1c" || format != "json" {
		t.Fatalf("unexpected identity: %s %s", id, format)
	}

	created := inferCreatedAt(key)
	want := time.Date(2026, 2, 8, 9, 5, 0, 0, time.UTC)
	if !created.Equal(want) {
		t.Fatalf("unexpected created_at: %s", created)
	}
}
