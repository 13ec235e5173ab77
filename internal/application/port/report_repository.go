package port

import (
	"context"
	"time"
)

// ReportMetadata представляет метаданные выгруженного отчета.
type ReportMetadata struct {
	ReportID    string
	UserID      string
	Format      string
	S3Key       string
	URL         string
	ContentType string
	SizeBytes   int64
	RowCount    int
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// ReportListQuery определяет параметры выборки списка отчетов.
type ReportListQuery struct {
	UserID string
	Limit  int
	Cursor string
	Format string
	From   time.Time
	To     time.Time
}

// ReportListPage содержит результат выборки и курсор следующей страницы.
type ReportListPage struct {
	Items      []ReportMetadata
	NextCursor string
}

// ReportMetadataRepository определяет интерфейс хранения метаданных отчетов.
type ReportMetadataRepository interface {
	Put(ctx context.Context, record ReportMetadata) error
	ListByUser(ctx context.Context, query ReportListQuery) (ReportListPage, error)
}

// StoredObject описывает объект в хранилище отчетов.
type StoredObject struct {
	Key          string
	URL          string
	SizeBytes    int64
	LastModified time.Time
}

// ReportStorage определяет интерфейс для хранения файлов отчетов.
type ReportStorage interface {
	// PutObject загружает объект и возвращает URL для чтения.
	PutObject(ctx context.Context, key, contentType string, body []byte) (string, error)

	// GetObjectURL возвращает URL для чтения объекта (presigned или публичный).
	GetObjectURL(ctx context.Context, key string) (string, error)

	// ListObjects возвращает объекты с префиксом, новые первыми.
	ListObjects(ctx context.Context, prefix string, limit int) ([]StoredObject, error)
}
