package usecase

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/application/port"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/apperr"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"
)

type ListReportsCommand struct {
	UserID string
	Limit  int
	Cursor string
	Format string
	From   time.Time
	To     time.Time
}

type ReportListItem struct {
	ReportID     string
	Format       string
	S3Key        string
	URL          string
	SizeBytes    int64
	RowCount     int
	CreatedAt    time.Time
	LastModified time.Time
}

type ListReportsResult struct {
	Items      []ReportListItem
	NextCursor string
}

type ListReportsConfig struct {
	KeyPrefix           string
	DefaultLimit        int
	MaxLimit            int
	FallbackToS3OnError bool
}

type ListReportsUseCase struct {
	storage            port.ReportStorage
	metadataRepository port.ReportMetadataRepository
	config             ListReportsConfig
	logger             *logger.Logger
}

func NewListReportsUseCase(
	storage port.ReportStorage,
	metadataRepository port.ReportMetadataRepository,
	config ListReportsConfig,
	log *logger.Logger,
) *ListReportsUseCase {
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = 24
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = 100
	}
	return &ListReportsUseCase{
		storage:            storage,
		metadataRepository: metadataRepository,
		config:             config,
		logger:             log,
	}
}

func (uc *ListReportsUseCase) Execute(
	ctx context.Context,
	cmd ListReportsCommand,
) (*ListReportsResult, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if !reportOwnerRegex.MatchString(userID) {
		return nil, apperr.Invalid("invalid user id")
	}

	limit := cmd.Limit
	if limit <= 0 {
		limit = uc.config.DefaultLimit
	}
	if limit > uc.config.MaxLimit {
		limit = uc.config.MaxLimit
	}

	period, err := valueobject.NewPeriod(cmd.From, cmd.To)
	if err != nil {
		return nil, err
	}

	format := strings.TrimSpace(cmd.Format)
	if format != "" {
		parsed, err := valueobject.ParseReportFormat(format)
		if err != nil {
			return nil, apperr.Invalid("%v", err)
		}
		format = string(parsed)
	}

	query := port.ReportListQuery{
		UserID: userID,
		Limit:  limit,
		Cursor: strings.TrimSpace(cmd.Cursor),
		Format: format,
		From:   period.From(),
		To:     period.To(),
	}

	if uc.metadataRepository != nil {
		page, err := uc.metadataRepository.ListByUser(ctx, query)
		if err == nil {
			return uc.mapMetadataPage(ctx, page), nil
		}

		if !uc.config.FallbackToS3OnError {
			return nil, fmt.Errorf("failed to list reports via metadata index: %w", err)
		}

		if uc.logger != nil {
			uc.logger.Warn("Report metadata index is unavailable, using S3 fallback",
				"user_id", userID,
				"error", err.Error(),
			)
		}
	}

	return uc.listFromS3(ctx, query, period)
}

func (uc *ListReportsUseCase) buildPrefix(userID string) string {
	return fmt.Sprintf("%s/%s/", reportKeyPrefix(uc.config.KeyPrefix), userID)
}

func (uc *ListReportsUseCase) mapMetadataPage(
	ctx context.Context,
	page port.ReportListPage,
) *ListReportsResult {
	items := make([]ReportListItem, 0, len(page.Items))
	for _, record := range page.Items {
		url := record.URL
		if uc.storage != nil {
			if generatedURL, err := uc.storage.GetObjectURL(ctx, record.S3Key); err == nil {
				url = generatedURL
			}
		}

		items = append(items, ReportListItem{
			ReportID:     record.ReportID,
			Format:       record.Format,
			S3Key:        record.S3Key,
			URL:          url,
			SizeBytes:    record.SizeBytes,
			RowCount:     record.RowCount,
			CreatedAt:    record.CreatedAt.UTC(),
			LastModified: record.CreatedAt.UTC(),
		})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	return &ListReportsResult{
		Items:      items,
		NextCursor: page.NextCursor,
	}
}

func (uc *ListReportsUseCase) listFromS3(
	ctx context.Context,
	query port.ReportListQuery,
	period valueobject.Period,
) (*ListReportsResult, error) {
	if uc.storage == nil {
		return nil, ErrReportStorageNotConfigured
	}
	if query.Cursor != "" {
		return nil, apperr.Invalid("cursor pagination requires report metadata index")
	}

	objects, err := uc.storage.ListObjects(ctx, uc.buildPrefix(query.UserID), query.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	filtered := make([]ReportListItem, 0, len(objects))
	for _, object := range objects {
		reportID, format := inferReportIdentity(object.Key)
		item := ReportListItem{
			ReportID:     reportID,
			Format:       format,
			S3Key:        object.Key,
			URL:          object.URL,
			SizeBytes:    object.SizeBytes,
			CreatedAt:    inferCreatedAt(object.Key),
			LastModified: object.LastModified.UTC(),
		}

		if query.Format != "" && item.Format != query.Format {
			continue
		}
		if !period.Contains(item.CreatedAt) {
			continue
		}

		filtered = append(filtered, item)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].LastModified.After(filtered[j].LastModified)
	})

	if len(filtered) > query.Limit {
		filtered = filtered[:query.Limit]
	}

	return &ListReportsResult{
		Items:      filtered,
		NextCursor: "",
	}, nil
}

// inferReportIdentity извлекает id и формат из имени вида <ts>_<id>.<ext>
func inferReportIdentity(key string) (reportID, format string) {
	filename := path.Base(strings.TrimSpace(key))
	if filename == "" || filename == "." {
		return "", "unknown"
	}

	ext := path.Ext(filename)
	format = strings.TrimPrefix(ext, ".")
	if format == "" {
		format = "unknown"
	}

	withoutExt := strings.TrimSuffix(filename, ext)
	underscore := strings.IndexRune(withoutExt, '_')
	if underscore <= 0 || underscore == len(withoutExt)-1 {
		return "", format
	}
	return withoutExt[underscore+1:], format
}

func inferCreatedAt(key string) time.Time {
	filename := path.Base(strings.TrimSpace(key))
	if filename == "" || filename == "." {
		return time.Time{}
	}

	withoutExt := strings.TrimSuffix(filename, path.Ext(filename))
	underscore := strings.IndexRune(withoutExt, '_')
	if underscore <= 0 {
		return time.Time{}
	}

	createdAt, err := time.Parse(reportTimestampLayout, withoutExt[:underscore])
	if err != nil {
		return time.Time{}
	}
	return createdAt.UTC()
}
