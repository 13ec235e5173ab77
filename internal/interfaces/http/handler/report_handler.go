package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/application/usecase"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/apperr"
	"github.com/dreschagin/plugin-performance-monitor/internal/interfaces/http/middleware"
	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"
)

const maxExportRequestBytes = 4 * 1024

// ReportHandler экспортирует отчеты и отдает их список
type ReportHandler struct {
	exportUC *usecase.ExportReportUseCase
	listUC   *usecase.ListReportsUseCase
	logger   *logger.Logger
}

// NewReportHandler создает handler отчетов
func NewReportHandler(exportUC *usecase.ExportReportUseCase, listUC *usecase.ListReportsUseCase, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		exportUC: exportUC,
		listUC:   listUC,
		logger:   log,
	}
}

type exportRequest struct {
	Format string `json:"format"`
}

type reportResponse struct {
	ReportID     string    `json:"report_id"`
	Format       string    `json:"format"`
	S3Key        string    `json:"s3_key"`
	URL          string    `json:"url,omitempty"`
	ContentType  string    `json:"content_type,omitempty"`
	SizeBytes    int64     `json:"size_bytes"`
	RowCount     int       `json:"row_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastModified time.Time `json:"last_modified,omitempty"`
}

type listReportsResponse struct {
	Items      []reportResponse `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// Export обрабатывает POST /api/v1/reports/export.
// Формат берется из тела или из query-параметра format; по умолчанию csv.
func (h *ReportHandler) Export(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, h.logger, "export report", err)
		return
	}

	format := strings.TrimSpace(r.URL.Query().Get("format"))
	if r.ContentLength != 0 && r.Body != nil && r.Body != http.NoBody {
		var req exportRequest
		if err := decodeJSON(w, r, maxExportRequestBytes, &req); err != nil {
			if errors.Is(err, errPayloadTooLarge) {
				middleware.WriteJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: err.Error()})
				return
			}
			writeError(w, h.logger, "export report", err)
			return
		}
		if strings.TrimSpace(req.Format) != "" {
			format = req.Format
		}
	}
	if format == "" {
		format = "csv"
	}

	result, err := h.exportUC.Execute(r.Context(), usecase.ExportReportCommand{
		Scope:  scope,
		Format: format,
	})
	if err != nil {
		h.writeReportError(w, "export report", err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, reportResponse{
		ReportID:    result.ReportID,
		Format:      result.Format,
		S3Key:       result.S3Key,
		URL:         result.URL,
		ContentType: result.ContentType,
		SizeBytes:   result.SizeBytes,
		RowCount:    result.RowCount,
		CreatedAt:   result.CreatedAt,
	})
}

// List обрабатывает GET /api/v1/reports?limit&cursor&format&from&to
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, h.logger, "list reports", err)
		return
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, h.logger, "list reports", err)
		return
	}
	from, err := queryTime(r, "from")
	if err != nil {
		writeError(w, h.logger, "list reports", err)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		writeError(w, h.logger, "list reports", err)
		return
	}

	result, err := h.listUC.Execute(r.Context(), usecase.ListReportsCommand{
		UserID: scope.UserID(),
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		Format: strings.TrimSpace(r.URL.Query().Get("format")),
		From:   from,
		To:     to,
	})
	if err != nil {
		h.writeReportError(w, "list reports", err)
		return
	}

	response := listReportsResponse{
		Items:      make([]reportResponse, 0, len(result.Items)),
		NextCursor: result.NextCursor,
	}
	for _, item := range result.Items {
		response.Items = append(response.Items, reportResponse{
			ReportID:     item.ReportID,
			Format:       item.Format,
			S3Key:        item.S3Key,
			URL:          item.URL,
			SizeBytes:    item.SizeBytes,
			RowCount:     item.RowCount,
			CreatedAt:    item.CreatedAt,
			LastModified: item.LastModified,
		})
	}

	writeOK(w, response)
}

func (h *ReportHandler) writeReportError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, usecase.ErrReportStorageNotConfigured) {
		middleware.WriteJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	writeError(w, h.logger, op, err)
}

func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperr.Invalid("%s must be RFC3339 timestamp", name)
	}
	return parsed, nil
}
