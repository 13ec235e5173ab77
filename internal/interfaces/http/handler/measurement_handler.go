package handler

import (
	"errors"
	"net/http"

	"github.com/dreschagin/plugin-performance-monitor/internal/application/dto"
	"github.com/dreschagin/plugin-performance-monitor/internal/application/usecase"
	"github.com/dreschagin/plugin-performance-monitor/internal/interfaces/http/middleware"
	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"
)

const defaultMaxIngestPayloadBytes = 2 * 1024 * 1024

// MeasurementHandler принимает пакеты замеров от коллекторов
type MeasurementHandler struct {
	ingestUC        *usecase.IngestMeasurementsUseCase
	maxPayloadBytes int64
	logger          *logger.Logger
}

// NewMeasurementHandler создает handler приема замеров
func NewMeasurementHandler(ingestUC *usecase.IngestMeasurementsUseCase, maxPayloadBytes int64, log *logger.Logger) *MeasurementHandler {
	if maxPayloadBytes <= 0 {
		maxPayloadBytes = defaultMaxIngestPayloadBytes
	}
	return &MeasurementHandler{
		ingestUC:        ingestUC,
		maxPayloadBytes: maxPayloadBytes,
		logger:          log,
	}
}

// Ingest обрабатывает POST /api/v1/measurements.
// Частично отклоненный пакет возвращает 200 со списком rejected.
func (h *MeasurementHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, h.logger, "ingest measurements", err)
		return
	}

	var cmd dto.IngestBatchCommand
	if err := decodeJSON(w, r, h.maxPayloadBytes, &cmd); err != nil {
		if errors.Is(err, errPayloadTooLarge) {
			middleware.WriteJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: err.Error()})
			return
		}
		writeError(w, h.logger, "ingest measurements", err)
		return
	}

	result, err := h.ingestUC.Execute(r.Context(), scope, cmd)
	if err != nil {
		writeError(w, h.logger, "ingest measurements", err)
		return
	}

	writeOK(w, result)
}
