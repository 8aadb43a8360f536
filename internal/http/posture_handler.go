package httpapi

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"smartchair/internal/export"
	"smartchair/internal/models"
	"smartchair/internal/service"
	"smartchair/internal/store"
	"smartchair/internal/validator"

	"go.uber.org/zap"
)

const (
	csvFilename  = "posture_history.csv"
	xlsxFilename = "posture_history.xlsx"
	xlsxMIME     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// PostureHandler 遥测与告警接口
type PostureHandler struct {
	svc          *service.IngestService
	maxBodyBytes int64
	logger       *zap.Logger
}

func NewPostureHandler(svc *service.IngestService, maxBodyBytes int64, logger *zap.Logger) *PostureHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 << 20
	}
	return &PostureHandler{svc: svc, maxBodyBytes: maxBodyBytes, logger: logger}
}

// Update POST /update
func (h *PostureHandler) Update(w http.ResponseWriter, r *http.Request) {
	raw, err := validator.DecodeBody(r.Body, h.maxBodyBytes)
	if err != nil {
		h.logger.Warn("Rejected reading with unreadable body",
			zap.String("request_id", requestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := h.svc.Ingest(r.Context(), raw)
	if err != nil {
		status := http.StatusInternalServerError
		msg := "failed to store reading"
		if errors.Is(err, store.ErrPersistTimeout) {
			msg = "timed out writing history"
		}
		h.logger.Error("Ingest failed",
			zap.String("request_id", requestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, models.UpdateResponse{Status: models.StatusOK, Received: entry})
}

// Latest GET /data
func (h *PostureHandler) Latest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Latest())
}

// History GET /history
func (h *PostureHandler) History(w http.ResponseWriter, r *http.Request) {
	entries := h.svc.Snapshot()
	if entries == nil {
		entries = []models.TelemetryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// DownloadCSV GET /download.csv，逐行流式写出
func (h *PostureHandler) DownloadCSV(w http.ResponseWriter, r *http.Request) {
	entries := h.svc.Snapshot()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+csvFilename)
	w.WriteHeader(http.StatusOK)

	rows, err := export.WriteCSV(w, export.Rows(entries))
	if err != nil {
		// 响应头已发出，只能记录
		h.logger.Warn("CSV export aborted",
			zap.String("request_id", requestID(r.Context())),
			zap.Int("rows_written", rows),
			zap.Int("rows_total", len(entries)),
			zap.Error(err),
		)
	}
}

// DownloadXLSX GET /download.xlsx
func (h *PostureHandler) DownloadXLSX(w http.ResponseWriter, r *http.Request) {
	entries := h.svc.Snapshot()

	var buf bytes.Buffer
	if _, err := export.WriteXLSX(&buf, entries); err != nil {
		h.logger.Error("Failed to generate XLSX export",
			zap.String("request_id", requestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to generate workbook")
		return
	}

	w.Header().Set("Content-Type", xlsxMIME)
	w.Header().Set("Content-Disposition", "attachment; filename="+xlsxFilename)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// RaiseAlert POST /alert，请求体被忽略
func (h *PostureHandler) RaiseAlert(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RaiseAlert(r.Context()); err != nil {
		h.alertError(w, r, "raise", err)
		return
	}
	writeJSON(w, http.StatusOK, models.AlertRaiseResponse{Status: models.StatusOK, Received: true})
}

// CheckAlert GET /alert
func (h *PostureHandler) CheckAlert(w http.ResponseWriter, r *http.Request) {
	pending, err := h.svc.CheckAlert(r.Context())
	if err != nil {
		h.alertError(w, r, "check", err)
		return
	}
	writeJSON(w, http.StatusOK, models.AlertStatus{Show: pending})
}

// AcknowledgeAlert POST /alert/ack、DELETE /alert
func (h *PostureHandler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.AcknowledgeAlert(r.Context()); err != nil {
		h.alertError(w, r, "acknowledge", err)
		return
	}
	writeJSON(w, http.StatusOK, models.AlertStatus{Status: models.StatusOK, Show: false})
}

func (h *PostureHandler) alertError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error("Alert signal unavailable",
		zap.String("request_id", requestID(r.Context())),
		zap.String("op", op),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "alert signal unavailable")
}

// Stats GET /stats
func (h *PostureHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Stats(r.Context()))
}

// Health GET /healthz
func (h *PostureHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": models.StatusOK})
}
