package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pulsewise/platform/pkg/common/logger"
	"github.com/pulsewise/platform/pkg/common/models"
	"github.com/pulsewise/platform/pkg/gateway/middleware"
)

const (
	uploadField = "file"

	// multipartOverhead leaves room for boundaries and headers around the file.
	multipartOverhead = 1 << 20
	multipartMemory   = 32 << 20

	defaultRecordWindow = 30 * 24 * time.Hour
	defaultPageLimit    = 20
	maxPageLimit        = 100
)

type HTTPHandler struct {
	service *Service
	maxBody int64
}

func NewHTTPHandler(service *Service, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, maxBody: maxBody}
}

// Register mounts the heart-rate routes. Every route requires an owner.
func (h *HTTPHandler) Register(router *mux.Router) {
	hr := router.PathPrefix("/heart-rate").Subrouter()
	hr.Use(middleware.RequireOwner)
	hr.HandleFunc("/import", h.handleImport).Methods(http.MethodPost)
	hr.HandleFunc("/analytics", h.handleAnalytics).Methods(http.MethodGet)
	hr.HandleFunc("/records", h.handleRecords).Methods(http.MethodGet)
	hr.HandleFunc("/predictions", h.handlePredictions).Methods(http.MethodGet)
	hr.HandleFunc("/uploads", h.handleUploads).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleImport(w http.ResponseWriter, r *http.Request) {
	owner, _ := middleware.OwnerFromContext(r.Context())
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody+multipartOverhead)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ReasonInvalidInput, "document exceeds the upload limit")
			return
		}
		writeError(w, http.StatusBadRequest, ReasonInvalidInput, "expected a multipart upload")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeError(w, http.StatusBadRequest, ReasonInvalidInput, fmt.Sprintf("missing %q file field", uploadField))
		return
	}
	defer file.Close()

	limit := h.maxBody
	if limit <= 0 {
		limit = header.Size
	}
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, ReasonInvalidInput, "failed to read upload")
		return
	}

	resp, err := h.service.Import(r.Context(), Document{
		OwnerID:     owner,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		h.writeImportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) writeImportError(w http.ResponseWriter, err error) {
	var ie *ImportError
	if !errors.As(err, &ie) {
		logger.Log.WithError(err).Error("unexpected import failure")
		writeError(w, http.StatusInternalServerError, ReasonPersistenceFailed, "internal error")
		return
	}

	status := http.StatusInternalServerError
	switch ie.Reason {
	case ReasonInvalidInput:
		status = http.StatusBadRequest
		if errors.Is(err, ErrTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
	case ReasonExtractionFailed:
		status = http.StatusBadGateway
	case ReasonEmptyText, ReasonNoRecordsParsed:
		status = http.StatusUnprocessableEntity
	case ReasonPersistenceFailed:
		status = http.StatusInternalServerError
	}
	writeError(w, status, ie.Reason, ie.Message)
}

func (h *HTTPHandler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	owner, _ := middleware.OwnerFromContext(r.Context())

	view, err := h.service.Analytics(r.Context(), owner)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no analytics for this account yet")
			return
		}
		logger.Log.WithError(err).Error("failed to load analytics")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *HTTPHandler) handleRecords(w http.ResponseWriter, r *http.Request) {
	owner, _ := middleware.OwnerFromContext(r.Context())

	from, to, err := parseDateWindow(r, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusBadRequest, ReasonInvalidInput, err.Error())
		return
	}

	records, err := h.service.Records(r.Context(), owner, from, to)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list heart-rate records")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"from":    from.Format(models.DateLayout),
		"to":      to.Format(models.DateLayout),
		"records": records,
	})
}

func (h *HTTPHandler) handlePredictions(w http.ResponseWriter, r *http.Request) {
	owner, _ := middleware.OwnerFromContext(r.Context())
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ReasonInvalidInput, err.Error())
		return
	}

	predictions, err := h.service.Predictions(r.Context(), owner, limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list predictions")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"predictions": predictions})
}

func (h *HTTPHandler) handleUploads(w http.ResponseWriter, r *http.Request) {
	owner, _ := middleware.OwnerFromContext(r.Context())
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ReasonInvalidInput, err.Error())
		return
	}

	uploads, err := h.service.Uploads(r.Context(), owner, limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list uploads")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"uploads": uploads})
}

// parseDateWindow reads ?from=&to= as YYYY-MM-DD. Missing bounds default to
// the 30 days ending today.
func parseDateWindow(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := today
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(models.DateLayout, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid 'to' date %q", raw)
		}
		to = parsed
	}
	from := to.Add(-defaultRecordWindow)
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(models.DateLayout, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid 'from' date %q", raw)
		}
		from = parsed
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("'from' must not be after 'to'")
	}
	return from, to, nil
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultPageLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return limit, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Log.WithError(err).Warn("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code Reason, message string) {
	writeJSON(w, status, models.ErrorResponse{Success: false, Code: string(code), Message: message})
}
