package lifecycle

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/luisjglz/evaluat/pkg/interfaces"
	"github.com/luisjglz/evaluat/pkg/logger"
	"github.com/luisjglz/evaluat/pkg/types"
)

// Handler exposes the lifecycle service over HTTP
type Handler struct {
	service interfaces.LifecycleService
	logger  *logger.Logger
}

// NewHandler creates a new lifecycle HTTP handler
func NewHandler(service interfaces.LifecycleService, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// RegisterRoutes configures HTTP routes for the lifecycle component
func (h *Handler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/labs/{id}/lifecycle", h.getLifecycleViewHandler).Methods("GET")
	api.HandleFunc("/labs/{id}/captures", h.submitCapturesHandler).Methods("POST")

	api.HandleFunc("/labs/{id}/configurations", h.listConfigurationsHandler).Methods("GET")
	api.HandleFunc("/labs/{id}/configurations/{testId}", h.acceptConfigurationHandler).Methods("PUT")
	api.HandleFunc("/labs/{id}/configurations/{testId}/lock", h.setConfigLockHandler).Methods("PUT")

	// Administrative overrides
	api.HandleFunc("/labs/{id}/overrides/edit", h.setEditOverrideHandler).Methods("PUT")
	api.HandleFunc("/labs/{id}/overrides/capture", h.setCaptureOverrideHandler).Methods("PUT")
	api.HandleFunc("/labs/{id}/state", h.setStateHandler).Methods("PUT")

	h.logger.Info("Lifecycle routes configured")
}

// getLifecycleViewHandler handles the lifecycle read path
func (h *Handler) getLifecycleViewHandler(w http.ResponseWriter, r *http.Request) {
	labID := mux.Vars(r)["id"]

	view, err := h.service.GetLifecycleView(r.Context(), labID)
	if err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, view)
}

// submitCapturesRequest is the data-entry batch payload
type submitCapturesRequest struct {
	Period time.Time            `json:"period"`
	Fields []types.CaptureField `json:"fields"`
}

// submitCapturesHandler handles capture submission
func (h *Handler) submitCapturesHandler(w http.ResponseWriter, r *http.Request) {
	labID := mux.Vars(r)["id"]

	var req submitCapturesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil))
		return
	}
	if len(req.Fields) == 0 {
		h.writeErrorResponse(w, types.NewValidationError(types.ErrCodeInvalidInput, "no capture fields provided", nil))
		return
	}

	result, err := h.service.SubmitCaptures(r.Context(), labID, req.Period, req.Fields)
	if err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, result)
}

// listConfigurationsHandler handles configuration listing
func (h *Handler) listConfigurationsHandler(w http.ResponseWriter, r *http.Request) {
	labID := mux.Vars(r)["id"]

	views, err := h.service.ListConfigurations(r.Context(), labID)
	if err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, views)
}

// acceptConfigurationHandler handles configuration acceptance
func (h *Handler) acceptConfigurationHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var sel types.ConfigSelection
	if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
		h.writeErrorResponse(w, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil))
		return
	}

	cfg, err := h.service.AcceptConfiguration(r.Context(), vars["id"], vars["testId"], sel)
	if err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, cfg)
}

// setConfigLockHandler handles the manual per-row lock flag
func (h *Handler) setConfigLockHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req struct {
		Locked bool `json:"locked"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil))
		return
	}

	if err := h.service.SetConfigLock(r.Context(), vars["id"], vars["testId"], req.Locked); err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]bool{"locked": req.Locked})
}

// overrideRequest is the administrative override payload
type overrideRequest struct {
	Active bool       `json:"active"`
	Until  *time.Time `json:"until,omitempty"`
}

// setEditOverrideHandler handles the edit window override
func (h *Handler) setEditOverrideHandler(w http.ResponseWriter, r *http.Request) {
	labID := mux.Vars(r)["id"]

	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil))
		return
	}

	if err := h.service.SetEditOverride(r.Context(), labID, req.Active, req.Until); err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]bool{"active": req.Active})
}

// setCaptureOverrideHandler handles the capture window override
func (h *Handler) setCaptureOverrideHandler(w http.ResponseWriter, r *http.Request) {
	labID := mux.Vars(r)["id"]

	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil))
		return
	}

	if err := h.service.SetCaptureOverride(r.Context(), labID, req.Active, req.Until); err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]bool{"active": req.Active})
}

// setStateHandler handles direct administrative state assignment
func (h *Handler) setStateHandler(w http.ResponseWriter, r *http.Request) {
	labID := mux.Vars(r)["id"]

	var req struct {
		State   int    `json:"state"`
		AdminID string `json:"admin_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil))
		return
	}

	if err := h.service.SetState(r.Context(), labID, types.LifecycleState(req.State), req.AdminID); err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]string{"state": types.LifecycleState(req.State).String()})
}

// writeJSONResponse writes a JSON response
func (h *Handler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeErrorResponse maps the error taxonomy onto HTTP status codes
func (h *Handler) writeErrorResponse(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	code := types.ErrCodeInternalError
	message := "internal error"

	if labErr, ok := err.(*types.LabError); ok {
		code = labErr.Code
		message = labErr.Message
		switch labErr.Type {
		case types.ErrorTypeValidation:
			statusCode = http.StatusBadRequest
		case types.ErrorTypeAuthorization:
			statusCode = http.StatusForbidden
		case types.ErrorTypeNotFound:
			statusCode = http.StatusNotFound
		case types.ErrorTypeConflict:
			statusCode = http.StatusConflict
		case types.ErrorTypeExpiredToken:
			statusCode = http.StatusGone
		}
	}

	if statusCode == http.StatusInternalServerError {
		h.logger.WithError(err).Error("Request failed")
	}

	h.writeJSONResponse(w, statusCode, map[string]interface{}{
		"error":   code,
		"message": message,
		"status":  statusCode,
	})
}
