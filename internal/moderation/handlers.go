package moderation

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/luisjglz/evaluat/pkg/interfaces"
	"github.com/luisjglz/evaluat/pkg/logger"
	"github.com/luisjglz/evaluat/pkg/types"
)

// Handler exposes the moderation service over HTTP
type Handler struct {
	service interfaces.ModerationService
	logger  *logger.Logger
}

// NewHandler creates a new moderation HTTP handler
func NewHandler(service interfaces.ModerationService, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// RegisterRoutes configures HTTP routes for the moderation component
func (h *Handler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/proposals", h.createProposalHandler).Methods("POST")
	api.HandleFunc("/proposals", h.listProposalsHandler).Methods("GET")

	// The action-link endpoint is a GET so it works from an email client
	api.HandleFunc("/proposals/resolve", h.resolveTokenHandler).Methods("GET")

	api.HandleFunc("/proposals/{id}", h.getProposalHandler).Methods("GET")
	api.HandleFunc("/proposals/{id}/resolve", h.resolveDirectHandler).Methods("POST")

	h.logger.Info("Moderation routes configured")
}

// createProposalRequest is the proposal submission payload
type createProposalRequest struct {
	Kind        string `json:"kind"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
	Author      string `json:"author"`
}

// createProposalHandler handles proposal submission
func (h *Handler) createProposalHandler(w http.ResponseWriter, r *http.Request) {
	var req createProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil))
		return
	}

	id, err := h.service.Propose(r.Context(), types.PropertyKind(req.Kind), req.Value, req.Description, req.Author)
	if err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, map[string]string{"id": id})
}

// listProposalsHandler handles proposal listing, optionally filtered by
// a numeric status query parameter
func (h *Handler) listProposalsHandler(w http.ResponseWriter, r *http.Request) {
	var status *types.ProposalStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || !types.ProposalStatus(n).Valid() {
			h.writeErrorResponse(w, types.NewValidationError(types.ErrCodeInvalidInput, "invalid status filter", nil))
			return
		}
		s := types.ProposalStatus(n)
		status = &s
	}

	proposals, err := h.service.ListProposals(r.Context(), status)
	if err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, proposals)
}

// getProposalHandler handles proposal retrieval
func (h *Handler) getProposalHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	proposal, err := h.service.GetProposal(r.Context(), id)
	if err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, proposal)
}

// resolveTokenHandler handles a clicked action link. The token itself
// is the capability; the optional moderator parameter only feeds the
// audit trail.
func (h *Handler) resolveTokenHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	token := query.Get("token")
	decision := types.Decision(query.Get("decision"))
	moderator := query.Get("moderator")
	if moderator == "" {
		moderator = "link"
	}

	if token == "" {
		h.writeErrorResponse(w, types.NewExpiredTokenError())
		return
	}

	if err := h.service.ResolveToken(r.Context(), token, decision, moderator); err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]bool{"ok": true})
}

// resolveDirectRequest is the administrative resolution payload
type resolveDirectRequest struct {
	Status  int    `json:"status"`
	AdminID string `json:"admin_id"`
}

// resolveDirectHandler handles resolution from the administrative form
func (h *Handler) resolveDirectHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req resolveDirectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil))
		return
	}

	if err := h.service.ResolveDirect(r.Context(), id, types.ProposalStatus(req.Status), req.AdminID); err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]int{"status": req.Status})
}

// writeJSONResponse writes a JSON response
func (h *Handler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeErrorResponse maps the error taxonomy onto HTTP status codes.
// Rejected tokens always collapse into the same opaque payload.
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
