package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/openclaims/coverd/middleware"
	"github.com/openclaims/coverd/models"
	"github.com/openclaims/coverd/utils"
	"go.uber.org/zap"
)

// AdminService is the administrative surface of the lifecycle engine.
// Authority is decided by the engine against its configured admin
// address, not by token roles.
type AdminService interface {
	EmergencyRecover(ctx context.Context, caller models.Address, id models.PolicyID) (*models.Policy, error)
	Pause(caller models.Address) error
	Unpause(caller models.Address) error
	IsPaused() bool
	TransferAdmin(caller, newAdmin models.Address) error
}

// AdminHandler handles administrative HTTP requests
type AdminHandler struct {
	service AdminService
	logger  *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(service AdminService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		logger:  logger,
	}
}

// HandlePause handles POST /api/v1/admin/pause
func (h *AdminHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())

	if err := h.service.Pause(caller); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, map[string]bool{"paused": true})
}

// HandleUnpause handles POST /api/v1/admin/unpause
func (h *AdminHandler) HandleUnpause(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())

	if err := h.service.Unpause(caller); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, map[string]bool{"paused": false})
}

// HandleStatus handles GET /api/v1/admin/status
func (h *AdminHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, map[string]bool{"paused": h.service.IsPaused()})
}

// HandleRecover handles POST /api/v1/admin/policies/{id}/recover
func (h *AdminHandler) HandleRecover(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid policy id", nil)
		return
	}

	policy, err := h.service.EmergencyRecover(r.Context(), caller, id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, policy)
}

// TransferAdminRequest is the request body for transferring administration
type TransferAdminRequest struct {
	NewAdmin string `json:"new_admin" validate:"required,ledger_address"`
}

// HandleTransferAdmin handles POST /api/v1/admin/transfer
func (h *AdminHandler) HandleTransferAdmin(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())

	var req TransferAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if err := h.service.TransferAdmin(caller, models.Address(req.NewAdmin)); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, map[string]string{"admin": models.NormalizeAddress(req.NewAdmin).String()})
}
