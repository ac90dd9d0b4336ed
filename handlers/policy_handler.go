package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/openclaims/coverd/middleware"
	"github.com/openclaims/coverd/models"
	"github.com/openclaims/coverd/repositories"
	"github.com/openclaims/coverd/services"
	"github.com/openclaims/coverd/utils"
	"go.uber.org/zap"
)

// PolicyService is the lifecycle surface the policy handlers call
type PolicyService interface {
	CreatePolicy(ctx context.Context, owner, target models.Address, coverage int64) (*models.Policy, error)
	VerifyAndPayout(ctx context.Context, caller models.Address, id models.PolicyID) (*models.Policy, error)
	RegisterClaim(ctx context.Context, caller models.Address, id models.PolicyID) error
	GetPolicy(ctx context.Context, caller models.Address, id models.PolicyID) (*models.Policy, error)
	ListPolicies(ctx context.Context, caller models.Address, limit, offset int) ([]*models.Policy, error)
}

// PolicyHandler handles policy-related HTTP requests
type PolicyHandler struct {
	service   PolicyService
	eventRepo repositories.EventRepository
	logger    *zap.Logger
}

// NewPolicyHandler creates a new PolicyHandler
func NewPolicyHandler(service PolicyService, eventRepo repositories.EventRepository, logger *zap.Logger) *PolicyHandler {
	return &PolicyHandler{
		service:   service,
		eventRepo: eventRepo,
		logger:    logger,
	}
}

// CreatePolicyRequest is the request body for creating a policy
type CreatePolicyRequest struct {
	Target   string `json:"target" validate:"required,ledger_address"`
	Coverage int64  `json:"coverage" validate:"gt=0"`
}

// HandleCreate handles POST /api/v1/policies
func (h *PolicyHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())

	var req CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	policy, err := h.service.CreatePolicy(r.Context(), caller, models.Address(req.Target), req.Coverage)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, policy)
}

// HandleList handles GET /api/v1/policies
func (h *PolicyHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())
	limit, offset := parsePagination(r)

	policies, err := h.service.ListPolicies(r.Context(), caller, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if policies == nil {
		policies = []*models.Policy{}
	}
	_ = utils.WriteOK(w, policies)
}

// HandleGet handles GET /api/v1/policies/{id}
func (h *PolicyHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())

	id, ok := h.policyID(w, r)
	if !ok {
		return
	}

	policy, err := h.service.GetPolicy(r.Context(), caller, id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, policy)
}

// HandleVerify handles POST /api/v1/policies/{id}/verify
func (h *PolicyHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())

	id, ok := h.policyID(w, r)
	if !ok {
		return
	}

	policy, err := h.service.VerifyAndPayout(r.Context(), caller, id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, policy)
}

// HandleRegisterClaim handles POST /api/v1/policies/{id}/claims
func (h *PolicyHandler) HandleRegisterClaim(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())

	id, ok := h.policyID(w, r)
	if !ok {
		return
	}

	if err := h.service.RegisterClaim(r.Context(), caller, id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteNoContent(w)
}

// HandleListEvents handles GET /api/v1/policies/{id}/events.
// Events are visible only to the policy owner; the ownership check
// rides on the same not-found conflation as the policy itself.
func (h *PolicyHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())

	id, ok := h.policyID(w, r)
	if !ok {
		return
	}

	if _, err := h.service.GetPolicy(r.Context(), caller, id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	limit, offset := parsePagination(r)
	events, err := h.eventRepo.ListByPolicy(r.Context(), id, limit, offset)
	if err != nil {
		HandleServiceError(w, services.NewDomainError(services.ErrorTypeInternal, "database error", err), h.logger)
		return
	}

	if events == nil {
		events = []*models.Event{}
	}
	_ = utils.WriteOK(w, events)
}

// parseIDParam parses the id path parameter
func parseIDParam(r *http.Request) (models.PolicyID, error) {
	return models.ParsePolicyID(chi.URLParam(r, "id"))
}

// policyID parses the id path parameter, writing a 400 on failure
func (h *PolicyHandler) policyID(w http.ResponseWriter, r *http.Request) (models.PolicyID, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid policy id", nil)
		return "", false
	}
	return id, true
}

// parsePagination reads limit/offset query parameters with defaults
func parsePagination(r *http.Request) (limit, offset int) {
	limit = 50
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
