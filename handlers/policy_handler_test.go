package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/openclaims/coverd/middleware"
	"github.com/openclaims/coverd/models"
	"github.com/openclaims/coverd/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testCaller = models.Address("0xa11ce")
	testTarget = models.Address("0x7a96e7")
)

var testID = models.NewPolicyID(testCaller, testTarget, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

// fakePolicyService returns canned responses per method
type fakePolicyService struct {
	policy    *models.Policy
	policies  []*models.Policy
	err       error
	claimErr  error
	gotCaller models.Address
}

func (s *fakePolicyService) CreatePolicy(ctx context.Context, owner, target models.Address, coverage int64) (*models.Policy, error) {
	s.gotCaller = owner
	return s.policy, s.err
}

func (s *fakePolicyService) VerifyAndPayout(ctx context.Context, caller models.Address, id models.PolicyID) (*models.Policy, error) {
	s.gotCaller = caller
	return s.policy, s.err
}

func (s *fakePolicyService) RegisterClaim(ctx context.Context, caller models.Address, id models.PolicyID) error {
	s.gotCaller = caller
	return s.claimErr
}

func (s *fakePolicyService) GetPolicy(ctx context.Context, caller models.Address, id models.PolicyID) (*models.Policy, error) {
	s.gotCaller = caller
	return s.policy, s.err
}

func (s *fakePolicyService) ListPolicies(ctx context.Context, caller models.Address, limit, offset int) ([]*models.Policy, error) {
	s.gotCaller = caller
	return s.policies, s.err
}

type fakeEventRepo struct {
	events []*models.Event
	err    error
}

func (r *fakeEventRepo) Insert(ctx context.Context, event *models.Event) error { return nil }

func (r *fakeEventRepo) ListByPolicy(ctx context.Context, id models.PolicyID, limit, offset int) ([]*models.Event, error) {
	return r.events, r.err
}

func testPolicy() *models.Policy {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return models.NewPolicy(testCaller, testTarget, 1_000_000, 200_000, now, now.Add(24*time.Hour))
}

// newRouter mounts the handler on a chi router with the caller injected,
// mirroring the auth middleware
func newRouter(h *PolicyHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithCaller(req.Context(), testCaller)))
		})
	})
	r.Post("/policies", h.HandleCreate)
	r.Get("/policies", h.HandleList)
	r.Get("/policies/{id}", h.HandleGet)
	r.Post("/policies/{id}/verify", h.HandleVerify)
	r.Post("/policies/{id}/claims", h.HandleRegisterClaim)
	r.Get("/policies/{id}/events", h.HandleListEvents)
	return r
}

func TestHandleCreate(t *testing.T) {
	t.Run("valid request", func(t *testing.T) {
		svc := &fakePolicyService{policy: testPolicy()}
		router := newRouter(NewPolicyHandler(svc, &fakeEventRepo{}, zap.NewNop()))

		body, _ := json.Marshal(CreatePolicyRequest{Target: testTarget.String(), Coverage: 1_000_000})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("POST", "/policies", bytes.NewReader(body)))

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, testCaller, svc.gotCaller)
	})

	t.Run("malformed body", func(t *testing.T) {
		router := newRouter(NewPolicyHandler(&fakePolicyService{}, &fakeEventRepo{}, zap.NewNop()))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("POST", "/policies", strings.NewReader("{")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("validation failure", func(t *testing.T) {
		router := newRouter(NewPolicyHandler(&fakePolicyService{}, &fakeEventRepo{}, zap.NewNop()))
		body, _ := json.Marshal(CreatePolicyRequest{Target: "", Coverage: 0})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("POST", "/policies", bytes.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("allowance failure maps to 402", func(t *testing.T) {
		svc := &fakePolicyService{err: services.ErrInsufficientAllowance}
		router := newRouter(NewPolicyHandler(svc, &fakeEventRepo{}, zap.NewNop()))
		body, _ := json.Marshal(CreatePolicyRequest{Target: testTarget.String(), Coverage: 1_000_000})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("POST", "/policies", bytes.NewReader(body)))
		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	})

	t.Run("paused maps to 503", func(t *testing.T) {
		svc := &fakePolicyService{err: services.ErrEnginePaused}
		router := newRouter(NewPolicyHandler(svc, &fakeEventRepo{}, zap.NewNop()))
		body, _ := json.Marshal(CreatePolicyRequest{Target: testTarget.String(), Coverage: 1_000_000})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("POST", "/policies", bytes.NewReader(body)))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestHandleVerify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"success", nil, http.StatusOK},
		{"not found", services.ErrPolicyNotFound, http.StatusNotFound},
		{"already resolved", services.ErrPolicyAlreadyResolved, http.StatusConflict},
		{"deadline not passed", services.ErrDeadlineNotPassed, http.StatusPreconditionFailed},
		{"ledger down", services.ErrLedgerUnavailable, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakePolicyService{policy: testPolicy(), err: tt.err}
			router := newRouter(NewPolicyHandler(svc, &fakeEventRepo{}, zap.NewNop()))

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest("POST", "/policies/"+testID.String()+"/verify", nil))
			assert.Equal(t, tt.code, rec.Code)
		})
	}

	t.Run("invalid id", func(t *testing.T) {
		router := newRouter(NewPolicyHandler(&fakePolicyService{}, &fakeEventRepo{}, zap.NewNop()))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("POST", "/policies/nope/verify", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleRegisterClaim(t *testing.T) {
	t.Run("success returns no content", func(t *testing.T) {
		router := newRouter(NewPolicyHandler(&fakePolicyService{}, &fakeEventRepo{}, zap.NewNop()))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("POST", "/policies/"+testID.String()+"/claims", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("resolved policy conflicts", func(t *testing.T) {
		svc := &fakePolicyService{claimErr: services.ErrPolicyAlreadyResolved}
		router := newRouter(NewPolicyHandler(svc, &fakeEventRepo{}, zap.NewNop()))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("POST", "/policies/"+testID.String()+"/claims", nil))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestHandleList(t *testing.T) {
	t.Run("empty result is an empty array", func(t *testing.T) {
		router := newRouter(NewPolicyHandler(&fakePolicyService{}, &fakeEventRepo{}, zap.NewNop()))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/policies", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"data":[]`)
	})

	t.Run("returns policies", func(t *testing.T) {
		svc := &fakePolicyService{policies: []*models.Policy{testPolicy()}}
		router := newRouter(NewPolicyHandler(svc, &fakeEventRepo{}, zap.NewNop()))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/policies?limit=10&offset=0", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), testCaller.String())
	})
}

func TestHandleListEvents(t *testing.T) {
	t.Run("ownership enforced through policy lookup", func(t *testing.T) {
		svc := &fakePolicyService{err: services.ErrPolicyNotFound}
		router := newRouter(NewPolicyHandler(svc, &fakeEventRepo{}, zap.NewNop()))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/policies/"+testID.String()+"/events", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("returns events", func(t *testing.T) {
		event := models.NewEvent(models.EventKindPolicyCreated, testID, models.PolicyCreatedPayload{ID: testID})
		svc := &fakePolicyService{policy: testPolicy()}
		router := newRouter(NewPolicyHandler(svc, &fakeEventRepo{events: []*models.Event{event}}, zap.NewNop()))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/policies/"+testID.String()+"/events", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "policy_created")
	})
}

func TestParsePagination(t *testing.T) {
	r := httptest.NewRequest("GET", "/?limit=10&offset=20", nil)
	limit, offset := parsePagination(r)
	assert.Equal(t, 10, limit)
	assert.Equal(t, 20, offset)

	r = httptest.NewRequest("GET", "/?limit=9999&offset=-1", nil)
	limit, offset = parsePagination(r)
	assert.Equal(t, 50, limit)
	assert.Equal(t, 0, offset)
}
