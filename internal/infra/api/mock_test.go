//go:build !integration

package api_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"coaching-subscription/internal/domain/lifecycle"
	"coaching-subscription/internal/domain/model"
	"coaching-subscription/internal/infra/api"
	"coaching-subscription/internal/usecase"
)

type mockSubscriptionUC struct {
	RegisterTenantFunc     func(ctx context.Context, in usecase.RegisterTenantInput) (*model.Tenant, error)
	SubmitPaymentProofFunc func(ctx context.Context, tenantID, submitterID string, in usecase.SubmitProofInput) (*model.PaymentProof, error)
	VerifyPaymentFunc      func(ctx context.Context, paymentID, verifierID, action, note string) (*usecase.VerifyResult, error)
	UpdateLicenseFunc      func(ctx context.Context, tenantID string, u usecase.LicenseUpdate) (*model.Tenant, error)
	CheckAccessFunc        func(ctx context.Context, p model.Principal) (lifecycle.EffectiveStatus, error)
}

func (m *mockSubscriptionUC) RegisterTenant(ctx context.Context, in usecase.RegisterTenantInput) (*model.Tenant, error) {
	return m.RegisterTenantFunc(ctx, in)
}

func (m *mockSubscriptionUC) SubmitPaymentProof(ctx context.Context, tenantID, submitterID string, in usecase.SubmitProofInput) (*model.PaymentProof, error) {
	return m.SubmitPaymentProofFunc(ctx, tenantID, submitterID, in)
}

func (m *mockSubscriptionUC) VerifyPayment(ctx context.Context, paymentID, verifierID, action, note string) (*usecase.VerifyResult, error) {
	return m.VerifyPaymentFunc(ctx, paymentID, verifierID, action, note)
}

func (m *mockSubscriptionUC) UpdateLicense(ctx context.Context, tenantID string, u usecase.LicenseUpdate) (*model.Tenant, error) {
	return m.UpdateLicenseFunc(ctx, tenantID, u)
}

func (m *mockSubscriptionUC) CheckAccess(ctx context.Context, p model.Principal) (lifecycle.EffectiveStatus, error) {
	if m.CheckAccessFunc == nil {
		return lifecycle.StatusActive, nil
	}
	return m.CheckAccessFunc(ctx, p)
}

type mockMonitorUC struct {
	GetMonitorAllFunc func(ctx context.Context) ([]*usecase.StatusSnapshot, error)
	GetMyStatusFunc   func(ctx context.Context, tenantID string) (*usecase.StatusSnapshot, error)
	ListPaymentsFunc  func(ctx context.Context, q usecase.PaymentQuery) (*usecase.PaymentPage, error)
}

func (m *mockMonitorUC) GetMonitorAll(ctx context.Context) ([]*usecase.StatusSnapshot, error) {
	return m.GetMonitorAllFunc(ctx)
}

func (m *mockMonitorUC) GetMyStatus(ctx context.Context, tenantID string) (*usecase.StatusSnapshot, error) {
	return m.GetMyStatusFunc(ctx, tenantID)
}

func (m *mockMonitorUC) ListPayments(ctx context.Context, q usecase.PaymentQuery) (*usecase.PaymentPage, error) {
	return m.ListPaymentsFunc(ctx, q)
}

const testSecret = "test-secret"

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

type harness struct {
	subs    *mockSubscriptionUC
	monitor *mockMonitorUC
	auth    *api.Authenticator
	handler http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		subs:    &mockSubscriptionUC{},
		monitor: &mockMonitorUC{},
		auth:    api.NewAuthenticator(testSecret),
	}
	srv := api.NewServer(h.subs, h.monitor, newTestLogger())
	h.handler = api.NewRouter(srv, api.RouterConfig{Auth: h.auth, RequestTimeout: 5 * time.Second})
	return h
}

func (h *harness) token(t *testing.T, p model.Principal) string {
	t.Helper()
	tok, err := h.auth.Mint(p, time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return tok
}

// do sends body (may be "") with the principal's bearer token; a zero
// principal sends no token.
func (h *harness) do(t *testing.T, method, path, body string, p model.Principal) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.UserID != "" {
		req.Header.Set("Authorization", "Bearer "+h.token(t, p))
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

var (
	superAdmin  = model.Principal{UserID: "sa-1", Role: model.RoleSuperAdmin}
	centerAdmin = model.Principal{UserID: "u-1", Role: model.RoleAdmin, TenantID: "t-1"}
	unscoped    = model.Principal{UserID: "u-2", Role: model.RoleAdmin}
)
