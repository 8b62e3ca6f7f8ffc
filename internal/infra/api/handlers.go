package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"coaching-subscription/internal/domain"
	"coaching-subscription/internal/domain/model"
	"coaching-subscription/internal/usecase"
)

type Server struct {
	subs    usecase.SubscriptionUseCase
	monitor usecase.MonitorUseCase
	log     *zerolog.Logger
}

func NewServer(subs usecase.SubscriptionUseCase, monitor usecase.MonitorUseCase, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "api").Logger()
	return &Server{subs: subs, monitor: monitor, log: &l}
}

// upgradeRequest accepts method/transactionId as aliases of provider/trxId.
type upgradeRequest struct {
	Provider      string          `json:"provider" validate:"max=32"`
	Method        string          `json:"method" validate:"max=32"`
	SenderNumber  string          `json:"senderNumber" validate:"max=32"`
	TrxID         string          `json:"trxId" validate:"max=64"`
	TransactionID string          `json:"transactionId" validate:"max=64"`
	Amount        json.RawMessage `json:"amount"`
}

func (req upgradeRequest) toInput() (usecase.SubmitProofInput, error) {
	in := usecase.SubmitProofInput{
		Provider:      firstNonEmpty(req.Provider, req.Method),
		SenderNumber:  req.SenderNumber,
		TransactionID: firstNonEmpty(req.TrxID, req.TransactionID),
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		// provider errors are reported before amount errors
		if _, perr := model.ParseProvider(in.Provider); perr != nil {
			return in, perr
		}
		return in, err
	}
	in.Amount = amount
	return in, nil
}

// parseAmount accepts a JSON number or numeric string; null or absent means default.
func parseAmount(raw json.RawMessage) (*decimal.Decimal, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil, nil
	}
	s = strings.TrimSpace(strings.Trim(s, `"`))
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, domain.ErrInvalidAmount
	}
	return &d, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func (s *Server) upgradeCenter(w http.ResponseWriter, r *http.Request) {
	p := mustPrincipal(r)
	var req upgradeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	proof, err := s.subs.SubmitPaymentProof(r.Context(), p.TenantID, p.UserID, in)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusCreated, toProofView(proof))
}

// myStatus serves the caller's own tenant. A super-admin may name one with ?coachingId=.
func (s *Server) myStatus(w http.ResponseWriter, r *http.Request) {
	p := mustPrincipal(r)
	tenantID := p.TenantID
	if p.IsSuperAdmin() {
		if q := strings.TrimSpace(r.URL.Query().Get("coachingId")); q != "" {
			tenantID = q
		}
	}
	snap, err := s.monitor.GetMyStatus(r.Context(), tenantID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, snap)
}

type monitorAllResponse struct {
	Items   []*usecase.StatusSnapshot `json:"items"`
	Summary usecase.MonitorSummary    `json:"summary"`
}

func (s *Server) monitorAll(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.monitor.GetMonitorAll(r.Context())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if snaps == nil {
		snaps = []*usecase.StatusSnapshot{}
	}
	writeOK(w, http.StatusOK, monitorAllResponse{Items: snaps, Summary: usecase.Summarize(snaps)})
}

func (s *Server) listPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := queryInt(q.Get("page"), "page")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	limit, err := queryInt(q.Get("limit"), "limit")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out, err := s.monitor.ListPayments(r.Context(), usecase.PaymentQuery{
		Status: q.Get("status"),
		Q:      q.Get("q"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if out.Items == nil {
		out.Items = []*usecase.PaymentListView{}
	}
	writeOK(w, http.StatusOK, out)
}

func queryInt(v, name string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, domain.ErrInvalidArgument.WithMsg("%s must be an integer", name)
	}
	return n, nil
}

type verifyRequest struct {
	Action string `json:"action" validate:"required"`
	Note   string `json:"note" validate:"max=500"`
}

type verifyResponse struct {
	Proof  *proofView  `json:"proof"`
	Tenant *tenantView `json:"tenant"`
}

func (s *Server) verifyPayment(w http.ResponseWriter, r *http.Request) {
	p := mustPrincipal(r)
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	res, err := s.subs.VerifyPayment(r.Context(), chi.URLParam(r, "id"), p.UserID, req.Action, req.Note)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, verifyResponse{Proof: toProofView(res.Proof), Tenant: toTenantView(res.Tenant)})
}

type registerRequest struct {
	Name       string     `json:"name" validate:"required,max=200"`
	Slug       string     `json:"slug" validate:"max=100"`
	AdminID    string     `json:"adminId" validate:"max=64"`
	TrialStart *time.Time `json:"trialStartDate"`
}

func (s *Server) registerCenter(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	t, err := s.subs.RegisterTenant(r.Context(), usecase.RegisterTenantInput{
		Name:       req.Name,
		Slug:       req.Slug,
		AdminID:    req.AdminID,
		TrialStart: req.TrialStart,
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusCreated, toTenantView(t))
}

type licenseRequest struct {
	ResetTrial bool  `json:"resetTrial"`
	Suspend    *bool `json:"suspend"`
}

func (s *Server) updateLicense(w http.ResponseWriter, r *http.Request) {
	var req licenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	t, err := s.subs.UpdateLicense(r.Context(), chi.URLParam(r, "id"), usecase.LicenseUpdate{
		ResetTrial: req.ResetTrial,
		Suspend:    req.Suspend,
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, toTenantView(t))
}

// coachingMe is a tenant-scoped read that sits behind the subscription guard.
func (s *Server) coachingMe(w http.ResponseWriter, r *http.Request) {
	p := mustPrincipal(r)
	if p.TenantID == "" {
		writeError(w, r, s.log, domain.ErrScopeRequired)
		return
	}
	snap, err := s.monitor.GetMyStatus(r.Context(), p.TenantID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, snap)
}
