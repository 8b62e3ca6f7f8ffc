// File: internal/usecase/monitor_uc.go
package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"coaching-subscription/internal/domain"
	"coaching-subscription/internal/domain/lifecycle"
	"coaching-subscription/internal/domain/model"
	"coaching-subscription/internal/domain/ports/repository"
	"coaching-subscription/internal/infra/logging"
)

var _ MonitorUseCase = (*monitorUC)(nil)

// MonitorUseCase is the read-only façade over tenants and proofs. Every call
// reads inside one snapshot transaction, so a half-applied verify is never seen.
type MonitorUseCase interface {
	GetMonitorAll(ctx context.Context) ([]*StatusSnapshot, error)
	GetMyStatus(ctx context.Context, tenantID string) (*StatusSnapshot, error)
	ListPayments(ctx context.Context, q PaymentQuery) (*PaymentPage, error)
}

// LatestPaymentView is the redacted proof shown next to a tenant.
type LatestPaymentView struct {
	ID           string              `json:"id"`
	Provider     model.Provider      `json:"provider"`
	Amount       decimal.Decimal     `json:"amount"`
	SenderNumber string              `json:"senderNumber"`
	TrxID        string              `json:"trxId"`
	Status       model.PaymentStatus `json:"status"`
	CreatedAt    time.Time           `json:"createdAt"`
	VerifiedAt   *time.Time          `json:"verifiedAt"`
	Note         string              `json:"note,omitempty"`
}

// StatusSnapshot is the display-ready lifecycle view of one tenant.
type StatusSnapshot struct {
	TenantID           string                    `json:"tenantId"`
	Name               string                    `json:"name"`
	Slug               string                    `json:"slug"`
	Plan               model.Plan                `json:"plan"`
	Status             lifecycle.EffectiveStatus `json:"status"`
	StoredStatus       model.SubscriptionStatus  `json:"storedStatus"`
	TrialStart         time.Time                 `json:"trialStart"`
	TrialEnd           time.Time                 `json:"trialEnd"`
	TrialDaysRemaining int                       `json:"trialDaysRemaining"`
	IsTrialActive      bool                      `json:"isTrialActive"`
	StartAt            *time.Time                `json:"startAt"`
	EndAt              *time.Time                `json:"endAt"`
	DaysRemaining      int                       `json:"daysRemaining"`
	ExpiringSoon       bool                      `json:"expiringSoon"`
	Legacy             model.LegacyFields        `json:"legacy"`
	LatestPayment      *LatestPaymentView        `json:"latestPayment"`
}

// MonitorSummary counts snapshots by effective status.
type MonitorSummary struct {
	Total        int                               `json:"total"`
	ByStatus     map[lifecycle.EffectiveStatus]int `json:"byStatus"`
	ExpiringSoon int                               `json:"expiringSoon"`
}

func Summarize(snaps []*StatusSnapshot) MonitorSummary {
	return MonitorSummary{
		Total: len(snaps),
		ByStatus: lo.CountValuesBy(snaps, func(s *StatusSnapshot) lifecycle.EffectiveStatus {
			return s.Status
		}),
		ExpiringSoon: lo.CountBy(snaps, func(s *StatusSnapshot) bool { return s.ExpiringSoon }),
	}
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// PaymentQuery is the raw listing input; Status is pending|verified|rejected|all.
type PaymentQuery struct {
	Status string
	Q      string
	Page   int
	Limit  int
}

type PaymentListView struct {
	ID           string               `json:"id"`
	Tenant       repository.TenantRef `json:"tenant"`
	Provider     model.Provider       `json:"provider"`
	Amount       decimal.Decimal      `json:"amount"`
	SenderNumber string               `json:"senderNumber"`
	TrxID        string               `json:"trxId"`
	Status       model.PaymentStatus  `json:"status"`
	Note         string               `json:"note"`
	CreatedAt    time.Time            `json:"createdAt"`
	VerifiedAt   *time.Time           `json:"verifiedAt"`
	SubmittedBy  *model.UserSummary   `json:"submittedBy"`
	VerifiedBy   *model.UserSummary   `json:"verifiedBy"`
}

type PaymentPage struct {
	Items []*PaymentListView `json:"items"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
	Total int                `json:"total"`
	Pages int                `json:"pages"`
}

type monitorUC struct {
	tenants repository.TenantRepository
	proofs  repository.PaymentProofRepository
	tm      repository.TransactionManager
	policy  lifecycle.Policy
	now     Clock
	log     *zerolog.Logger
}

func NewMonitorUseCase(
	tenants repository.TenantRepository,
	proofs repository.PaymentProofRepository,
	tm repository.TransactionManager,
	policy lifecycle.Policy,
	clock Clock,
	logger *zerolog.Logger,
) *monitorUC {
	l := logger.With().Str("component", "monitor_uc").Logger()
	return &monitorUC{
		tenants: tenants,
		proofs:  proofs,
		tm:      tm,
		policy:  policy,
		now:     clockOrDefault(clock),
		log:     &l,
	}
}

func (m *monitorUC) GetMonitorAll(ctx context.Context) ([]*StatusSnapshot, error) {
	defer logging.TraceDuration(m.log, "MonitorUC.GetMonitorAll")()

	var (
		tenants []*model.Tenant
		latest  map[string]*model.PaymentProof
	)
	err := m.tm.WithTx(ctx, repository.ReadSnapshotTx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		if tenants, err = m.tenants.ListAll(ctx, tx); err != nil {
			return err
		}
		latest, err = m.proofs.LatestByTenant(ctx, tx, nil)
		return err
	})
	if err != nil {
		logging.With(ctx, m.log).Error().Err(err).Msg("monitor snapshot failed")
		return nil, err
	}

	now := m.now()
	return lo.Map(tenants, func(t *model.Tenant, _ int) *StatusSnapshot {
		return BuildSnapshot(t, latest[t.ID], now, m.policy)
	}), nil
}

func (m *monitorUC) GetMyStatus(ctx context.Context, tenantID string) (*StatusSnapshot, error) {
	defer logging.TraceDuration(m.log, "MonitorUC.GetMyStatus")()

	if strings.TrimSpace(tenantID) == "" {
		return nil, domain.ErrScopeRequired
	}
	var (
		t      *model.Tenant
		latest *model.PaymentProof
	)
	err := m.tm.WithTx(ctx, repository.ReadSnapshotTx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		t, latest, err = loadTenantWithLatest(ctx, m.tenants, m.proofs, tx, tenantID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return BuildSnapshot(t, latest, m.now(), m.policy), nil
}

func (m *monitorUC) ListPayments(ctx context.Context, q PaymentQuery) (*PaymentPage, error) {
	defer logging.TraceDuration(m.log, "MonitorUC.ListPayments")()

	status, err := parseStatusFilter(q.Status)
	if err != nil {
		return nil, err
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	switch {
	case limit < 1:
		limit = DefaultPageLimit
	case limit > MaxPageLimit:
		limit = MaxPageLimit
	}

	var (
		items []*repository.PaymentListItem
		total int
	)
	f := repository.PaymentFilter{
		Status: status,
		Query:  strings.TrimSpace(q.Q),
		Offset: (page - 1) * limit,
		Limit:  limit,
	}
	err = m.tm.WithTx(ctx, repository.ReadSnapshotTx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		items, total, err = m.proofs.List(ctx, tx, f)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &PaymentPage{
		Items: lo.Map(items, func(it *repository.PaymentListItem, _ int) *PaymentListView { return toPaymentListView(it) }),
		Page:  page,
		Limit: limit,
		Total: total,
		Pages: (total + limit - 1) / limit,
	}, nil
}

func parseStatusFilter(s string) (model.PaymentStatus, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "":
		return model.PaymentStatusPending, nil
	case "all":
		return "", nil
	case string(model.PaymentStatusPending), string(model.PaymentStatusVerified), string(model.PaymentStatusRejected):
		return model.PaymentStatus(v), nil
	}
	return "", domain.ErrInvalidArgument.WithMsg("status must be pending, verified, rejected or all")
}

// BuildSnapshot resolves t against its latest proof at now.
func BuildSnapshot(t *model.Tenant, latest *model.PaymentProof, now time.Time, p lifecycle.Policy) *StatusSnapshot {
	res := lifecycle.Resolve(t, latest, now, p)
	s := &StatusSnapshot{
		TenantID:           t.ID,
		Name:               t.Name,
		Slug:               t.Slug,
		Plan:               t.Subscription.Plan,
		Status:             res.Status,
		StoredStatus:       t.Subscription.Status.Normalize(),
		TrialStart:         res.Trial.TrialStart,
		TrialEnd:           res.Trial.TrialEnd,
		TrialDaysRemaining: res.Trial.DaysRemaining,
		IsTrialActive:      res.Trial.IsTrialActive,
		StartAt:            res.StartAt,
		EndAt:              res.EndAt,
		DaysRemaining:      res.DaysRemaining,
		ExpiringSoon:       res.ExpiringSoon,
		Legacy:             t.Legacy(),
	}
	if s.Plan == "" {
		s.Plan = model.PlanYearly
	}
	if latest != nil {
		s.LatestPayment = &LatestPaymentView{
			ID:           latest.ID,
			Provider:     latest.Provider,
			Amount:       latest.Amount,
			SenderNumber: latest.SenderNumber,
			TrxID:        latest.TrxID,
			Status:       latest.Status,
			CreatedAt:    latest.CreatedAt,
			VerifiedAt:   latest.VerifiedAt,
			Note:         latest.Note,
		}
	}
	return s
}

func toPaymentListView(it *repository.PaymentListItem) *PaymentListView {
	p := it.Proof
	return &PaymentListView{
		ID:           p.ID,
		Tenant:       it.Tenant,
		Provider:     p.Provider,
		Amount:       p.Amount,
		SenderNumber: p.SenderNumber,
		TrxID:        p.TrxID,
		Status:       p.Status,
		Note:         p.Note,
		CreatedAt:    p.CreatedAt,
		VerifiedAt:   p.VerifiedAt,
		SubmittedBy:  it.Submitter,
		VerifiedBy:   it.Verifier,
	}
}
