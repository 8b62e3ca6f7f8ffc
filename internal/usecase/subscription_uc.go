// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"coaching-subscription/internal/domain"
	"coaching-subscription/internal/domain/lifecycle"
	"coaching-subscription/internal/domain/model"
	"coaching-subscription/internal/domain/ports/repository"
	"coaching-subscription/internal/infra/logging"
	"coaching-subscription/internal/infra/metrics"
	red "coaching-subscription/internal/infra/redis"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

// SubscriptionUseCase is the lifecycle engine. It is the only writer of the
// tenant subscription sub-record and of payment proof resolutions.
type SubscriptionUseCase interface {
	RegisterTenant(ctx context.Context, in RegisterTenantInput) (*model.Tenant, error)
	SubmitPaymentProof(ctx context.Context, tenantID, submitterID string, in SubmitProofInput) (*model.PaymentProof, error)
	VerifyPayment(ctx context.Context, paymentID, verifierID, action, note string) (*VerifyResult, error)
	UpdateLicense(ctx context.Context, tenantID string, u LicenseUpdate) (*model.Tenant, error)
	// CheckAccess returns SUBSCRIPTION_REQUIRED when the caller's tenant may
	// not use tenant-scoped features.
	CheckAccess(ctx context.Context, p model.Principal) (lifecycle.EffectiveStatus, error)
}

// RateLimiter is satisfied by redis.RateLimiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Clock returns the current time. Nil means time.Now.
type Clock func() time.Time

type SubscriptionSettings struct {
	Policy        lifecycle.Policy
	DefaultAmount decimal.Decimal
	SubmitLimit   int // per tenant per SubmitWindow; 0 disables
	SubmitWindow  time.Duration
	Dev           bool
}

type SubmitProofInput struct {
	Provider      string
	SenderNumber  string
	TransactionID string
	Amount        *decimal.Decimal
}

type RegisterTenantInput struct {
	Name       string
	Slug       string
	AdminID    string
	TrialStart *time.Time
}

// LicenseUpdate is a super-admin override. Suspend=false lifts a suspension.
type LicenseUpdate struct {
	ResetTrial bool
	Suspend    *bool
}

type Action string

const (
	ActionVerify Action = "verify"
	ActionReject Action = "reject"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionVerify, ActionReject:
		return a, nil
	}
	return "", domain.ErrInvalidAction
}

type VerifyResult struct {
	Proof  *model.PaymentProof `json:"proof"`
	Tenant *model.Tenant       `json:"tenant"`
}

type subscriptionUC struct {
	tenants repository.TenantRepository
	proofs  repository.PaymentProofRepository
	tm      repository.TransactionManager
	limiter RateLimiter
	set     SubscriptionSettings
	now     Clock
	log     *zerolog.Logger
}

// NewSubscriptionUseCase wires the engine. limiter and clock may be nil.
func NewSubscriptionUseCase(
	tenants repository.TenantRepository,
	proofs repository.PaymentProofRepository,
	tm repository.TransactionManager,
	limiter RateLimiter,
	set SubscriptionSettings,
	clock Clock,
	logger *zerolog.Logger,
) *subscriptionUC {
	if set.DefaultAmount.IsZero() {
		set.DefaultAmount = model.DefaultAmount
	}
	l := logger.With().Str("component", "subscription_uc").Logger()
	return &subscriptionUC{
		tenants: tenants,
		proofs:  proofs,
		tm:      tm,
		limiter: limiter,
		set:     set,
		now:     clockOrDefault(clock),
		log:     &l,
	}
}

func clockOrDefault(c Clock) Clock {
	if c == nil {
		c = time.Now
	}
	return func() time.Time { return c().UTC().Truncate(time.Microsecond) }
}

func (uc *subscriptionUC) RegisterTenant(ctx context.Context, in RegisterTenantInput) (*model.Tenant, error) {
	defer logging.TraceDuration(uc.log, "SubscriptionUC.RegisterTenant")()

	start := uc.now()
	if in.TrialStart != nil {
		start = in.TrialStart.UTC()
	}
	t, err := model.NewTenant(in.Name, in.Slug, start, uc.set.Policy.TrialDays)
	if err != nil {
		return nil, err
	}
	if in.AdminID != "" {
		admin := in.AdminID
		t.AdminID = &admin
	}
	t.CreatedAt, t.UpdatedAt = uc.now(), uc.now()

	if err := uc.tm.WithTx(ctx, repository.WriteTx, func(ctx context.Context, tx repository.Tx) error {
		return uc.tenants.Create(ctx, tx, t)
	}); err != nil {
		return nil, err
	}

	logging.With(ctx, uc.log).Info().
		Str("tenant_id", t.ID).Str("slug", t.Slug).
		Time("trial_end", *t.Subscription.TrialEnd).
		Msg("tenant registered")
	metrics.IncSubscriptionTransition("none", string(t.Subscription.Status))
	return t, nil
}

func (uc *subscriptionUC) SubmitPaymentProof(ctx context.Context, tenantID, submitterID string, in SubmitProofInput) (*model.PaymentProof, error) {
	defer logging.TraceDuration(uc.log, "SubscriptionUC.SubmitPaymentProof")()
	log := logging.With(ctx, uc.log)

	provider, err := model.ParseProvider(in.Provider)
	if err != nil {
		metrics.IncProofSubmitted(in.Provider, "invalid")
		return nil, err
	}
	amount := uc.set.DefaultAmount
	if in.Amount != nil {
		if amount, err = model.ParseAmount(in.Amount); err != nil {
			metrics.IncProofSubmitted(string(provider), "invalid")
			return nil, err
		}
	}
	sender := model.SanitizeSenderNumber(in.SenderNumber)
	if sender == "" {
		metrics.IncProofSubmitted(string(provider), "invalid")
		return nil, domain.ErrMissingField.WithMsg("senderNumber is required")
	}
	trxID := model.NormalizeTrxID(in.TransactionID)
	if trxID == "" {
		metrics.IncProofSubmitted(string(provider), "invalid")
		return nil, domain.ErrMissingField.WithMsg("transactionId is required")
	}
	if tenantID == "" {
		return nil, domain.ErrScopeRequired
	}

	if uc.limiter != nil && uc.set.SubmitLimit > 0 {
		ok, err := uc.limiter.Allow(ctx, red.SubmitProofKey(tenantID), uc.set.SubmitLimit, uc.set.SubmitWindow)
		if err != nil {
			// the limiter is advisory; a Redis outage must not block payments
			log.Warn().Err(err).Msg("submit rate limiter unavailable")
		} else if !ok {
			metrics.IncProofSubmitted(string(provider), "rate_limited")
			metrics.IncRateLimited("submit_proof")
			return nil, domain.ErrRateLimited
		}
	}

	now := uc.now()
	proof := model.NewPaymentProof(tenantID, submitterID, provider, amount, sender, trxID, now)
	var from model.SubscriptionStatus

	err = uc.tm.WithTx(ctx, repository.WriteTx, func(ctx context.Context, tx repository.Tx) error {
		tenant, err := uc.tenants.LockByID(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		exists, err := uc.proofs.ExistsByTrxID(ctx, tx, trxID)
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrDuplicateTransaction
		}
		if err := uc.proofs.Create(ctx, tx, proof); err != nil {
			return err
		}

		from = tenant.Subscription.Status.Normalize()
		tenant.Subscription.Status = model.SubscriptionStatusPaymentPending
		tenant.Subscription.LastPaymentID = &proof.ID
		tenant.UpdatedAt = now
		return uc.tenants.Save(ctx, tx, tenant)
	})
	if err != nil {
		result := "error"
		if errors.Is(err, domain.ErrDuplicateTransaction) {
			result = "duplicate"
		}
		metrics.IncProofSubmitted(string(provider), result)
		log.Warn().Err(err).Str("tenant_id", tenantID).Str("trx_id", trxID).Msg("payment proof rejected at submission")
		return nil, err
	}

	metrics.IncProofSubmitted(string(provider), "ok")
	metrics.IncSubscriptionTransition(string(from), string(model.SubscriptionStatusPaymentPending))
	log.Info().
		Str("tenant_id", tenantID).
		Str("payment_id", proof.ID).
		Str("provider", string(provider)).
		Str("trx_id", trxID).
		Str("sender", logging.Redact(sender, uc.set.Dev)).
		Str("amount", amount.String()).
		Msg("payment proof submitted")
	return proof, nil
}

func (uc *subscriptionUC) VerifyPayment(ctx context.Context, paymentID, verifierID, action, note string) (*VerifyResult, error) {
	defer logging.TraceDuration(uc.log, "SubscriptionUC.VerifyPayment")()
	log := logging.With(ctx, uc.log)

	act, err := ParseAction(action)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(paymentID) == "" {
		return nil, domain.ErrMissingField.WithMsg("payment id is required")
	}
	note = strings.TrimSpace(note)

	started := time.Now()
	now := uc.now()
	var res VerifyResult
	var from, to model.SubscriptionStatus

	err = uc.tm.WithTx(ctx, repository.WriteTx, func(ctx context.Context, tx repository.Tx) error {
		proof, err := uc.proofs.LockByID(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if proof.Status != model.PaymentStatusPending {
			return domain.ErrAlreadyResolved
		}
		tenant, err := uc.tenants.LockByID(ctx, tx, proof.TenantID)
		if err != nil {
			return err
		}

		status := model.PaymentStatusVerified
		if act == ActionReject {
			status = model.PaymentStatusRejected
		}
		ok, err := uc.proofs.Resolve(ctx, tx, proof.ID, status, verifierID, now, note)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrAlreadyResolved
		}
		proof.Status = status
		proof.VerifiedBy = &verifierID
		proof.VerifiedAt = &now
		proof.Note = note
		proof.UpdatedAt = now

		from = tenant.Subscription.Status.Normalize()
		if act == ActionVerify {
			uc.activate(tenant, proof.ID, now)
		} else {
			uc.revertAfterReject(tenant, proof.ID, now)
		}
		to = tenant.Subscription.Status
		tenant.UpdatedAt = now
		if err := uc.tenants.Save(ctx, tx, tenant); err != nil {
			return err
		}

		res = VerifyResult{Proof: proof, Tenant: tenant}
		return nil
	})
	if err != nil {
		metrics.ObserveProofResolved(string(act), resolveResult(err), time.Since(started))
		log.Warn().Err(err).Str("payment_id", paymentID).Str("action", string(act)).Msg("payment resolution failed")
		return nil, err
	}

	metrics.ObserveProofResolved(string(act), "ok", time.Since(started))
	metrics.IncSubscriptionTransition(string(from), string(to))
	ev := log.Info().
		Str("payment_id", res.Proof.ID).
		Str("tenant_id", res.Tenant.ID).
		Str("action", string(act)).
		Str("from", string(from)).
		Str("to", string(to))
	if res.Tenant.Subscription.EndAt != nil {
		ev = ev.Time("end_at", *res.Tenant.Subscription.EndAt)
	}
	ev.Msg("payment resolved")
	return &res, nil
}

// activate opens a fresh paid window starting at now.
func (uc *subscriptionUC) activate(t *model.Tenant, proofID string, now time.Time) {
	start := now
	end := now.Add(uc.set.Policy.Term())
	t.Subscription.Status = model.SubscriptionStatusActive
	t.Subscription.StartAt = &start
	t.Subscription.EndAt = &end
	t.Subscription.LastPaymentID = &proofID
}

// revertAfterReject never shortens a running paid window. A suspended tenant
// stays suspended, and a newer proof that is still pending keeps the tenant
// in payment_pending.
func (uc *subscriptionUC) revertAfterReject(t *model.Tenant, proofID string, now time.Time) {
	sub := &t.Subscription
	stored := sub.Status.Normalize()
	if sub.HasActiveWindow(now) {
		sub.Status = model.SubscriptionStatusActive
		return
	}
	if stored == model.SubscriptionStatusSuspended {
		return
	}
	if stored == model.SubscriptionStatusPaymentPending && sub.LastPaymentID != nil && *sub.LastPaymentID != proofID {
		return
	}
	sub.Status = lifecycle.DeriveStoredStatus(t, now, uc.set.Policy)
}

func resolveResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrAlreadyResolved):
		return "already_resolved"
	case errors.Is(err, domain.ErrPaymentNotFound), errors.Is(err, domain.ErrTenantNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func (uc *subscriptionUC) UpdateLicense(ctx context.Context, tenantID string, u LicenseUpdate) (*model.Tenant, error) {
	defer logging.TraceDuration(uc.log, "SubscriptionUC.UpdateLicense")()

	if !u.ResetTrial && u.Suspend == nil {
		return nil, domain.ErrMissingField.WithMsg("nothing to update")
	}

	now := uc.now()
	var out *model.Tenant
	var from model.SubscriptionStatus
	err := uc.tm.WithTx(ctx, repository.WriteTx, func(ctx context.Context, tx repository.Tx) error {
		t, err := uc.tenants.LockByID(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		sub := &t.Subscription
		from = sub.Status.Normalize()
		sub.Status = from

		if u.ResetTrial {
			start := now
			end := now.Add(time.Duration(uc.trialDays()) * model.Day)
			sub.TrialStart, sub.TrialEnd = &start, &end
			if sub.Status == model.SubscriptionStatusTrialActive || sub.Status == model.SubscriptionStatusTrialExpired {
				sub.Status = lifecycle.DeriveStoredStatus(t, now, uc.set.Policy)
			}
		}
		if u.Suspend != nil {
			switch {
			case *u.Suspend:
				sub.Status = model.SubscriptionStatusSuspended
			case sub.Status == model.SubscriptionStatusSuspended:
				sub.Status = lifecycle.DeriveStoredStatus(t, now, uc.set.Policy)
			}
		}
		t.UpdatedAt = now
		if err := uc.tenants.Save(ctx, tx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	if from != out.Subscription.Status {
		metrics.IncSubscriptionTransition(string(from), string(out.Subscription.Status))
	}
	logging.With(ctx, uc.log).Info().
		Str("tenant_id", tenantID).
		Bool("reset_trial", u.ResetTrial).
		Str("from", string(from)).
		Str("to", string(out.Subscription.Status)).
		Msg("license updated")
	return out, nil
}

func (uc *subscriptionUC) trialDays() int {
	if uc.set.Policy.TrialDays > 0 {
		return uc.set.Policy.TrialDays
	}
	return model.DefaultTrialDays
}

func (uc *subscriptionUC) CheckAccess(ctx context.Context, p model.Principal) (lifecycle.EffectiveStatus, error) {
	if p.IsSuperAdmin() {
		return lifecycle.StatusActive, nil
	}
	if p.TenantID == "" {
		return "", domain.ErrScopeRequired
	}
	t, latest, err := loadTenantWithLatest(ctx, uc.tenants, uc.proofs, repository.NoTX, p.TenantID)
	if err != nil {
		return "", err
	}
	res := lifecycle.Resolve(t, latest, uc.now(), uc.set.Policy)
	if !res.Status.AllowsAccess() {
		metrics.IncAccessDenied(string(res.Status))
		return res.Status, domain.ErrSubscriptionRequired
	}
	return res.Status, nil
}

// loadTenantWithLatest reads one tenant and its newest proof, if any.
func loadTenantWithLatest(ctx context.Context, tenants repository.TenantRepository, proofs repository.PaymentProofRepository, tx repository.Tx, tenantID string) (*model.Tenant, *model.PaymentProof, error) {
	t, err := tenants.FindByID(ctx, tx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	latest, err := proofs.LatestByTenant(ctx, tx, []string{tenantID})
	if err != nil {
		return nil, nil, err
	}
	return t, latest[tenantID], nil
}
