package lifecycle

import (
	"time"

	"coaching-subscription/internal/domain/model"
)

type EffectiveStatus string

const (
	StatusActive       EffectiveStatus = "active"
	StatusPending      EffectiveStatus = "pending"
	StatusExpired      EffectiveStatus = "expired"
	StatusDeclined     EffectiveStatus = "declined"
	StatusSuspended    EffectiveStatus = "suspended"
	StatusTrial        EffectiveStatus = "trial"
	StatusTrialExpired EffectiveStatus = "trial_expired"
)

// AllowsAccess reports whether tenant-scoped features stay usable.
func (s EffectiveStatus) AllowsAccess() bool {
	return s == StatusActive || s == StatusTrial || s == StatusPending
}

const DefaultExpiringSoonDays = 15

// Policy carries the tunable magnitudes of the lifecycle.
type Policy struct {
	TrialDays        int
	TermDays         int
	ExpiringSoonDays int
}

// DefaultPolicy is 14-day trial, 365-day term, 15-day renewal warning.
var DefaultPolicy = Policy{
	TrialDays:        model.DefaultTrialDays,
	TermDays:         model.DefaultTermDays,
	ExpiringSoonDays: DefaultExpiringSoonDays,
}

func (p Policy) withDefaults() Policy {
	if p.TrialDays <= 0 {
		p.TrialDays = model.DefaultTrialDays
	}
	if p.TermDays <= 0 {
		p.TermDays = model.DefaultTermDays
	}
	if p.ExpiringSoonDays <= 0 {
		p.ExpiringSoonDays = DefaultExpiringSoonDays
	}
	return p
}

// Term returns the length of a paid window.
func (p Policy) Term() time.Duration {
	return time.Duration(p.withDefaults().TermDays) * model.Day
}

// Resolution is the single authoritative lifecycle view of a tenant.
type Resolution struct {
	Status        EffectiveStatus
	DaysRemaining int
	ExpiringSoon  bool
	StartAt       *time.Time
	EndAt         *time.Time
	Trial         TrialWindow
}

// Resolve computes the effective status. The first matching rule wins:
//
//  1. paid window running           -> active
//  2. stored payment_pending        -> pending
//  3. stored active, window elapsed -> expired
//  4. stored expired                -> expired
//  5. stored suspended              -> suspended
//  6. latest proof rejected         -> declined
//  7. trial calculator              -> trial | trial_expired
func Resolve(t *model.Tenant, latest *model.PaymentProof, now time.Time, p Policy) Resolution {
	p = p.withDefaults()
	sub := t.Subscription
	res := Resolution{
		StartAt: sub.StartAt,
		EndAt:   sub.EndAt,
		Trial:   TenantTrial(t, p.TrialDays, now),
	}
	stored := sub.Status.Normalize()

	switch {
	case sub.HasActiveWindow(now):
		res.Status = StatusActive
		res.DaysRemaining = DaysUntil(*sub.EndAt, now)
		res.ExpiringSoon = res.DaysRemaining <= p.ExpiringSoonDays
	case stored == model.SubscriptionStatusPaymentPending:
		res.Status = StatusPending
	case stored == model.SubscriptionStatusActive:
		res.Status = StatusExpired
	case stored == model.SubscriptionStatusExpired:
		res.Status = StatusExpired
	case stored == model.SubscriptionStatusSuspended:
		res.Status = StatusSuspended
	case latest != nil && latest.Status == model.PaymentStatusRejected:
		res.Status = StatusDeclined
	case res.Trial.IsTrialActive:
		res.Status = StatusTrial
		res.DaysRemaining = res.Trial.DaysRemaining
	default:
		res.Status = StatusTrialExpired
	}
	return res
}

// DeriveStoredStatus re-derives the stored status from the recorded facts.
// Used when a proof is rejected or a suspension is lifted; an active paid
// window is never downgraded.
func DeriveStoredStatus(t *model.Tenant, now time.Time, p Policy) model.SubscriptionStatus {
	if t.Subscription.HasActiveWindow(now) {
		return model.SubscriptionStatusActive
	}
	if TenantTrial(t, p.withDefaults().TrialDays, now).IsTrialActive {
		return model.SubscriptionStatusTrialActive
	}
	return model.SubscriptionStatusTrialExpired
}
