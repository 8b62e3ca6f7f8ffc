package model

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"coaching-subscription/internal/domain"
)

const (
	DefaultTrialDays = 14
	DefaultTermDays  = 365

	Day = 24 * time.Hour
)

type Plan string

const PlanYearly Plan = "yearly"

type SubscriptionStatus string

const (
	SubscriptionStatusTrialActive    SubscriptionStatus = "trial_active"
	SubscriptionStatusPaymentPending SubscriptionStatus = "payment_pending"
	SubscriptionStatusActive         SubscriptionStatus = "active"
	SubscriptionStatusTrialExpired   SubscriptionStatus = "trial_expired"
	SubscriptionStatusExpired        SubscriptionStatus = "expired"
	SubscriptionStatusSuspended      SubscriptionStatus = "suspended"

	// subscriptionStatusLegacyPending is what older records carry instead of payment_pending.
	subscriptionStatusLegacyPending SubscriptionStatus = "pending"
)

// Normalize maps historical spellings onto the current enum.
func (s SubscriptionStatus) Normalize() SubscriptionStatus {
	n := SubscriptionStatus(strings.ToLower(strings.TrimSpace(string(s))))
	switch n {
	case subscriptionStatusLegacyPending:
		return SubscriptionStatusPaymentPending
	case "":
		return SubscriptionStatusTrialActive
	}
	return n
}

// Subscription is the subscription sub-record embedded in a tenant.
// StartAt/EndAt describe the paid window and are nil until a payment is verified.
type Subscription struct {
	Plan          Plan
	Status        SubscriptionStatus
	TrialStart    *time.Time
	TrialEnd      *time.Time
	StartAt       *time.Time
	EndAt         *time.Time
	LastPaymentID *string
}

// HasActiveWindow reports whether a paid window is still running at now.
func (s Subscription) HasActiveWindow(now time.Time) bool {
	return s.EndAt != nil && s.EndAt.After(now)
}

// Tenant is one coaching center.
type Tenant struct {
	ID           string
	Name         string
	Slug         string
	AdminID      *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Subscription Subscription

	// Read-only fallbacks from rows written before the subscription sub-record existed.
	LegacyTrialStartDate  *time.Time
	LegacyTrialExpiryDate *time.Time
}

// NewTenant creates a tenant on a fresh trial that starts at trialStart.
func NewTenant(name, slug string, trialStart time.Time, trialDays int) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrMissingField.WithMsg("name is required")
	}
	if strings.TrimSpace(slug) == "" {
		slug = Slugify(name)
	} else {
		slug = Slugify(slug)
	}
	if slug == "" {
		return nil, domain.ErrInvalidArgument.WithMsg("slug cannot be derived from name")
	}
	if trialDays <= 0 {
		trialDays = DefaultTrialDays
	}
	start := trialStart
	end := start.Add(time.Duration(trialDays) * Day)
	return &Tenant{
		ID:        uuid.NewString(),
		Name:      name,
		Slug:      slug,
		CreatedAt: trialStart,
		UpdatedAt: trialStart,
		Subscription: Subscription{
			Plan:       PlanYearly,
			Status:     SubscriptionStatusTrialActive,
			TrialStart: &start,
			TrialEnd:   &end,
		},
	}, nil
}

var slugSpaces = regexp.MustCompile(`\s+`)

// Slugify lowercases s and joins whitespace-separated words with "-".
func Slugify(s string) string {
	return slugSpaces.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
}

// Validate enforces the invariants a tenant must satisfy before it is persisted.
func (t *Tenant) Validate() error {
	if t == nil || t.ID == "" || t.Name == "" || t.Slug == "" {
		return domain.ErrInvalidArgument
	}
	if t.Subscription.Status.Normalize() == SubscriptionStatusActive &&
		(t.Subscription.StartAt == nil || t.Subscription.EndAt == nil) {
		return domain.ErrActiveWithoutWindow
	}
	return nil
}

// LegacyFields is the read-compatibility projection of the subscription
// sub-record consumed by older readers.
type LegacyFields struct {
	SubscriptionStatus string     `json:"subscriptionStatus"`
	TrialStartDate     *time.Time `json:"trialStartDate"`
	TrialExpiryDate    *time.Time `json:"trialExpiryDate"`
	PaymentProcessed   bool       `json:"paymentProcessed"`
}

// Legacy derives the legacy mirrored fields. It never reads stored legacy
// values except as trial-date fallbacks, so the two shapes cannot drift.
func (t *Tenant) Legacy() LegacyFields {
	sub := t.Subscription
	lf := LegacyFields{
		TrialStartDate:  firstTime(sub.TrialStart, t.LegacyTrialStartDate, &t.CreatedAt),
		TrialExpiryDate: firstTime(sub.TrialEnd, t.LegacyTrialExpiryDate),
	}
	if lf.TrialExpiryDate == nil && lf.TrialStartDate != nil {
		end := lf.TrialStartDate.Add(DefaultTrialDays * Day)
		lf.TrialExpiryDate = &end
	}

	switch sub.Status.Normalize() {
	case SubscriptionStatusActive:
		lf.SubscriptionStatus = "paid"
		lf.PaymentProcessed = true
	case SubscriptionStatusPaymentPending:
		lf.SubscriptionStatus = "trial"
		if sub.EndAt != nil {
			lf.SubscriptionStatus = "paid"
		}
		lf.PaymentProcessed = false
	case SubscriptionStatusTrialExpired, SubscriptionStatusExpired:
		lf.SubscriptionStatus = "expired"
		lf.PaymentProcessed = sub.LastPaymentID == nil
	case SubscriptionStatusSuspended:
		lf.SubscriptionStatus = "suspended"
		lf.PaymentProcessed = sub.LastPaymentID == nil || sub.EndAt != nil
	default:
		lf.SubscriptionStatus = "trial"
		lf.PaymentProcessed = sub.LastPaymentID == nil
	}
	return lf
}

func firstTime(ts ...*time.Time) *time.Time {
	for _, t := range ts {
		if t != nil && !t.IsZero() {
			v := *t
			return &v
		}
	}
	return nil
}
