package model

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"coaching-subscription/internal/domain"
)

// DefaultAmount is the yearly price in BDT used when a proof carries no amount.
var DefaultAmount = decimal.NewFromInt(1200)

type Provider string

const (
	ProviderBkash Provider = "bkash"
	ProviderNagad Provider = "nagad"
)

var Providers = []Provider{ProviderBkash, ProviderNagad}

// ParseProvider accepts provider names case-insensitively.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return "", domain.ErrMissingField.WithMsg("provider is required")
	}
	if !lo.Contains(Providers, p) {
		return "", domain.ErrInvalidProvider
	}
	return p, nil
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"  // submitted, awaiting super-admin
	PaymentStatusVerified PaymentStatus = "verified" // terminal
	PaymentStatusRejected PaymentStatus = "rejected" // terminal
)

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusVerified || s == PaymentStatusRejected
}

// PaymentProof is a tenant-submitted claim that a manual mobile-money
// transfer happened. It is resolved exactly once by a super-admin.
type PaymentProof struct {
	ID           string // ULID, sorts by creation time
	TenantID     string
	Provider     Provider
	Amount       decimal.Decimal
	SenderNumber string
	TrxID        string
	Status       PaymentStatus
	SubmittedBy  *string
	VerifiedBy   *string
	VerifiedAt   *time.Time
	Note         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewPaymentProof builds a pending proof from already-validated input.
func NewPaymentProof(tenantID, submitterID string, provider Provider, amount decimal.Decimal, sender, trxID string, now time.Time) *PaymentProof {
	var by *string
	if submitterID != "" {
		by = &submitterID
	}
	return &PaymentProof{
		ID:           ulid.Make().String(),
		TenantID:     tenantID,
		Provider:     provider,
		Amount:       amount,
		SenderNumber: sender,
		TrxID:        trxID,
		Status:       PaymentStatusPending,
		SubmittedBy:  by,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// SanitizeSenderNumber strips quotes and whitespace and keeps only digits
// plus a single leading "+".
func SanitizeSenderNumber(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "+" {
		return ""
	}
	return out
}

// NormalizeTrxID trims and uppercases a provider transaction id.
func NormalizeTrxID(s string) string {
	return strings.ToUpper(strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `"'`)))
}

// ParseAmount applies the default and rejects non-finite or sub-1 values.
func ParseAmount(amount *decimal.Decimal) (decimal.Decimal, error) {
	if amount == nil {
		return DefaultAmount, nil
	}
	if amount.LessThan(decimal.NewFromInt(1)) {
		return decimal.Zero, domain.ErrInvalidAmount
	}
	return *amount, nil
}
