package api

import (
	"time"

	"github.com/shopspring/decimal"

	"coaching-subscription/internal/domain/model"
)

type subscriptionView struct {
	Plan          model.Plan               `json:"plan"`
	Status        model.SubscriptionStatus `json:"status"`
	TrialStart    *time.Time               `json:"trialStart"`
	TrialEnd      *time.Time               `json:"trialEnd"`
	StartAt       *time.Time               `json:"startAt"`
	EndAt         *time.Time               `json:"endAt"`
	LastPaymentID *string                  `json:"lastPaymentId"`
}

// tenantView carries the legacy mirrored fields at the top level, where
// older readers expect them.
type tenantView struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Slug         string           `json:"slug"`
	AdminID      *string          `json:"adminId"`
	Subscription subscriptionView `json:"subscription"`
	model.LegacyFields
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toTenantView(t *model.Tenant) *tenantView {
	if t == nil {
		return nil
	}
	s := t.Subscription
	return &tenantView{
		ID:      t.ID,
		Name:    t.Name,
		Slug:    t.Slug,
		AdminID: t.AdminID,
		Subscription: subscriptionView{
			Plan:          s.Plan,
			Status:        s.Status.Normalize(),
			TrialStart:    s.TrialStart,
			TrialEnd:      s.TrialEnd,
			StartAt:       s.StartAt,
			EndAt:         s.EndAt,
			LastPaymentID: s.LastPaymentID,
		},
		LegacyFields: t.Legacy(),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

type proofView struct {
	ID           string              `json:"id"`
	TenantID     string              `json:"coachingId"`
	Provider     model.Provider      `json:"provider"`
	Amount       decimal.Decimal     `json:"amount"`
	SenderNumber string              `json:"senderNumber"`
	TrxID        string              `json:"trxId"`
	Status       model.PaymentStatus `json:"status"`
	SubmittedBy  *string             `json:"submittedBy"`
	VerifiedBy   *string             `json:"verifiedBy"`
	VerifiedAt   *time.Time          `json:"verifiedAt"`
	Note         string              `json:"note"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

func toProofView(p *model.PaymentProof) *proofView {
	if p == nil {
		return nil
	}
	return &proofView{
		ID:           p.ID,
		TenantID:     p.TenantID,
		Provider:     p.Provider,
		Amount:       p.Amount,
		SenderNumber: p.SenderNumber,
		TrxID:        p.TrxID,
		Status:       p.Status,
		SubmittedBy:  p.SubmittedBy,
		VerifiedBy:   p.VerifiedBy,
		VerifiedAt:   p.VerifiedAt,
		Note:         p.Note,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}
