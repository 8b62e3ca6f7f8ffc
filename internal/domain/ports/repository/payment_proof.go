package repository

import (
	"context"
	"time"

	"coaching-subscription/internal/domain/model"
)

// PaymentFilter narrows ListPayments. Empty Status means any status.
type PaymentFilter struct {
	Status model.PaymentStatus
	Query  string
	Offset int
	Limit  int
}

// PaymentListItem is a proof joined with its tenant, submitter and verifier.
type PaymentListItem struct {
	Proof     *model.PaymentProof
	Tenant    TenantRef
	Submitter *model.UserSummary
	Verifier  *model.UserSummary
}

type TenantRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// PaymentProofRepository persists payment proofs. TrxID is unique across all
// tenants; Create reports a violation as domain.ErrDuplicateTransaction.
type PaymentProofRepository interface {
	Create(ctx context.Context, tx Tx, p *model.PaymentProof) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentProof, error)
	// LockByID reads the row with SELECT ... FOR UPDATE; tx must be live.
	LockByID(ctx context.Context, tx Tx, id string) (*model.PaymentProof, error)
	ExistsByTrxID(ctx context.Context, tx Tx, trxID string) (bool, error)
	// Resolve moves a pending proof to a terminal status. It reports false
	// when the proof was no longer pending.
	Resolve(ctx context.Context, tx Tx, id string, status model.PaymentStatus, verifierID string, at time.Time, note string) (bool, error)
	// LatestByTenant returns the newest proof per tenant, keyed by tenant id.
	// A nil tenantIDs slice means every tenant.
	LatestByTenant(ctx context.Context, tx Tx, tenantIDs []string) (map[string]*model.PaymentProof, error)
	List(ctx context.Context, tx Tx, f PaymentFilter) ([]*PaymentListItem, int, error)
	CountByStatus(ctx context.Context, tx Tx) (map[model.PaymentStatus]int, error)
}
