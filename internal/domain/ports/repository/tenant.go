package repository

import (
	"context"

	"coaching-subscription/internal/domain/model"
)

// TenantRepository persists coaching centers with their embedded
// subscription sub-record. Only the lifecycle use case writes through it.
type TenantRepository interface {
	// Create inserts a new tenant; a taken slug yields domain.ErrSlugTaken.
	Create(ctx context.Context, tx Tx, t *model.Tenant) error
	// Save updates the subscription sub-record (and legacy projection) of t.
	Save(ctx context.Context, tx Tx, t *model.Tenant) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Tenant, error)
	// LockByID reads the row with SELECT ... FOR UPDATE; tx must be live.
	LockByID(ctx context.Context, tx Tx, id string) (*model.Tenant, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.Tenant, error)
}
