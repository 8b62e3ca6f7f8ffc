package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"coaching-subscription/internal/domain"
	"coaching-subscription/internal/domain/model"
	"coaching-subscription/internal/domain/ports/repository"
)

var _ repository.TenantRepository = (*tenantRepo)(nil)

type tenantRepo struct {
	pool *pgxpool.Pool
}

func NewTenantRepo(pool *pgxpool.Pool) *tenantRepo {
	return &tenantRepo{pool: pool}
}

const tenantColumns = `id, name, slug, admin_id, created_at, updated_at,
  sub_plan, sub_status, sub_trial_start, sub_trial_end, sub_start_at, sub_end_at, sub_last_payment_id,
  legacy_trial_start_date, legacy_trial_expiry_date`

// Create inserts t. Legacy columns are written from t.Legacy() so the two
// shapes are always in step.
func (r *tenantRepo) Create(ctx context.Context, tx repository.Tx, t *model.Tenant) error {
	if err := t.Validate(); err != nil {
		return err
	}
	const q = `
INSERT INTO tenants (
  id, name, slug, admin_id, created_at, updated_at,
  sub_plan, sub_status, sub_trial_start, sub_trial_end, sub_start_at, sub_end_at, sub_last_payment_id,
  legacy_subscription_status, legacy_trial_start_date, legacy_trial_expiry_date, legacy_payment_processed
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17);`

	sub := t.Subscription
	lf := t.Legacy()
	_, err := execSQL(ctx, r.pool, tx, q,
		t.ID, t.Name, t.Slug, t.AdminID, t.CreatedAt, t.UpdatedAt,
		string(sub.Plan), string(sub.Status), sub.TrialStart, sub.TrialEnd, sub.StartAt, sub.EndAt, sub.LastPaymentID,
		lf.SubscriptionStatus, lf.TrialStartDate, lf.TrialExpiryDate, lf.PaymentProcessed,
	)
	if err != nil {
		if code, _ := pgErrorCode(err); code == codeUniqueViolation {
			return domain.ErrSlugTaken
		}
		return mapDBError(err)
	}
	return nil
}

// Save rewrites the subscription sub-record and its legacy mirror.
func (r *tenantRepo) Save(ctx context.Context, tx repository.Tx, t *model.Tenant) error {
	if err := t.Validate(); err != nil {
		return err
	}
	const q = `
UPDATE tenants SET
  updated_at=$2, sub_plan=$3, sub_status=$4, sub_trial_start=$5, sub_trial_end=$6,
  sub_start_at=$7, sub_end_at=$8, sub_last_payment_id=$9,
  legacy_subscription_status=$10, legacy_trial_start_date=$11, legacy_trial_expiry_date=$12, legacy_payment_processed=$13
WHERE id=$1;`

	sub := t.Subscription
	lf := t.Legacy()
	tag, err := execSQL(ctx, r.pool, tx, q,
		t.ID, t.UpdatedAt, string(sub.Plan), string(sub.Status), sub.TrialStart, sub.TrialEnd,
		sub.StartAt, sub.EndAt, sub.LastPaymentID,
		lf.SubscriptionStatus, lf.TrialStartDate, lf.TrialExpiryDate, lf.PaymentProcessed,
	)
	if err != nil {
		if code, _ := pgErrorCode(err); code == codeCheckViolation {
			return domain.ErrActiveWithoutWindow
		}
		return mapDBError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTenantNotFound
	}
	return nil
}

func (r *tenantRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Tenant, error) {
	q := `SELECT ` + tenantColumns + ` FROM tenants WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanTenant(row)
}

func (r *tenantRepo) LockByID(ctx context.Context, tx repository.Tx, id string) (*model.Tenant, error) {
	ptx, err := requireTx(tx)
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + tenantColumns + ` FROM tenants WHERE id=$1 FOR UPDATE;`
	return scanTenant(ptx.QueryRow(ctx, q, id))
}

func (r *tenantRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Tenant, error) {
	q := `SELECT ` + tenantColumns + ` FROM tenants ORDER BY created_at DESC, id;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close()

	var out []*model.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanTenant(row pgx.Row) (*model.Tenant, error) {
	t := &model.Tenant{}
	var plan, status string
	if err := row.Scan(
		&t.ID, &t.Name, &t.Slug, &t.AdminID, &t.CreatedAt, &t.UpdatedAt,
		&plan, &status, &t.Subscription.TrialStart, &t.Subscription.TrialEnd,
		&t.Subscription.StartAt, &t.Subscription.EndAt, &t.Subscription.LastPaymentID,
		&t.LegacyTrialStartDate, &t.LegacyTrialExpiryDate,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	t.Subscription.Plan = model.Plan(plan)
	t.Subscription.Status = model.SubscriptionStatus(status)
	return t, nil
}
