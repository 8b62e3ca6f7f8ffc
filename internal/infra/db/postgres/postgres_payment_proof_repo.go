package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"coaching-subscription/internal/domain"
	"coaching-subscription/internal/domain/model"
	"coaching-subscription/internal/domain/ports/repository"
)

var _ repository.PaymentProofRepository = (*paymentProofRepo)(nil)

type paymentProofRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentProofRepo(pool *pgxpool.Pool) *paymentProofRepo {
	return &paymentProofRepo{pool: pool}
}

const proofColumns = `id, tenant_id, provider, amount, sender_number, trx_id, status,
  submitted_by, verified_by, verified_at, note, created_at, updated_at`

func (r *paymentProofRepo) Create(ctx context.Context, tx repository.Tx, p *model.PaymentProof) error {
	const q = `
INSERT INTO payment_proofs (` + proofColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13);`
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.TenantID, string(p.Provider), p.Amount, p.SenderNumber, p.TrxID, string(p.Status),
		p.SubmittedBy, p.VerifiedBy, p.VerifiedAt, p.Note, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		switch code, _ := pgErrorCode(err); code {
		case codeUniqueViolation:
			return domain.ErrDuplicateTransaction
		case codeForeignKeyViolation:
			return domain.ErrTenantNotFound
		}
		return mapDBError(err)
	}
	return nil
}

func (r *paymentProofRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentProof, error) {
	const q = `SELECT ` + proofColumns + ` FROM payment_proofs WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanProof(row)
}

func (r *paymentProofRepo) LockByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentProof, error) {
	ptx, err := requireTx(tx)
	if err != nil {
		return nil, err
	}
	const q = `SELECT ` + proofColumns + ` FROM payment_proofs WHERE id=$1 FOR UPDATE;`
	return scanProof(ptx.QueryRow(ctx, q, id))
}

func (r *paymentProofRepo) ExistsByTrxID(ctx context.Context, tx repository.Tx, trxID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM payment_proofs WHERE trx_id=$1);`
	row, err := pickRow(ctx, r.pool, tx, q, trxID)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

// Resolve is a conditional update: only a row still in 'pending' changes, so
// of two racing resolvers exactly one sees a row affected.
func (r *paymentProofRepo) Resolve(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, verifierID string, at time.Time, note string) (bool, error) {
	if !status.IsTerminal() {
		return false, domain.ErrInvalidArgument
	}
	const q = `
UPDATE payment_proofs
   SET status=$2, verified_by=$3, verified_at=$4, note=$5, updated_at=$4
 WHERE id=$1 AND status='pending';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, string(status), verifierID, at, note)
	if err != nil {
		return false, mapDBError(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *paymentProofRepo) LatestByTenant(ctx context.Context, tx repository.Tx, tenantIDs []string) (map[string]*model.PaymentProof, error) {
	const q = `
SELECT DISTINCT ON (tenant_id) ` + proofColumns + `
  FROM payment_proofs
 WHERE $1::text[] IS NULL OR tenant_id = ANY($1)
 ORDER BY tenant_id, created_at DESC, id DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, tenantIDs)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close()

	out := make(map[string]*model.PaymentProof)
	for rows.Next() {
		p, err := scanProof(rows)
		if err != nil {
			return nil, err
		}
		out[p.TenantID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

const proofListFrom = `
  FROM payment_proofs p
  JOIN tenants t ON t.id = p.tenant_id
  LEFT JOIN users su ON su.id = p.submitted_by
  LEFT JOIN users vu ON vu.id = p.verified_by
 WHERE ($1::text = '' OR p.status = $1)
   AND ($2::text = '' OR p.trx_id ILIKE $2 OR p.sender_number ILIKE $2 OR t.name ILIKE $2 OR t.slug ILIKE $2)`

// List returns one page of proofs, newest first, and the total match count.
func (r *paymentProofRepo) List(ctx context.Context, tx repository.Tx, f repository.PaymentFilter) ([]*repository.PaymentListItem, int, error) {
	pattern := ""
	if q := strings.TrimSpace(f.Query); q != "" {
		pattern = "%" + escapeLike(q) + "%"
	}

	countRow, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*)`+proofListFrom+`;`, string(f.Status), pattern)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := countRow.Scan(&total); err != nil {
		return nil, 0, domain.ErrReadDatabaseRow
	}
	if total == 0 {
		return nil, 0, nil
	}

	q := `
SELECT p.id, p.tenant_id, p.provider, p.amount, p.sender_number, p.trx_id, p.status,
       p.submitted_by, p.verified_by, p.verified_at, p.note, p.created_at, p.updated_at,
       t.id, t.name, t.slug,
       su.id, su.name, su.email,
       vu.id, vu.name, vu.email` + proofListFrom + `
 ORDER BY p.created_at DESC, p.id DESC
 LIMIT $3 OFFSET $4;`
	rows, err := queryRows(ctx, r.pool, tx, q, string(f.Status), pattern, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, mapDBError(err)
	}
	defer rows.Close()

	var items []*repository.PaymentListItem
	for rows.Next() {
		var (
			p              model.PaymentProof
			provider, st   string
			item           repository.PaymentListItem
			sID, sName, sE *string
			vID, vName, vE *string
		)
		if err := rows.Scan(
			&p.ID, &p.TenantID, &provider, &p.Amount, &p.SenderNumber, &p.TrxID, &st,
			&p.SubmittedBy, &p.VerifiedBy, &p.VerifiedAt, &p.Note, &p.CreatedAt, &p.UpdatedAt,
			&item.Tenant.ID, &item.Tenant.Name, &item.Tenant.Slug,
			&sID, &sName, &sE,
			&vID, &vName, &vE,
		); err != nil {
			return nil, 0, domain.ErrReadDatabaseRow
		}
		p.Provider = model.Provider(provider)
		p.Status = model.PaymentStatus(st)
		item.Proof = &p
		item.Submitter = userSummary(sID, sName, sE)
		item.Verifier = userSummary(vID, vName, vE)
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, domain.ErrReadDatabaseRow
	}
	return items, total, nil
}

func (r *paymentProofRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.PaymentStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM payment_proofs GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close()

	counts := make(map[model.PaymentStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		counts[model.PaymentStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return counts, nil
}

func scanProof(row pgx.Row) (*model.PaymentProof, error) {
	p := &model.PaymentProof{}
	var provider, status string
	if err := row.Scan(
		&p.ID, &p.TenantID, &provider, &p.Amount, &p.SenderNumber, &p.TrxID, &status,
		&p.SubmittedBy, &p.VerifiedBy, &p.VerifiedAt, &p.Note, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	p.Provider = model.Provider(provider)
	p.Status = model.PaymentStatus(status)
	return p, nil
}

// userSummary is nil when the LEFT JOIN found no user.
func userSummary(id, name, email *string) *model.UserSummary {
	if id == nil {
		return nil
	}
	u := &model.UserSummary{ID: *id}
	if name != nil {
		u.Name = *name
	}
	if email != nil {
		u.Email = *email
	}
	return u
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
