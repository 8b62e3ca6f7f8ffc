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

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

func (r *userRepo) Save(ctx context.Context, tx repository.Tx, u *repository.User) error {
	const q = `
INSERT INTO users (id, name, email, role, tenant_id)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET
  name=$2, email=$3, role=$4, tenant_id=$5;`
	_, err := execSQL(ctx, r.pool, tx, q, u.ID, u.Name, u.Email, string(u.Role), u.TenantID)
	if err != nil {
		if code, _ := pgErrorCode(err); code == codeForeignKeyViolation {
			return domain.ErrTenantNotFound
		}
		return mapDBError(err)
	}
	return nil
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*repository.User, error) {
	const q = `SELECT id, name, email, role, tenant_id FROM users WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	u := &repository.User{}
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &u.TenantID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	u.Role = model.Role(role)
	return u, nil
}
