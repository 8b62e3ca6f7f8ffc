package repository

import (
	"context"

	"coaching-subscription/internal/domain/model"
)

// User is the minimal account record the subscription backend needs for
// joining names into listings. Credentials live with the auth service.
type User struct {
	ID       string
	Name     string
	Email    string
	Role     model.Role
	TenantID *string
}

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *User) error
	FindByID(ctx context.Context, tx Tx, id string) (*User, error)
}
