package repository

import (
	"context"
	"errors"

	"github.com/modu-mall/account-api/internal/domain/entity"
)

// Sentinel errors surfaced by repository implementations.
var (
	// ErrNotFound is returned when no user matches the lookup key.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned by Create when the email is already
	// taken. Implementations must enforce this atomically (a unique
	// constraint), not with a read-then-write check.
	ErrDuplicateEmail = errors.New("email already in use")
)

// UpdateFields describes a partial update. Nil pointers leave the stored
// value untouched; the merge is shallow by contract.
type UpdateFields struct {
	FullName    *string
	Password    *string // already hashed by the caller
	ProfileImg  *string // set only by the avatar upload flow
	PostalCode  *string
	Address1    *string
	Address2    *string
	PhoneNumber *string
}

// UserRepository defines the persistence contract for user accounts.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetAll(ctx context.Context) ([]*entity.User, error)
	Update(ctx context.Context, id string, fields UpdateFields) (*entity.User, error)
	Delete(ctx context.Context, id string) error
}
