package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/modu-mall/account-api/internal/domain/entity"
	"github.com/modu-mall/account-api/internal/domain/repository"
)

// uniqueViolation is the Postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, email, full_name, password_hash, profile_img, is_admin,
	login_type_code, postal_code, address1, address2, phone_number,
	created_at, updated_at`

func scanUser(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Password, &u.ProfileImg,
		&u.IsAdmin, &u.LoginTypeCode, &u.PostalCode, &u.Address1, &u.Address2,
		&u.PhoneNumber, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// Create inserts the user and fills in the generated id and timestamps.
// The unique index on email makes duplicate detection atomic; a conflict
// surfaces as repository.ErrDuplicateEmail.
func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, full_name, password_hash, profile_img, is_admin,
			login_type_code, postal_code, address1, address2, phone_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`, u.Email, u.FullName, u.Password, u.ProfileImg, u.IsAdmin,
		u.LoginTypeCode, u.PostalCode, u.Address1, u.Address2, u.PhoneNumber)

	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return repository.ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
	`, email))
}

func (r *UserRepository) GetAll(ctx context.Context) ([]*entity.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*entity.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Update applies a shallow merge: COALESCE keeps the stored value for every
// field the caller did not supply.
func (r *UserRepository) Update(ctx context.Context, id string, fields repository.UpdateFields) (*entity.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		UPDATE users
		SET full_name     = COALESCE($2, full_name),
			password_hash = COALESCE($3, password_hash),
			profile_img   = COALESCE($4, profile_img),
			postal_code   = COALESCE($5, postal_code),
			address1      = COALESCE($6, address1),
			address2      = COALESCE($7, address2),
			phone_number  = COALESCE($8, phone_number),
			updated_at    = now()
		WHERE id = $1
		RETURNING `+userColumns+`
	`, id, fields.FullName, fields.Password, fields.ProfileImg,
		fields.PostalCode, fields.Address1, fields.Address2, fields.PhoneNumber))
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
