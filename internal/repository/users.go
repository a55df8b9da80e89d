package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/specialist-directory/internal/domain"
)

// UsersRepository persists accounts.
type UsersRepository struct {
	db DBTX
}

const userColumns = `
    id,
    uuid,
    email,
    password_hash,
    first_name,
    last_name,
    is_active,
    is_staff,
    is_admin,
    last_seen_at,
    created_at
`

// UserCreateParams bundles the fields required to create an account.
type UserCreateParams struct {
	Email        string
	PasswordHash string
	FirstName    *string
	LastName     *string
	IsActive     bool
	IsStaff      bool
	IsAdmin      bool
}

// UserListFilters narrows the admin user listing.
type UserListFilters struct {
	Search string
	Limit  int
	Offset int
}

// Create inserts a user with a freshly generated UUID.
func (r *UsersRepository) Create(ctx context.Context, params UserCreateParams) (domain.User, error) {
	query := fmt.Sprintf(`
        INSERT INTO users (uuid, email, password_hash, first_name, last_name, is_active, is_staff, is_admin)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING %s
    `, userColumns)

	row := r.db.QueryRow(ctx, query, uuid.New(), params.Email, params.PasswordHash,
		params.FirstName, params.LastName, params.IsActive, params.IsStaff, params.IsAdmin)
	u, err := scanUser(row)
	return u, translate(err)
}

// GetByID fetches a user by numeric id.
func (r *UsersRepository) GetByID(ctx context.Context, id int64) (domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	return u, translate(err)
}

// GetByUUID fetches a user by public identifier.
func (r *UsersRepository) GetByUUID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE uuid = $1`, userColumns)
	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	return u, translate(err)
}

// GetByEmail fetches a user by normalized email.
func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)
	u, err := scanUser(r.db.QueryRow(ctx, query, email))
	return u, translate(err)
}

// ExistsByEmail reports whether an account already uses email.
func (r *UsersRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	return exists, err
}

// TouchLastSeen records the moment of the user's latest login.
func (r *UsersRepository) TouchLastSeen(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_seen_at = now() WHERE id = $1`, id)
	return err
}

// SetActive enables or disables an account.
func (r *UsersRepository) SetActive(ctx context.Context, id int64, active bool) (domain.User, error) {
	query := fmt.Sprintf(`UPDATE users SET is_active = $2 WHERE id = $1 RETURNING %s`, userColumns)
	u, err := scanUser(r.db.QueryRow(ctx, query, id, active))
	return u, translate(err)
}

// SetStaff grants or revokes back-office access.
func (r *UsersRepository) SetStaff(ctx context.Context, id int64, staff bool) (domain.User, error) {
	query := fmt.Sprintf(`UPDATE users SET is_staff = $2 WHERE id = $1 RETURNING %s`, userColumns)
	u, err := scanUser(r.db.QueryRow(ctx, query, id, staff))
	return u, translate(err)
}

// List returns users ordered by creation, newest first.
func (r *UsersRepository) List(ctx context.Context, filters UserListFilters) ([]domain.User, error) {
	filters.Limit = clampLimit(filters.Limit)
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	args := []any{}
	where := ""
	if q := strings.TrimSpace(filters.Search); q != "" {
		args = append(args, "%"+q+"%")
		where = "WHERE email ILIKE $1 OR first_name ILIKE $1 OR last_name ILIKE $1"
	}
	query := fmt.Sprintf(`SELECT %s FROM users %s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`,
		userColumns, where, filters.Limit, filters.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanUser)
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.UUID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.IsActive,
		&u.IsStaff,
		&u.IsAdmin,
		&u.LastSeenAt,
		&u.CreatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
