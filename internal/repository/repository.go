package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/specialist-directory/internal/store"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a unique constraint rejected the write.
	ErrConflict = errors.New("repository: conflict")
	// ErrForeignKey indicates a foreign key rejected the write: either the
	// referenced row is missing or a restricting reference still exists.
	ErrForeignKey = errors.New("repository: foreign key violation")
)

// ConstraintError carries the name of the violated constraint alongside the
// ErrConflict / ErrForeignKey classification.
type ConstraintError struct {
	Kind       error
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%v (%s): %v", e.Kind, e.Constraint, e.Err)
}

func (e *ConstraintError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// ConstraintName returns the violated constraint name when err is a ConstraintError.
func ConstraintName(err error) string {
	var cerr *ConstraintError
	if errors.As(err, &cerr) {
		return cerr.Constraint
	}
	return ""
}

// DBTX is the query surface shared by the pool and an open transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository aggregates all domain-specific repositories.
type Repository struct {
	begin beginner

	Users    *UsersRepository
	Catalog  *CatalogRepository
	Profiles *ProfilesRepository
	Contacts *ContactsRepository
	Projects *ProjectsRepository
	Reviews  *ReviewsRepository
}

// New constructs a Repository backed by the provided store.
func New(st *store.Store) *Repository {
	return NewWithPool(st.Pool())
}

// NewWithPool allows constructing repositories directly from a pgx pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return bind(pool, pool)
}

func bind(db DBTX, b beginner) *Repository {
	return &Repository{
		begin:    b,
		Users:    &UsersRepository{db: db},
		Catalog:  &CatalogRepository{db: db},
		Profiles: &ProfilesRepository{db: db},
		Contacts: &ContactsRepository{db: db},
		Projects: &ProjectsRepository{db: db},
		Reviews:  &ReviewsRepository{db: db},
	}
}

// WithTx runs fn against repositories bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise. Nested
// calls use savepoints.
func (r *Repository) WithTx(ctx context.Context, fn func(tx *Repository) error) error {
	return pgx.BeginFunc(ctx, r.begin, func(tx pgx.Tx) error {
		return fn(bind(tx, tx))
	})
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return &ConstraintError{Kind: ErrConflict, Constraint: pgErr.ConstraintName, Err: err}
		case "23503":
			return &ConstraintError{Kind: ErrForeignKey, Constraint: pgErr.ConstraintName, Err: err}
		}
	}
	return err
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	items := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
