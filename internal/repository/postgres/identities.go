package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tailhaven/adoption-service/internal/core/domain"
	"github.com/tailhaven/adoption-service/internal/core/port"
	"github.com/tailhaven/adoption-service/internal/repository"
)

const identityColumns = "id, email, name, phone, password_hash, role, status, email_verified, locked_until, password_changed_at, deletion_requested, registered_at, last_login"

// IdentityRepository implements port.IdentityRepository using PostgreSQL.
type IdentityRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewIdentityRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewIdentityRepository(exec pgExecutor) *IdentityRepository {
	repo := &IdentityRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *IdentityRepository) WithTx(tx pgx.Tx) *IdentityRepository {
	if tx == nil {
		return r
	}
	return &IdentityRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new identity row. A duplicate email surfaces as
// repository.ErrDuplicate.
func (r *IdentityRepository) Create(ctx context.Context, identity domain.Identity) error {
	var phoneValue any
	if identity.Phone != nil && *identity.Phone != "" {
		phoneValue = *identity.Phone
	}

	query := r.builder.Insert("adopt.identities").
		Columns(
			"id",
			"email",
			"name",
			"phone",
			"password_hash",
			"role",
			"status",
			"email_verified",
			"locked_until",
			"password_changed_at",
			"deletion_requested",
			"registered_at",
			"last_login",
		).
		Values(
			identity.ID,
			strings.ToLower(identity.Email),
			identity.Name,
			phoneValue,
			identity.PasswordHash,
			identity.Role,
			identity.Status,
			identity.EmailVerified,
			identity.LockedUntil,
			identity.PasswordChangedAt,
			identity.DeletionRequested,
			identity.RegisteredAt,
			identity.LastLogin,
		)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert identity sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert identity: %w", err)
	}

	return nil
}

// GetByID retrieves an identity by identifier.
func (r *IdentityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	stmt, args, err := r.selectIdentity().
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select identity sql: %w", err)
	}

	return r.scanIdentity(r.exec.QueryRow(ctx, stmt, args...))
}

// GetByEmail retrieves an identity by lowercased email.
func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	stmt, args, err := r.selectIdentity().
		Where(squirrel.Eq{"email": strings.ToLower(email)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select identity sql: %w", err)
	}

	return r.scanIdentity(r.exec.QueryRow(ctx, stmt, args...))
}

// UpdateStatus sets the account status.
func (r *IdentityRepository) UpdateStatus(ctx context.Context, id string, status domain.IdentityStatus) error {
	return r.updateByID(ctx, id, map[string]any{"status": status})
}

// UpdateRole sets the account role.
func (r *IdentityRepository) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	return r.updateByID(ctx, id, map[string]any{"role": role})
}

// UpdatePassword stores the new hash and the change timestamp that
// invalidates earlier tokens.
func (r *IdentityRepository) UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error {
	return r.updateByID(ctx, id, map[string]any{
		"password_hash":       passwordHash,
		"password_changed_at": changedAt,
	})
}

// MarkEmailVerified flips the verification flag and activates pending accounts.
func (r *IdentityRepository) MarkEmailVerified(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Update("adopt.identities").
		Set("email_verified", true).
		Set("status", squirrel.Expr(
			"CASE WHEN status = ? THEN ? ELSE status END",
			domain.IdentityStatusPendingVerification,
			domain.IdentityStatusActive,
		)).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark email verified sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetLock sets or clears the lockout timestamp.
func (r *IdentityRepository) SetLock(ctx context.Context, id string, until *time.Time) error {
	return r.updateByID(ctx, id, map[string]any{"locked_until": until})
}

// RecordLogin stamps the last successful login.
func (r *IdentityRepository) RecordLogin(ctx context.Context, id string, at time.Time) error {
	return r.updateByID(ctx, id, map[string]any{"last_login": at})
}

func (r *IdentityRepository) updateByID(ctx context.Context, id string, values map[string]any) error {
	stmt, args, err := r.builder.Update("adopt.identities").
		SetMap(values).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update identity sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *IdentityRepository) selectIdentity() squirrel.SelectBuilder {
	return r.builder.
		Select(strings.Split(identityColumns, ", ")...).
		From("adopt.identities")
}

func (r *IdentityRepository) scanIdentity(row pgx.Row) (*domain.Identity, error) {
	var (
		identity domain.Identity
		phone    *string
	)

	if err := row.Scan(
		&identity.ID,
		&identity.Email,
		&identity.Name,
		&phone,
		&identity.PasswordHash,
		&identity.Role,
		&identity.Status,
		&identity.EmailVerified,
		&identity.LockedUntil,
		&identity.PasswordChangedAt,
		&identity.DeletionRequested,
		&identity.RegisteredAt,
		&identity.LastLogin,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan identity: %w", err)
	}

	identity.Phone = phone
	return &identity, nil
}

var _ port.IdentityRepository = (*IdentityRepository)(nil)
