package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tailhaven/adoption-service/internal/core/domain"
	"github.com/tailhaven/adoption-service/internal/core/port"
	"github.com/tailhaven/adoption-service/internal/repository"
)

// AdoptionRequestRepository implements port.AdoptionRepository using
// PostgreSQL. The communication log is a JSONB column; duplicate prevention
// rides on a partial unique index over (applicant_id, pet_id) restricted to
// live statuses.
type AdoptionRequestRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAdoptionRequestRepository constructs a repository backed by any executor
// that satisfies pgExecutor.
func NewAdoptionRequestRepository(exec pgExecutor) *AdoptionRequestRepository {
	repo := &AdoptionRequestRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *AdoptionRequestRepository) WithTx(tx pgx.Tx) *AdoptionRequestRepository {
	if tx == nil {
		return r
	}
	return &AdoptionRequestRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

var requestColumns = []string{
	"id",
	"applicant_id",
	"pet_id",
	"phone",
	"address",
	"city",
	"housing_type",
	"has_yard",
	"experience_level",
	"other_pets",
	"status",
	"reviewer_id",
	"reviewed_at",
	"admin_notes",
	"rejection_reason",
	"communications",
	"follow_up_needed",
	"follow_up_date",
	"source",
	"created_at",
	"updated_at",
}

// Insert persists a new request. A partial-unique-index violation surfaces as
// repository.ErrDuplicate.
func (r *AdoptionRequestRepository) Insert(ctx context.Context, request domain.AdoptionRequest) error {
	comms, err := marshalCommunications(request.Communications)
	if err != nil {
		return err
	}

	query := r.builder.Insert("adopt.adoption_requests").
		Columns(requestColumns...).
		Values(
			request.ID,
			request.ApplicantID,
			request.PetID,
			request.Phone,
			request.Address,
			request.City,
			request.HousingType,
			request.HasYard,
			request.ExperienceLevel,
			request.OtherPets,
			request.Status,
			request.ReviewerID,
			request.ReviewedAt,
			request.AdminNotes,
			request.RejectionReason,
			comms,
			request.FollowUpNeeded,
			request.FollowUpDate,
			request.Source,
			request.CreatedAt,
			request.UpdatedAt,
		)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert request sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert request: %w", err)
	}

	return nil
}

// GetByID retrieves a request by identifier.
func (r *AdoptionRequestRepository) GetByID(ctx context.Context, id string) (*domain.AdoptionRequest, error) {
	stmt, args, err := r.selectRequests().
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select request sql: %w", err)
	}

	return r.scanRequest(r.exec.QueryRow(ctx, stmt, args...))
}

// FindLive returns the live request for the (applicant, pet) pair, if any.
func (r *AdoptionRequestRepository) FindLive(ctx context.Context, applicantID, petID string) (*domain.AdoptionRequest, error) {
	stmt, args, err := r.selectRequests().
		Where(squirrel.Eq{"applicant_id": applicantID, "pet_id": petID}).
		Where(squirrel.NotEq{"status": []string{
			string(domain.RequestStatusRejected),
			string(domain.RequestStatusWithdrawn),
			string(domain.RequestStatusCompleted),
		}}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select live request sql: %w", err)
	}

	return r.scanRequest(r.exec.QueryRow(ctx, stmt, args...))
}

// UpdateTransition writes the transitioned request, guarded on the stored
// status still matching expected. If the row exists but the status moved, the
// guard fails and the caller gets repository.ErrConflict. Re-opening a
// terminal request can collide with a newer live request for the same
// (applicant, pet) pair on the partial unique index; that surfaces as
// repository.ErrDuplicate.
func (r *AdoptionRequestRepository) UpdateTransition(ctx context.Context, request domain.AdoptionRequest, expected domain.RequestStatus) error {
	comms, err := marshalCommunications(request.Communications)
	if err != nil {
		return err
	}

	stmt, args, err := r.builder.Update("adopt.adoption_requests").
		SetMap(map[string]any{
			"status":           request.Status,
			"reviewer_id":      request.ReviewerID,
			"reviewed_at":      request.ReviewedAt,
			"admin_notes":      request.AdminNotes,
			"rejection_reason": request.RejectionReason,
			"communications":   comms,
			"follow_up_needed": request.FollowUpNeeded,
			"follow_up_date":   request.FollowUpDate,
			"updated_at":       request.UpdatedAt,
		}).
		Where(squirrel.Eq{"id": request.ID, "status": expected}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update request sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("update request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		exists, err := r.exists(ctx, request.ID)
		if err != nil {
			return err
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}

	return nil
}

// AppendCommunication appends one entry to the JSONB communication log.
func (r *AdoptionRequestRepository) AppendCommunication(ctx context.Context, id string, entry domain.CommunicationEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal communication entry: %w", err)
	}

	stmt, args, err := r.builder.Update("adopt.adoption_requests").
		Set("communications", squirrel.Expr("communications || ?::jsonb", string(payload))).
		Set("updated_at", entry.At).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build append communication sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("append communication: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// List returns requests matching the filter, newest first.
func (r *AdoptionRequestRepository) List(ctx context.Context, filter port.RequestFilter) ([]domain.AdoptionRequest, error) {
	query := r.selectRequests().OrderBy("created_at DESC")
	query = applyRequestFilter(query, filter)

	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list requests sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var requests []domain.AdoptionRequest
	for rows.Next() {
		request, err := r.scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}

	return requests, nil
}

// Count returns the number of requests matching the filter.
func (r *AdoptionRequestRepository) Count(ctx context.Context, filter port.RequestFilter) (int, error) {
	query := r.builder.Select("COUNT(*)").From("adopt.adoption_requests")
	query = applyRequestFilter(query, filter)

	stmt, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count requests sql: %w", err)
	}

	var count int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count requests: %w", err)
	}

	return count, nil
}

// ListDueFollowUps returns requests with a follow-up scheduled at or before
// the supplied instant, oldest first.
func (r *AdoptionRequestRepository) ListDueFollowUps(ctx context.Context, before time.Time, limit int) ([]domain.AdoptionRequest, error) {
	query := r.selectRequests().
		Where(squirrel.Eq{"follow_up_needed": true}).
		Where(squirrel.LtOrEq{"follow_up_date": before}).
		OrderBy("follow_up_date ASC")

	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build due follow-ups sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list due follow-ups: %w", err)
	}
	defer rows.Close()

	var requests []domain.AdoptionRequest
	for rows.Next() {
		request, err := r.scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due follow-ups: %w", err)
	}

	return requests, nil
}

func applyRequestFilter(query squirrel.SelectBuilder, filter port.RequestFilter) squirrel.SelectBuilder {
	if filter.ApplicantID != "" {
		query = query.Where(squirrel.Eq{"applicant_id": filter.ApplicantID})
	}
	if filter.PetID != "" {
		query = query.Where(squirrel.Eq{"pet_id": filter.PetID})
	}
	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"status": filter.Status})
	}
	return query
}

func (r *AdoptionRequestRepository) selectRequests() squirrel.SelectBuilder {
	return r.builder.
		Select(requestColumns...).
		From("adopt.adoption_requests")
}

func (r *AdoptionRequestRepository) exists(ctx context.Context, id string) (bool, error) {
	stmt, args, err := r.builder.Select("1").
		From("adopt.adoption_requests").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists sql: %w", err)
	}

	var one int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check request exists: %w", err)
	}
	return true, nil
}

func (r *AdoptionRequestRepository) scanRequest(row pgx.Row) (*domain.AdoptionRequest, error) {
	var (
		request domain.AdoptionRequest
		comms   []byte
	)

	if err := row.Scan(
		&request.ID,
		&request.ApplicantID,
		&request.PetID,
		&request.Phone,
		&request.Address,
		&request.City,
		&request.HousingType,
		&request.HasYard,
		&request.ExperienceLevel,
		&request.OtherPets,
		&request.Status,
		&request.ReviewerID,
		&request.ReviewedAt,
		&request.AdminNotes,
		&request.RejectionReason,
		&comms,
		&request.FollowUpNeeded,
		&request.FollowUpDate,
		&request.Source,
		&request.CreatedAt,
		&request.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan request: %w", err)
	}

	if len(comms) > 0 {
		if err := json.Unmarshal(comms, &request.Communications); err != nil {
			return nil, fmt.Errorf("unmarshal communications: %w", err)
		}
	}

	return &request, nil
}

func marshalCommunications(entries []domain.CommunicationEntry) (string, error) {
	if entries == nil {
		entries = []domain.CommunicationEntry{}
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("marshal communications: %w", err)
	}
	return string(payload), nil
}

var _ port.AdoptionRepository = (*AdoptionRequestRepository)(nil)
