package persistent

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/moisesblank/people-flow-desk-sub004/internal/entity"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/postgres"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/types/errs"
)

const (
	// Table
	enrollmentsTable = "enrollments"

	// Columns
	enrollIDColumn        = "id"
	enrollEmailColumn     = "email"
	enrollProductIDColumn = "product_id"
	enrollStatusColumn    = "status"
	enrollGrantedAtColumn = "granted_at"
	enrollRevokedAtColumn = "revoked_at"
)

type EnrollmentRepo struct {
	*postgres.Postgres
}

func NewEnrollmentRepo(pg *postgres.Postgres) *EnrollmentRepo {
	return &EnrollmentRepo{pg}
}

func (r *EnrollmentRepo) Grant(ctx context.Context, e *entity.Enrollment) error {
	sql, args, err := r.Builder.
		Insert(enrollmentsTable).
		Columns(
			enrollIDColumn,
			enrollEmailColumn,
			enrollProductIDColumn,
			enrollStatusColumn,
			enrollGrantedAtColumn,
		).
		Values(
			e.ID,
			e.Email,
			e.ProductID,
			e.Status,
			e.GrantedAt,
		).
		Suffix(fmt.Sprintf(
			"ON CONFLICT (%s, %s) DO UPDATE SET %s = EXCLUDED.%s, %s = NULL",
			enrollEmailColumn, enrollProductIDColumn,
			enrollStatusColumn, enrollStatusColumn,
			enrollRevokedAtColumn,
		)).
		ToSql()
	if err != nil {
		return fmt.Errorf("EnrollmentRepo - Grant - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("EnrollmentRepo - Grant - executor.Exec: %w", err)
	}

	return nil
}

func (r *EnrollmentRepo) Revoke(ctx context.Context, email, productID string) error {
	now := time.Now()

	sql, args, err := r.Builder.
		Update(enrollmentsTable).
		Set(enrollStatusColumn, entity.EnrollmentRevoked).
		Set(enrollRevokedAtColumn, now).
		Where(squirrel.And{
			squirrel.Eq{enrollEmailColumn: email},
			squirrel.Eq{enrollProductIDColumn: productID},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("EnrollmentRepo - Revoke - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("EnrollmentRepo - Revoke - executor.Exec: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("EnrollmentRepo - Revoke: %w", errs.ErrRecordNotFound)
	}

	return nil
}

func (r *EnrollmentRepo) GetByEmail(ctx context.Context, email string) ([]*entity.Enrollment, error) {
	sql, args, err := r.Builder.
		Select(
			enrollIDColumn,
			enrollEmailColumn,
			enrollProductIDColumn,
			enrollStatusColumn,
			enrollGrantedAtColumn,
			enrollRevokedAtColumn,
		).
		From(enrollmentsTable).
		Where(squirrel.Eq{enrollEmailColumn: email}).
		OrderBy(enrollGrantedAtColumn + " DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("EnrollmentRepo - GetByEmail - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	rows, err := executor.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("EnrollmentRepo - GetByEmail - executor.Query: %w", err)
	}
	defer rows.Close()

	var enrollments []*entity.Enrollment
	for rows.Next() {
		var e entity.Enrollment
		err = rows.Scan(
			&e.ID,
			&e.Email,
			&e.ProductID,
			&e.Status,
			&e.GrantedAt,
			&e.RevokedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("EnrollmentRepo - GetByEmail - rows.Scan: %w", err)
		}
		enrollments = append(enrollments, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("EnrollmentRepo - GetByEmail - rows.Err: %w", err)
	}

	return enrollments, nil
}
