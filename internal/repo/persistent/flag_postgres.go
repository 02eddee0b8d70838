package persistent

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/moisesblank/people-flow-desk-sub004/internal/entity"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/postgres"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/types/errs"
)

const (
	// Table
	flagsTable = "feature_flags"

	// Columns
	flagKeyColumn         = "flag_key"
	flagValueColumn       = "flag_value"
	flagDescriptionColumn = "description"
	flagUpdatedAtColumn   = "updated_at"
	flagUpdatedByColumn   = "updated_by"
)

type FlagRepo struct {
	*postgres.Postgres
}

func NewFlagRepo(pg *postgres.Postgres) *FlagRepo {
	return &FlagRepo{pg}
}

func (r *FlagRepo) Get(ctx context.Context, key string) (*entity.FeatureFlag, error) {
	sql, args, err := r.Builder.
		Select(
			flagKeyColumn,
			flagValueColumn,
			flagDescriptionColumn,
			flagUpdatedAtColumn,
			flagUpdatedByColumn,
		).
		From(flagsTable).
		Where(squirrel.Eq{flagKeyColumn: key}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("FlagRepo - Get - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	var flag entity.FeatureFlag
	err = executor.QueryRow(ctx, sql, args...).Scan(
		&flag.Key,
		&flag.Value,
		&flag.Description,
		&flag.UpdatedAt,
		&flag.UpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("FlagRepo - Get: %w", errs.ErrRecordNotFound)
		}

		return nil, fmt.Errorf("FlagRepo - Get - executor.QueryRow.Scan: %w", err)
	}

	return &flag, nil
}

func (r *FlagRepo) Upsert(ctx context.Context, flag *entity.FeatureFlag) error {
	sql, args, err := r.Builder.
		Insert(flagsTable).
		Columns(
			flagKeyColumn,
			flagValueColumn,
			flagDescriptionColumn,
			flagUpdatedAtColumn,
			flagUpdatedByColumn,
		).
		Values(
			flag.Key,
			flag.Value,
			flag.Description,
			flag.UpdatedAt,
			flag.UpdatedBy,
		).
		Suffix(fmt.Sprintf(
			"ON CONFLICT (%s) DO UPDATE SET %s = EXCLUDED.%s, %s = EXCLUDED.%s, %s = EXCLUDED.%s",
			flagKeyColumn,
			flagValueColumn, flagValueColumn,
			flagUpdatedAtColumn, flagUpdatedAtColumn,
			flagUpdatedByColumn, flagUpdatedByColumn,
		)).
		ToSql()
	if err != nil {
		return fmt.Errorf("FlagRepo - Upsert - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("FlagRepo - Upsert - executor.Exec: %w", err)
	}

	return nil
}
