package persistent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/moisesblank/people-flow-desk-sub004/internal/entity"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/postgres"
)

const (
	// Table
	auditTable = "exam_audit_log"

	// Columns
	auditIDColumn         = "id"
	auditCategoryColumn   = "category"
	auditActionColumn     = "action"
	auditLevelColumn      = "level"
	auditSimuladoIDColumn = "simulado_id"
	auditAttemptIDColumn  = "attempt_id"
	auditSessionIDColumn  = "session_id"
	auditDetailsColumn    = "details"
	auditCreatedAtColumn  = "created_at"
)

// AuditRepo only inserts. There are no update or delete statements on the
// audit table anywhere in the codebase.
type AuditRepo struct {
	*postgres.Postgres
}

func NewAuditRepo(pg *postgres.Postgres) *AuditRepo {
	return &AuditRepo{pg}
}

func (r *AuditRepo) Create(ctx context.Context, entry *entity.AuditEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("AuditRepo - Create - json.Marshal: %w", err)
	}

	sql, args, err := r.Builder.
		Insert(auditTable).
		Columns(
			auditIDColumn,
			auditCategoryColumn,
			auditActionColumn,
			auditLevelColumn,
			auditSimuladoIDColumn,
			auditAttemptIDColumn,
			auditSessionIDColumn,
			auditDetailsColumn,
			auditCreatedAtColumn,
		).
		Values(
			entry.ID,
			entry.Category,
			entry.Action,
			entry.Level,
			entry.SimuladoID,
			entry.AttemptID,
			entry.SessionID,
			details,
			entry.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("AuditRepo - Create - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("AuditRepo - Create - executor.Exec: %w", err)
	}

	return nil
}
