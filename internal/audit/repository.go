package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository stores audit_logs rows in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert writes one entry. Re-inserting an existing id is a no-op, which
// keeps redelivered events from producing duplicates.
func (r *Repository) Insert(ctx context.Context, log *AuditLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	details := log.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_logs (id, owner_user_id, event_type, severity, resource_type, resource_id, details, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		log.ID, log.OwnerUserID, log.EventType, log.Severity, log.ResourceType, log.ResourceID, details, log.IPAddress, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting audit log %s: %w", log.ID, err)
	}
	return nil
}

// ListByOwner returns one page of the owner's entries, newest first, and the
// number of entries matching the filters.
func (r *Repository) ListByOwner(ctx context.Context, ownerUserID uuid.UUID, params ListParams) ([]AuditLog, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}

	where, args := whereClause(ownerUserID, params)
	args = append(args, params.PageSize, (params.Page-1)*params.PageSize)
	query := fmt.Sprintf(`
		SELECT id, owner_user_id, event_type, severity, resource_type, COALESCE(resource_id, ''),
		       details, ip_address, created_at, COUNT(*) OVER () AS total
		FROM audit_logs
		WHERE %s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying audit logs: %w", err)
	}

	var total int64
	logs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (AuditLog, error) {
		var l AuditLog
		err := row.Scan(&l.ID, &l.OwnerUserID, &l.EventType, &l.Severity, &l.ResourceType,
			&l.ResourceID, &l.Details, &l.IPAddress, &l.CreatedAt, &total)
		return l, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scanning audit logs: %w", err)
	}

	// A page past the end has no rows to carry the window count.
	if len(logs) == 0 && params.Page > 1 {
		countArgs := args[:len(args)-2]
		if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_logs WHERE "+where, countArgs...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("counting audit logs: %w", err)
		}
	}
	if logs == nil {
		logs = []AuditLog{}
	}
	return logs, total, nil
}

// whereClause builds the filter for ListByOwner. Placeholders are numbered
// in the order of the returned args.
func whereClause(ownerUserID uuid.UUID, params ListParams) (string, []any) {
	conditions := []string{"owner_user_id = $1"}
	args := []any{ownerUserID}

	add := func(cond string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if params.EventType != "" {
		add("event_type = $%d", params.EventType)
	}
	if params.Severity != "" {
		add("severity = $%d", params.Severity)
	}
	if params.From != nil {
		add("created_at >= $%d", *params.From)
	}
	if params.To != nil {
		add("created_at <= $%d", *params.To)
	}

	return strings.Join(conditions, " AND "), args
}
