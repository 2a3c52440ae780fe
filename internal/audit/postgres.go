package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/openschoolhq/schooldesk/internal/tracing"
)

// PostgresRepository implements Repository on PostgreSQL. Before/after
// snapshots are stored as JSONB; rows are append-only and carry a descending
// occurred_at index for the history read path.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a PostgresRepository. A nil logger falls back
// to slog.Default.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) (*PostgresRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}, nil
}

// Append inserts one change record and returns it with the assigned ID and
// write-time timestamp.
func (r *PostgresRepository) Append(ctx context.Context, entry Entry) (*ChangeRecord, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	before, err := marshalSnapshot(entry.BeforeState)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal before state: %w", err)
	}
	after, err := marshalSnapshot(entry.AfterState)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal after state: %w", err)
	}

	var actorID sql.NullString
	if entry.ActorID != nil {
		actorID = sql.NullString{String: *entry.ActorID, Valid: true}
	}

	rec := &ChangeRecord{
		EntityName:  entry.EntityName,
		EntityID:    entry.EntityID,
		Action:      entry.Action,
		ActorID:     entry.ActorID,
		BeforeState: entry.BeforeState,
		AfterState:  entry.AfterState,
		ClientIP:    entry.ClientIP,
		ClientAgent: entry.ClientAgent,
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "change_records", tracing.DBOperationInsert)
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO change_records
			(entity_name, entity_id, action, actor_id, before_state, after_state, client_ip, client_agent, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING id, occurred_at`,
		entry.EntityName, entry.EntityID, string(entry.Action), actorID,
		before, after, nullString(entry.ClientIP), nullString(entry.ClientAgent),
	).Scan(&rec.ID, &rec.OccurredAt)
	endSpan(err)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			r.logger.ErrorContext(ctx, "change record insert failed",
				"entity", entry.EntityName,
				"code", string(pqErr.Code),
				"error", pqErr.Message)
		}
		return nil, fmt.Errorf("failed to insert change record: %w", err)
	}
	return rec, nil
}

// Query returns one page of records matching the filter, newest first, plus
// the total match count. The page query and the count query share one
// WHERE clause so totals stay consistent with page contents.
func (r *PostgresRepository) Query(ctx context.Context, f Filter, offset, limit int) (records []*ChangeRecord, total int, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "change_records", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	where, args := buildWhere(f)
	countQuery := "SELECT COUNT(*) FROM change_records" + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count change records: %w", err)
	}

	pageQuery := `
		SELECT id, entity_name, entity_id, action, actor_id,
		       before_state, after_state, client_ip, client_agent, occurred_at
		FROM change_records` + where +
		" ORDER BY occurred_at DESC, id DESC LIMIT $" + strconv.Itoa(len(args)+1) +
		" OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, pageQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query change records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate change records: %w", err)
	}
	return records, total, nil
}

func scanRecord(rows *sql.Rows) (*ChangeRecord, error) {
	var (
		rec         ChangeRecord
		action      string
		actorID     sql.NullString
		before      sql.NullString
		after       sql.NullString
		clientIP    sql.NullString
		clientAgent sql.NullString
	)
	if err := rows.Scan(&rec.ID, &rec.EntityName, &rec.EntityID, &action, &actorID,
		&before, &after, &clientIP, &clientAgent, &rec.OccurredAt); err != nil {
		return nil, fmt.Errorf("failed to scan change record: %w", err)
	}
	rec.Action = Action(action)
	if actorID.Valid {
		rec.ActorID = &actorID.String
	}
	rec.BeforeState = decodeSnapshotLeniently(before)
	rec.AfterState = decodeSnapshotLeniently(after)
	rec.ClientIP = clientIP.String
	rec.ClientAgent = clientAgent.String
	return &rec, nil
}

// decodeSnapshotLeniently decodes a stored JSON snapshot. Rows that fail to
// decode (legacy or malformed) are returned raw under a "_raw" key rather
// than failing the whole page.
func decodeSnapshotLeniently(v sql.NullString) Snapshot {
	if !v.Valid || v.String == "" || v.String == "null" {
		return nil
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(v.String), &snap); err != nil {
		return Snapshot{"_raw": v.String}
	}
	return snap
}

func buildWhere(f Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.EntityName != "" {
		add("entity_name = $%d", f.EntityName)
	}
	if f.EntityID != "" {
		add("entity_id = $%d", f.EntityID)
	}
	if f.ActorID != "" {
		add("actor_id = $%d", f.ActorID)
	}
	if f.Action != "" {
		add("action = $%d", string(f.Action))
	}
	if !f.From.IsZero() {
		add("occurred_at >= $%d", f.From.UTC())
	}
	if !f.To.IsZero() {
		add("occurred_at <= $%d", f.To.UTC())
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func marshalSnapshot(s Snapshot) (any, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
