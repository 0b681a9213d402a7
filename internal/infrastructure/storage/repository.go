package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"ResellBot/internal/domain"
	"ResellBot/internal/ports"
)

// SQLRepository persists triage records, outreach attempts and templates
// in Postgres or SQLite.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
}

var _ ports.Store = (*SQLRepository)(nil)

// NewSQLRepository wires a sql.DB implementation.
func NewSQLRepository(db *sql.DB, dialect Dialect) *SQLRepository {
	var format sq.PlaceholderFormat = sq.Question
	if dialect == DialectPostgres {
		format = sq.Dollar
	}
	return &SQLRepository{
		db:      db,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(format),
	}
}

var listingColumns = []string{
	"id", "title", "price", "raw_price", "link", "location", "category",
	"filter_status", "filter_reason", "session_id", "created_at", "payload",
	"message_sent", "deleted",
}

// ExistingListingIDs returns the subset of ids already stored.
func (r *SQLRepository) ExistingListingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	if r.db == nil || len(ids) == 0 {
		return map[string]bool{}, nil
	}
	query := r.sb.Select("id").From("listings").Where(r.inIDs("id", ids))
	return r.collectIDs(ctx, query)
}

// SaveTriage upserts the triage snapshot. Outreach flags survive re-ingestion.
func (r *SQLRepository) SaveTriage(ctx context.Context, rec domain.TriageRecord) error {
	if r.db == nil {
		return nil
	}
	var payload any
	if len(rec.Payload) > 0 {
		payload = string(rec.Payload)
	}
	query := r.sb.Insert("listings").
		Columns(listingColumns...).
		Values(
			rec.ID, rec.Title, rec.Price, rec.RawPrice, rec.Link, rec.Location,
			string(rec.Category), string(rec.FilterStatus), rec.FilterReason,
			rec.SessionID, r.timestamp(rec.CreatedAt), payload, false, false,
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			price = excluded.price,
			raw_price = excluded.raw_price,
			link = excluded.link,
			location = excluded.location,
			category = excluded.category,
			filter_status = excluded.filter_status,
			filter_reason = excluded.filter_reason,
			session_id = excluded.session_id,
			created_at = excluded.created_at,
			payload = excluded.payload`)

	if _, err := query.RunWith(r.db).ExecContext(ctx); err != nil {
		return fmt.Errorf("%w: upsert listing %s: %w", domain.ErrPersistence, rec.ID, err)
	}
	return nil
}

// DispatchCandidates lists passed, normal, live listings not yet messaged.
func (r *SQLRepository) DispatchCandidates(ctx context.Context) ([]domain.TriageRecord, error) {
	if r.db == nil {
		return nil, nil
	}
	query := r.sb.Select(listingColumns...).
		From("listings").
		Where(sq.Eq{
			"category":      string(domain.CategoryNormal),
			"filter_status": string(domain.StatusPassed),
			"deleted":       false,
			"message_sent":  false,
		}).
		OrderBy("created_at", "id")

	rows, err := query.RunWith(r.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: query dispatch candidates: %w", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var out []domain.TriageRecord
	for rows.Next() {
		rec, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// MarkMessageSent flags a listing as messaged.
func (r *SQLRepository) MarkMessageSent(ctx context.Context, id string) error {
	return r.setFlag(ctx, id, "message_sent")
}

// MarkDeleted flags a listing as removed by the seller.
func (r *SQLRepository) MarkDeleted(ctx context.Context, id string) error {
	return r.setFlag(ctx, id, "deleted")
}

func (r *SQLRepository) setFlag(ctx context.Context, id, column string) error {
	if r.db == nil {
		return nil
	}
	query := r.sb.Update("listings").Set(column, true).Where(sq.Eq{"id": id})
	if _, err := query.RunWith(r.db).ExecContext(ctx); err != nil {
		return fmt.Errorf("%w: set %s on %s: %w", domain.ErrPersistence, column, id, err)
	}
	return nil
}

// AttemptedListingIDs returns the subset of ids with any recorded outreach attempt.
func (r *SQLRepository) AttemptedListingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	if r.db == nil || len(ids) == 0 {
		return map[string]bool{}, nil
	}
	query := r.sb.Select("DISTINCT listing_id").From("sent_messages").Where(r.inIDs("listing_id", ids))
	return r.collectIDs(ctx, query)
}

// ListingIDsByStatus returns every listing with at least one attempt in the given status.
func (r *SQLRepository) ListingIDsByStatus(ctx context.Context, status domain.SendStatus) (map[string]bool, error) {
	if r.db == nil {
		return map[string]bool{}, nil
	}
	query := r.sb.Select("DISTINCT listing_id").From("sent_messages").Where(sq.Eq{"status": string(status)})
	return r.collectIDs(ctx, query)
}

// AppendAttempt records one outreach attempt.
func (r *SQLRepository) AppendAttempt(ctx context.Context, rec domain.SentMessageRecord) error {
	if r.db == nil {
		return nil
	}
	sentAt := rec.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}
	query := r.sb.Insert("sent_messages").
		Columns("listing_id", "status", "sent_at", "log").
		Values(rec.ListingID, string(rec.Status), r.timestamp(sentAt), rec.Log)
	if _, err := query.RunWith(r.db).ExecContext(ctx); err != nil {
		return fmt.Errorf("%w: append attempt %s: %w", domain.ErrPersistence, rec.ListingID, err)
	}
	return nil
}

// Attempts lists the outreach log of one listing, oldest first.
func (r *SQLRepository) Attempts(ctx context.Context, listingID string) ([]domain.SentMessageRecord, error) {
	query := r.sb.Select("id", "listing_id", "status", "sent_at", "log").
		From("sent_messages").
		Where(sq.Eq{"listing_id": listingID}).
		OrderBy("id")
	rows, err := query.RunWith(r.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []domain.SentMessageRecord
	for rows.Next() {
		var (
			rec    domain.SentMessageRecord
			status string
			sentAt any
		)
		if err := rows.Scan(&rec.ID, &rec.ListingID, &status, &sentAt, &rec.Log); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		rec.Status = domain.SendStatus(status)
		if rec.SentAt, err = parseTimestamp(sentAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ActiveTemplates returns active outreach templates in id order.
func (r *SQLRepository) ActiveTemplates(ctx context.Context) ([]domain.MessageTemplate, error) {
	if r.db == nil {
		return nil, nil
	}
	query := r.sb.Select("id", "content", "is_active").
		From("message_templates").
		Where(sq.Eq{"is_active": true}).
		OrderBy("id")
	rows, err := query.RunWith(r.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: query templates: %w", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var out []domain.MessageTemplate
	for rows.Next() {
		var tpl domain.MessageTemplate
		if err := rows.Scan(&tpl.ID, &tpl.Content, &tpl.IsActive); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, tpl)
	}
	return out, rows.Err()
}

// AddTemplate stores a new outreach template.
func (r *SQLRepository) AddTemplate(ctx context.Context, content string, active bool) error {
	query := r.sb.Insert("message_templates").Columns("content", "is_active").Values(content, active)
	if _, err := query.RunWith(r.db).ExecContext(ctx); err != nil {
		return fmt.Errorf("%w: insert template: %w", domain.ErrPersistence, err)
	}
	return nil
}

// Stats aggregates listing and outreach counts.
func (r *SQLRepository) Stats(ctx context.Context) (domain.Stats, error) {
	stats := domain.Stats{
		ByFilterStatus: make(map[domain.FilterStatus]int),
		ByCategory:     make(map[domain.Category]int),
		BySendStatus:   make(map[domain.SendStatus]int),
	}
	if r.db == nil {
		return stats, nil
	}

	byStatus, err := r.groupCount(ctx, "listings", "filter_status")
	if err != nil {
		return stats, err
	}
	for k, v := range byStatus {
		stats.ByFilterStatus[domain.FilterStatus(k)] = v
		stats.Listings += v
	}

	byCategory, err := r.groupCount(ctx, "listings", "category")
	if err != nil {
		return stats, err
	}
	for k, v := range byCategory {
		stats.ByCategory[domain.Category(k)] = v
	}

	bySend, err := r.groupCount(ctx, "sent_messages", "status")
	if err != nil {
		return stats, err
	}
	for k, v := range bySend {
		stats.BySendStatus[domain.SendStatus(k)] = v
	}

	if stats.MessagesSent, err = r.countWhere(ctx, sq.Eq{"message_sent": true}); err != nil {
		return stats, err
	}
	if stats.Deleted, err = r.countWhere(ctx, sq.Eq{"deleted": true}); err != nil {
		return stats, err
	}
	return stats, nil
}

func (r *SQLRepository) groupCount(ctx context.Context, table, column string) (map[string]int, error) {
	query := r.sb.Select(column, "COUNT(*)").From(table).GroupBy(column)
	rows, err := query.RunWith(r.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("count %s by %s: %w", table, column, err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			key   string
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[key] = count
	}
	return out, rows.Err()
}

func (r *SQLRepository) countWhere(ctx context.Context, pred sq.Sqlizer) (int, error) {
	var count int
	query := r.sb.Select("COUNT(*)").From("listings").Where(pred)
	if err := query.RunWith(r.db).QueryRowContext(ctx).Scan(&count); err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return count, nil
}

// inIDs uses a native array parameter on Postgres and an expanded IN list elsewhere.
func (r *SQLRepository) inIDs(column string, ids []string) sq.Sqlizer {
	if r.dialect == DialectPostgres {
		return sq.Expr(column+" = ANY(?)", pq.StringArray(ids))
	}
	return sq.Eq{column: ids}
}

func (r *SQLRepository) collectIDs(ctx context.Context, query sq.SelectBuilder) (map[string]bool, error) {
	rows, err := query.RunWith(r.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: query ids: %w", domain.ErrPersistence, err)
	}
	defer rows.Close()

	result := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		result[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}

// timestamp stores TIMESTAMPTZ natively on Postgres and RFC3339 text on SQLite.
func (r *SQLRepository) timestamp(t time.Time) any {
	if r.dialect == DialectPostgres {
		return t.UTC()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(v any) (time.Time, error) {
	switch tv := v.(type) {
	case time.Time:
		return tv, nil
	case string:
		return parseTimestampText(tv)
	case []byte:
		return parseTimestampText(string(tv))
	case nil:
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
	}
}

func parseTimestampText(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func scanListing(rows *sql.Rows) (domain.TriageRecord, error) {
	var (
		rec       domain.TriageRecord
		category  string
		status    string
		createdAt any
		payload   []byte
	)
	if err := rows.Scan(
		&rec.ID, &rec.Title, &rec.Price, &rec.RawPrice, &rec.Link, &rec.Location,
		&category, &status, &rec.FilterReason, &rec.SessionID, &createdAt, &payload,
		&rec.MessageSent, &rec.Deleted,
	); err != nil {
		return rec, fmt.Errorf("scan listing: %w", err)
	}
	rec.Category = domain.Category(category)
	rec.FilterStatus = domain.FilterStatus(status)
	rec.Payload = payload
	var err error
	if rec.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return rec, err
	}
	return rec, nil
}
