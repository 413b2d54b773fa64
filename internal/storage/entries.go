package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/Veraticus/fraudwatch/internal/model"
)

const entryColumns = `id, source, status, display_amount, fraud, fraud_score,
	legitimate_probability, label, confidence, risk_level, transaction_id,
	classified_at, error, error_kind, retries, submitted_at, resolved_at`

// ListOptions filters ListEntries.
type ListOptions struct {
	// Status restricts results to one status when set.
	Status model.FeedStatus
	// Limit caps the number of rows; zero means no limit.
	Limit int
}

// SaveEntry upserts a resolved feed entry.
func (s *SQLiteStorage) SaveEntry(ctx context.Context, entry model.FeedEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateEntry(entry); err != nil {
		return err
	}

	var (
		fraud, score, legit            sql.NullFloat64
		label, confidence, risk, txnID sql.NullString
		classifiedAt, resolvedAt       sql.NullTime
	)
	if r := entry.Result; r != nil {
		fraud = sql.NullFloat64{Float64: float64(r.Classification()), Valid: true}
		score = sql.NullFloat64{Float64: r.FraudScore, Valid: true}
		legit = sql.NullFloat64{Float64: r.LegitimateProbability, Valid: true}
		label = nullString(r.Label)
		confidence = nullString(string(r.Confidence))
		risk = nullString(string(r.RiskLevel))
		txnID = nullString(r.TransactionID)
		classifiedAt = nullTime(r.Timestamp)
	}
	resolvedAt = nullTime(entry.ResolvedAt)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feed_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			fraud = excluded.fraud,
			fraud_score = excluded.fraud_score,
			legitimate_probability = excluded.legitimate_probability,
			label = excluded.label,
			confidence = excluded.confidence,
			risk_level = excluded.risk_level,
			transaction_id = excluded.transaction_id,
			classified_at = excluded.classified_at,
			error = excluded.error,
			error_kind = excluded.error_kind,
			retries = excluded.retries,
			resolved_at = excluded.resolved_at`,
		entry.ID, string(entry.Source), string(entry.Status), entry.DisplayAmount,
		fraud, score, legit, label, confidence, risk, txnID, classifiedAt,
		nullString(entry.Error), nullString(entry.ErrorKind), entry.Retries,
		entry.SubmittedAt.UTC(), resolvedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to save feed entry %s", entry.ID)
	}
	return nil
}

// GetEntry loads one entry by id.
func (s *SQLiteStorage) GetEntry(ctx context.Context, id string) (model.FeedEntry, error) {
	if err := validateContext(ctx); err != nil {
		return model.FeedEntry{}, err
	}
	if err := validateString(id, "id"); err != nil {
		return model.FeedEntry{}, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM feed_entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.FeedEntry{}, errors.Wrapf(ErrNotFound, "entry %s", id)
	}
	if err != nil {
		return model.FeedEntry{}, err
	}
	return entry, nil
}

// ListEntries returns stored entries, newest submission first.
func (s *SQLiteStorage) ListEntries(ctx context.Context, opts ListOptions) ([]model.FeedEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateStatus(opts.Status); err != nil {
		return nil, err
	}
	if opts.Limit < 0 {
		return nil, ErrInvalidLimit
	}

	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(`SELECT ` + entryColumns + ` FROM feed_entries`)
	if opts.Status != "" {
		query.WriteString(` WHERE status = ?`)
		args = append(args, string(opts.Status))
	}
	query.WriteString(` ORDER BY submitted_at DESC, created_at DESC, id DESC`)
	if opts.Limit > 0 {
		query.WriteString(` LIMIT ?`)
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query feed entries")
	}
	defer func() { _ = rows.Close() }()

	var entries []model.FeedEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate feed entries")
	}
	return entries, nil
}

// CountByStatus returns the number of stored entries per status.
func (s *SQLiteStorage) CountByStatus(ctx context.Context) (map[model.FeedStatus]int, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM feed_entries GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count feed entries")
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[model.FeedStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.Wrap(err, "failed to scan count")
		}
		counts[model.FeedStatus(status)] = n
	}
	return counts, rows.Err()
}

// ClearEntries deletes the stored history and returns how many rows went.
func (s *SQLiteStorage) ClearEntries(ctx context.Context) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM feed_entries`)
	if err != nil {
		return 0, errors.Wrap(err, "failed to clear feed entries")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to count cleared entries")
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (model.FeedEntry, error) {
	var (
		entry                          model.FeedEntry
		source, status                 string
		fraud, score, legit            sql.NullFloat64
		label, confidence, risk, txnID sql.NullString
		errMsg, errKind                sql.NullString
		classifiedAt, resolvedAt       sql.NullTime
	)

	err := row.Scan(&entry.ID, &source, &status, &entry.DisplayAmount,
		&fraud, &score, &legit, &label, &confidence, &risk, &txnID, &classifiedAt,
		&errMsg, &errKind, &entry.Retries, &entry.SubmittedAt, &resolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.FeedEntry{}, err
	}
	if err != nil {
		return model.FeedEntry{}, errors.Wrap(err, "failed to scan feed entry")
	}

	entry.Source = model.Source(source)
	entry.Status = model.FeedStatus(status)
	entry.Error = errMsg.String
	entry.ErrorKind = errKind.String
	if resolvedAt.Valid {
		entry.ResolvedAt = resolvedAt.Time
	}

	if score.Valid {
		entry.Result = &model.ClassificationResult{
			Fraud:                 fraud.Valid && fraud.Float64 == 1,
			FraudScore:            score.Float64,
			LegitimateProbability: legit.Float64,
			Label:                 label.String,
			Confidence:            model.Confidence(confidence.String),
			RiskLevel:             model.RiskLevel(risk.String),
			TransactionID:         txnID.String,
		}
		if classifiedAt.Valid {
			entry.Result.Timestamp = classifiedAt.Time
		}
	}
	return entry, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
