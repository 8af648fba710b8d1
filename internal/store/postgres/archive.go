package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/ideacritic/internal/archive"
)

// ArchiveStore persists analysis records in the debates table.
//
// Obtain one via [Store.Archive].
type ArchiveStore struct {
	pool *pgxpool.Pool
}

// uniqueViolation is the SQLSTATE for a primary key conflict.
const uniqueViolation = "23505"

const selectRecord = `
	SELECT id::text, idea_title, idea_description, clarifying_answers,
	       debate_transcript, final_summary, market_insight, investor_output, created_at
	FROM   debates`

// Insert implements [archive.Store]. Ids are UUIDs, including caller-supplied
// ones.
func (s *ArchiveStore) Insert(ctx context.Context, r archive.Record) (string, error) {
	const q = `
		INSERT INTO debates
		    (id, idea_title, idea_description, clarifying_answers, debate_transcript,
		     final_summary, market_insight, investor_output, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	id := uuid.New()
	if r.ID != "" {
		parsed, err := uuid.Parse(r.ID)
		if err != nil {
			return "", fmt.Errorf("%w: %q is not a UUID", archive.ErrInvalidID, r.ID)
		}
		id = parsed
	}
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	answers := r.ClarifyingAnswers
	if answers == nil {
		answers = map[string]string{}
	}

	_, err := s.pool.Exec(ctx, q,
		id,
		r.IdeaTitle,
		r.IdeaDescription,
		answers,
		r.DebateTranscript,
		r.FinalSummary,
		r.MarketInsight,
		r.InvestorOutput,
		createdAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return "", fmt.Errorf("%w: %s", archive.ErrDuplicateID, id)
	}
	if err != nil {
		return "", fmt.Errorf("archive: insert: %w", err)
	}
	return id.String(), nil
}

// List implements [archive.Store].
func (s *ArchiveStore) List(ctx context.Context) ([]archive.Record, error) {
	rows, err := s.pool.Query(ctx, selectRecord+"\n\tORDER  BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("archive: list: %w", err)
	}
	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("archive: list: %w", err)
	}
	return records, nil
}

// Get implements [archive.Store]. Ids that are not valid UUIDs are reported as
// [archive.ErrNotFound].
func (s *ArchiveStore) Get(ctx context.Context, id string) (archive.Record, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return archive.Record{}, archive.ErrNotFound
	}
	rows, err := s.pool.Query(ctx, selectRecord+"\n\tWHERE  id = $1", uid)
	if err != nil {
		return archive.Record{}, fmt.Errorf("archive: get: %w", err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, scanRecord)
	if errors.Is(err, pgx.ErrNoRows) {
		return archive.Record{}, archive.ErrNotFound
	}
	if err != nil {
		return archive.Record{}, fmt.Errorf("archive: get: %w", err)
	}
	return rec, nil
}

// Count implements [archive.Store].
func (s *ArchiveStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM debates").Scan(&n); err != nil {
		return 0, fmt.Errorf("archive: count: %w", err)
	}
	return n, nil
}

func scanRecord(row pgx.CollectableRow) (archive.Record, error) {
	var r archive.Record
	err := row.Scan(
		&r.ID,
		&r.IdeaTitle,
		&r.IdeaDescription,
		&r.ClarifyingAnswers,
		&r.DebateTranscript,
		&r.FinalSummary,
		&r.MarketInsight,
		&r.InvestorOutput,
		&r.CreatedAt,
	)
	r.CreatedAt = r.CreatedAt.UTC()
	return r, err
}
