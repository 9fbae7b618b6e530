package aiusage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Quota is the persistence contract for monthly token accounting.
type Quota interface {
	// UseToken deducts one token; ErrInsufficientTokens when exhausted or the user is absent.
	UseToken(ctx context.Context, uid string) error
	EnsureUser(ctx context.Context, uid string) error
	Remaining(ctx context.Context, uid string) (int, error)
}

// Store handles ai_usage persistence.
type Store struct {
	db      *pgxpool.Pool
	monthly int
	now     func() time.Time
}

// NewStore returns a Store granting monthly tokens per user; non-positive means DefaultTokens.
func NewStore(db *pgxpool.Pool, monthly int) *Store {
	if monthly <= 0 {
		monthly = DefaultTokens
	}
	return &Store{db: db, monthly: monthly, now: time.Now}
}

// UseToken atomically checks the monthly quota and deducts one token.
// The counter resets when last_reset_month is behind the current month.
func (s *Store) UseToken(ctx context.Context, uid string) error {
	month := monthOf(s.now())

	tag, err := s.db.Exec(ctx, `
		UPDATE ai_usage SET
			tokens_remaining = CASE WHEN last_reset_month != $1 THEN $2 - 1 ELSE tokens_remaining - 1 END,
			last_reset_month = $1
		WHERE uid = $3 AND (last_reset_month < $1 OR tokens_remaining > 0)
	`, month, s.monthly, uid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientTokens
	}
	return nil
}

// EnsureUser inserts a row with the full allowance, skipping existing users.
func (s *Store) EnsureUser(ctx context.Context, uid string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ai_usage (uid, tokens_remaining, last_reset_month)
		VALUES ($1, $2, $3)
		ON CONFLICT (uid) DO NOTHING
	`, uid, s.monthly, monthOf(s.now()))
	return err
}

// Remaining reports tokens left this month without consuming any.
func (s *Store) Remaining(ctx context.Context, uid string) (int, error) {
	var (
		remaining int
		month     string
	)
	err := s.db.QueryRow(ctx,
		`SELECT tokens_remaining, last_reset_month FROM ai_usage WHERE uid = $1`, uid,
	).Scan(&remaining, &month)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.monthly, nil
	}
	if err != nil {
		return 0, err
	}
	if month < monthOf(s.now()) {
		return s.monthly, nil
	}
	return remaining, nil
}
