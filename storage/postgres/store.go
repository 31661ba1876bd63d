// Package pgstore is a Postgres-backed RecordStore built on pgx.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CuriousLearner/phone-verify/core"
)

// Store persists verification records in the sms_verification table. The
// attempt counter uses a single UPDATE expression so concurrent verify calls
// cannot lose increments.
type Store struct {
	pg *pgxpool.Pool
}

func New(pg *pgxpool.Pool) *Store {
	return &Store{pg: pg}
}

// EnsureSchema creates the table and lookup indexes if they do not exist.
// Hosts with their own migration tooling can run the equivalent DDL instead.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pg.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sms_verification (
			id UUID PRIMARY KEY,
			phone_number TEXT NOT NULL,
			security_code TEXT NOT NULL,
			session_token TEXT NOT NULL,
			is_verified BOOLEAN NOT NULL DEFAULT FALSE,
			failed_attempts INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			modified_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS sms_verification_code_phone_idx ON sms_verification (security_code, phone_number);
		CREATE INDEX IF NOT EXISTS sms_verification_phone_idx ON sms_verification (phone_number);
		CREATE INDEX IF NOT EXISTS sms_verification_session_token_idx ON sms_verification (session_token);
	`)
	if err != nil {
		return fmt.Errorf("pgstore: ensure schema: %w", err)
	}
	return nil
}

func (s *Store) DeleteAll(ctx context.Context, phoneNumber string) error {
	_, err := s.pg.Exec(ctx, `DELETE FROM sms_verification WHERE phone_number = $1`, phoneNumber)
	if err != nil {
		return fmt.Errorf("pgstore: delete records for %s: %w", phoneNumber, err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, phoneNumber, securityCode, sessionToken string) (*core.VerificationRecord, error) {
	now := time.Now()
	rec := &core.VerificationRecord{
		ID:           uuid.NewString(),
		PhoneNumber:  phoneNumber,
		SecurityCode: securityCode,
		SessionToken: sessionToken,
		CreatedAt:    now,
		ModifiedAt:   now,
	}
	_, err := s.pg.Exec(ctx, `
		INSERT INTO sms_verification (id, phone_number, security_code, session_token, is_verified, failed_attempts, created_at, modified_at)
		VALUES ($1, $2, $3, $4, FALSE, 0, $5, $5)
	`, rec.ID, rec.PhoneNumber, rec.SecurityCode, rec.SessionToken, now)
	if err != nil {
		return nil, fmt.Errorf("pgstore: create record: %w", err)
	}
	return rec, nil
}

const selectColumns = `id, phone_number, security_code, session_token, is_verified, failed_attempts, created_at, modified_at`

func (s *Store) FindOne(ctx context.Context, securityCode, phoneNumber string) (*core.VerificationRecord, error) {
	row := s.pg.QueryRow(ctx, `
		SELECT `+selectColumns+`
		FROM sms_verification
		WHERE security_code = $1 AND phone_number = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, securityCode, phoneNumber)
	return scanRecord(row)
}

func (s *Store) FindByPhone(ctx context.Context, phoneNumber string) (*core.VerificationRecord, error) {
	row := s.pg.QueryRow(ctx, `
		SELECT `+selectColumns+`
		FROM sms_verification
		WHERE phone_number = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, phoneNumber)
	return scanRecord(row)
}

func (s *Store) MarkVerified(ctx context.Context, id string) error {
	tag, err := s.pg.Exec(ctx, `
		UPDATE sms_verification
		SET is_verified = TRUE, failed_attempts = 0, modified_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("pgstore: mark record %s verified: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pgstore: no record with id %s", id)
	}
	return nil
}

func (s *Store) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := s.pg.QueryRow(ctx, `
		UPDATE sms_verification
		SET failed_attempts = failed_attempts + 1, modified_at = now()
		WHERE id = $1
		RETURNING failed_attempts
	`, id).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("pgstore: no record with id %s", id)
	}
	if err != nil {
		return 0, fmt.Errorf("pgstore: increment attempts on %s: %w", id, err)
	}
	return attempts, nil
}

func (s *Store) DeleteCreatedBefore(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	tag, err := s.pg.Exec(ctx, `
		DELETE FROM sms_verification
		WHERE id IN (
			SELECT id FROM sms_verification
			WHERE created_at < $1
			ORDER BY created_at
			LIMIT $2
		)
	`, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("pgstore: purge stale records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanRecord(row pgx.Row) (*core.VerificationRecord, error) {
	var rec core.VerificationRecord
	err := row.Scan(
		&rec.ID, &rec.PhoneNumber, &rec.SecurityCode, &rec.SessionToken,
		&rec.IsVerified, &rec.FailedAttempts, &rec.CreatedAt, &rec.ModifiedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pgstore: scan record: %w", err)
	}
	return &rec, nil
}
