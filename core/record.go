package core

import (
	"context"
	"time"
)

// VerificationRecord is one outstanding (or historical) verification attempt
// for a phone number. At most one record per phone number is relied upon at a
// time: a new registration supersedes all earlier records for that number.
type VerificationRecord struct {
	ID             string
	PhoneNumber    string
	SecurityCode   string
	SessionToken   string
	IsVerified     bool
	FailedAttempts int
	CreatedAt      time.Time
	ModifiedAt     time.Time
}

// RecordStore is the persistence contract consumed by the lifecycle engine.
// Implementations must honor per-record update atomicity: IncrementFailedAttempts
// is a single conditional update keyed by record id, not read-modify-write,
// because the lockout counter is a security control that must not lose
// increments under concurrent verify calls.
type RecordStore interface {
	// DeleteAll removes every record for the phone number. Idempotent.
	DeleteAll(ctx context.Context, phoneNumber string) error

	// Create persists a fresh record with a zero attempt counter.
	Create(ctx context.Context, phoneNumber, securityCode, sessionToken string) (*VerificationRecord, error)

	// FindOne returns the record matching both security code and phone
	// number, or nil when no such record exists.
	FindOne(ctx context.Context, securityCode, phoneNumber string) (*VerificationRecord, error)

	// FindByPhone returns the current record for the phone number, or nil.
	FindByPhone(ctx context.Context, phoneNumber string) (*VerificationRecord, error)

	// MarkVerified sets is_verified, resets failed_attempts to zero, and
	// bumps modified_at.
	MarkVerified(ctx context.Context, id string) error

	// IncrementFailedAttempts atomically bumps the counter and returns the
	// new value.
	IncrementFailedAttempts(ctx context.Context, id string) (int, error)
}

// StaleRecordPurger is an optional store capability used by retention
// cleanup. Stores that expire records on their own may omit it.
type StaleRecordPurger interface {
	// DeleteCreatedBefore removes up to limit records created before cutoff
	// and reports how many were removed.
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time, limit int) (int, error)
}
