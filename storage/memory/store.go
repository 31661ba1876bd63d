// Package memorystore is an in-process RecordStore. It is only safe for
// single-process deployments.
package memorystore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CuriousLearner/phone-verify/core"
)

// Store keeps verification records in a mutex-guarded map keyed by record id.
type Store struct {
	mu      sync.Mutex
	records map[string]*core.VerificationRecord
}

func New() *Store {
	return &Store{records: make(map[string]*core.VerificationRecord)}
}

func (s *Store) DeleteAll(ctx context.Context, phoneNumber string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.records {
		if rec.PhoneNumber == phoneNumber {
			delete(s.records, id)
		}
	}
	return nil
}

func (s *Store) Create(ctx context.Context, phoneNumber, securityCode, sessionToken string) (*core.VerificationRecord, error) {
	_ = ctx
	now := time.Now()
	rec := &core.VerificationRecord{
		ID:           uuid.NewString(),
		PhoneNumber:  phoneNumber,
		SecurityCode: securityCode,
		SessionToken: sessionToken,
		CreatedAt:    now,
		ModifiedAt:   now,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	return cloneRecord(rec), nil
}

func (s *Store) FindOne(ctx context.Context, securityCode, phoneNumber string) (*core.VerificationRecord, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.SecurityCode == securityCode && rec.PhoneNumber == phoneNumber {
			return cloneRecord(rec), nil
		}
	}
	return nil, nil
}

func (s *Store) FindByPhone(ctx context.Context, phoneNumber string) (*core.VerificationRecord, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *core.VerificationRecord
	for _, rec := range s.records {
		if rec.PhoneNumber != phoneNumber {
			continue
		}
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
			latest = rec
		}
	}
	return cloneRecord(latest), nil
}

func (s *Store) MarkVerified(ctx context.Context, id string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("memorystore: no record with id %s", id)
	}
	rec.IsVerified = true
	rec.FailedAttempts = 0
	rec.ModifiedAt = time.Now()
	return nil
}

func (s *Store) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return 0, fmt.Errorf("memorystore: no record with id %s", id)
	}
	rec.FailedAttempts++
	rec.ModifiedAt = time.Now()
	return rec.FailedAttempts, nil
}

func (s *Store) DeleteCreatedBefore(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, rec := range s.records {
		if limit > 0 && removed >= limit {
			break
		}
		if rec.CreatedAt.Before(cutoff) {
			delete(s.records, id)
			removed++
		}
	}
	return removed, nil
}

// cloneRecord copies before returning so callers never share memory with the
// store's internal state.
func cloneRecord(rec *core.VerificationRecord) *core.VerificationRecord {
	if rec == nil {
		return nil
	}
	dup := *rec
	return &dup
}
