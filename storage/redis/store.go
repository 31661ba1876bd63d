// Package redisstore is a Redis-backed RecordStore for multi-process
// deployments that do not want a relational database.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/CuriousLearner/phone-verify/core"
)

const (
	recordKeyPrefix = "pv:rec:"
	phoneKeyPrefix  = "pv:idx:phone:"
	codeKeyPrefix   = "pv:idx:code:"
)

// Store keeps each record as a hash plus two lookup keys: phone -> id and
// (phone, code) -> id. The attempt counter uses HIncrBy, which is atomic on
// the server, so concurrent verify calls cannot lose increments.
type Store struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func recordKey(id string) string { return recordKeyPrefix + id }
func phoneKey(phone string) string { return phoneKeyPrefix + phone }
func codeKey(phone, code string) string { return codeKeyPrefix + phone + ":" + code }

func (s *Store) DeleteAll(ctx context.Context, phoneNumber string) error {
	id, err := s.rdb.Get(ctx, phoneKey(phoneNumber)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redisstore: look up phone index: %w", err)
	}
	code, err := s.rdb.HGet(ctx, recordKey(id), "security_code").Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("redisstore: read record %s: %w", id, err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, recordKey(id))
		pipe.Del(ctx, phoneKey(phoneNumber))
		if code != "" {
			pipe.Del(ctx, codeKey(phoneNumber, code))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisstore: delete records for %s: %w", phoneNumber, err)
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
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, recordKey(rec.ID), map[string]any{
			"phone_number":    rec.PhoneNumber,
			"security_code":   rec.SecurityCode,
			"session_token":   rec.SessionToken,
			"is_verified":     0,
			"failed_attempts": 0,
			"created_at":      now.UnixNano(),
			"modified_at":     now.UnixNano(),
		})
		pipe.Set(ctx, phoneKey(phoneNumber), rec.ID, 0)
		pipe.Set(ctx, codeKey(phoneNumber, securityCode), rec.ID, 0)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redisstore: create record: %w", err)
	}
	return rec, nil
}

func (s *Store) FindOne(ctx context.Context, securityCode, phoneNumber string) (*core.VerificationRecord, error) {
	id, err := s.rdb.Get(ctx, codeKey(phoneNumber, securityCode)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: look up code index: %w", err)
	}
	return s.load(ctx, id)
}

func (s *Store) FindByPhone(ctx context.Context, phoneNumber string) (*core.VerificationRecord, error) {
	id, err := s.rdb.Get(ctx, phoneKey(phoneNumber)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: look up phone index: %w", err)
	}
	return s.load(ctx, id)
}

func (s *Store) MarkVerified(ctx context.Context, id string) error {
	exists, err := s.rdb.Exists(ctx, recordKey(id)).Result()
	if err != nil {
		return fmt.Errorf("redisstore: check record %s: %w", id, err)
	}
	if exists == 0 {
		return fmt.Errorf("redisstore: no record with id %s", id)
	}
	err = s.rdb.HSet(ctx, recordKey(id), map[string]any{
		"is_verified":     1,
		"failed_attempts": 0,
		"modified_at":     time.Now().UnixNano(),
	}).Err()
	if err != nil {
		return fmt.Errorf("redisstore: mark record %s verified: %w", id, err)
	}
	return nil
}

func (s *Store) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	exists, err := s.rdb.Exists(ctx, recordKey(id)).Result()
	if err != nil {
		return 0, fmt.Errorf("redisstore: check record %s: %w", id, err)
	}
	if exists == 0 {
		return 0, fmt.Errorf("redisstore: no record with id %s", id)
	}
	n, err := s.rdb.HIncrBy(ctx, recordKey(id), "failed_attempts", 1).Result()
	if err != nil {
		return 0, fmt.Errorf("redisstore: increment attempts on %s: %w", id, err)
	}
	_ = s.rdb.HSet(ctx, recordKey(id), "modified_at", time.Now().UnixNano()).Err()
	return int(n), nil
}

// DeleteCreatedBefore walks record keys with SCAN; it is meant for the
// low-frequency retention job, not the request path.
func (s *Store) DeleteCreatedBefore(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	removed := 0
	iter := s.rdb.Scan(ctx, 0, recordKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if limit > 0 && removed >= limit {
			break
		}
		key := iter.Val()
		rec, err := s.loadByKey(ctx, key)
		if err != nil || rec == nil {
			continue
		}
		if rec.CreatedAt.Before(cutoff) {
			_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				pipe.Del(ctx, phoneKey(rec.PhoneNumber))
				pipe.Del(ctx, codeKey(rec.PhoneNumber, rec.SecurityCode))
				return nil
			})
			if err != nil {
				return removed, fmt.Errorf("redisstore: purge record: %w", err)
			}
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redisstore: scan records: %w", err)
	}
	return removed, nil
}

func (s *Store) load(ctx context.Context, id string) (*core.VerificationRecord, error) {
	return s.loadByKey(ctx, recordKey(id))
}

func (s *Store) loadByKey(ctx context.Context, key string) (*core.VerificationRecord, error) {
	fields, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: read record %s: %w", key, err)
	}
	if len(fields) == 0 {
		// Index pointed at a record that no longer exists.
		return nil, nil
	}
	verified := fields["is_verified"] == "1"
	attempts, _ := strconv.Atoi(fields["failed_attempts"])
	createdAt, _ := strconv.ParseInt(fields["created_at"], 10, 64)
	modifiedAt, _ := strconv.ParseInt(fields["modified_at"], 10, 64)
	return &core.VerificationRecord{
		ID:             key[len(recordKeyPrefix):],
		PhoneNumber:    fields["phone_number"],
		SecurityCode:   fields["security_code"],
		SessionToken:   fields["session_token"],
		IsVerified:     verified,
		FailedAttempts: attempts,
		CreatedAt:      time.Unix(0, createdAt),
		ModifiedAt:     time.Unix(0, modifiedAt),
	}, nil
}
