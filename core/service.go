package core

import (
	"context"
	"fmt"
	stdlog "log"
	"strings"
	"time"
)

// Service is the verification lifecycle engine. It owns code/session
// generation, the one-active-record-per-phone invariant, expiration,
// single-use enforcement, and attempt lockout. Each Register/Verify call is
// independent; the only shared state is the RecordStore, so correctness
// under concurrency relies on the store's per-record atomicity.
type Service struct {
	cfg     Config
	store   RecordStore
	backend Backend
}

// NewService validates the configuration and builds the engine. The backend
// is resolved once by the owning process and handed down; the engine never
// re-resolves it.
func NewService(cfg Config, store RecordStore, backend Backend) (*Service, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("phoneverify: record store is required")
	}
	if backend == nil {
		return nil, fmt.Errorf("phoneverify: delivery backend is required")
	}
	return &Service{cfg: cfg, store: store, backend: backend}, nil
}

// Config returns the effective configuration after defaults.
func (s *Service) Config() Config { return s.cfg }

// Register starts a fresh verification lifecycle for the phone number: prior
// records are superseded, a new code and session token are generated and
// persisted, and the code is dispatched over SMS. Delivery failures are
// logged and never fail the caller; the returned session token is valid
// regardless of whether the SMS arrived.
func (s *Service) Register(ctx context.Context, phoneNumber string) (string, error) {
	code, err := s.generateSecurityCode()
	if err != nil {
		return "", err
	}
	sessionToken, err := GenerateSessionToken(s.cfg.SecretKey, phoneNumber)
	if err != nil {
		return "", err
	}

	if err := s.store.DeleteAll(ctx, phoneNumber); err != nil {
		return "", fmt.Errorf("phoneverify: supersede records for %s: %w", phoneNumber, err)
	}
	if _, err := s.store.Create(ctx, phoneNumber, code, sessionToken); err != nil {
		return "", fmt.Errorf("phoneverify: create verification record: %w", err)
	}

	s.sendVerification(ctx, phoneNumber, code)
	return sessionToken, nil
}

// Verify evaluates a submitted code against the stored record. States are
// checked in fixed priority order; the first match wins. Only the wrong-code
// case against an identified record touches the attempt counter: a code that
// matches no record cannot increment anything, and a session-token mismatch
// is not evidence about the code space.
func (s *Service) Verify(ctx context.Context, phoneNumber, securityCode, sessionToken string) (Outcome, error) {
	if v, ok := s.backend.(SecurityCodeValidator); ok {
		if outcome, handled := v.ValidateSecurityCode(securityCode, phoneNumber, sessionToken); handled {
			return outcome, nil
		}
	}

	rec, err := s.store.FindOne(ctx, securityCode, phoneNumber)
	if err != nil {
		return SecurityCodeInvalid, fmt.Errorf("phoneverify: look up verification record: %w", err)
	}
	if rec == nil {
		// A wrong code against a live challenge still counts as a guess.
		if cur, err := s.store.FindByPhone(ctx, phoneNumber); err == nil && cur != nil && !s.expired(cur) {
			if _, err := s.store.IncrementFailedAttempts(ctx, cur.ID); err != nil {
				stdlog.Printf("[phoneverify] failed to persist attempt counter phone=%s err=%v", phoneNumber, err)
			}
		}
		return SecurityCodeInvalid, nil
	}

	if rec.SessionToken != sessionToken {
		return SessionTokenInvalid, nil
	}
	if s.cfg.MaxFailedAttempts != nil && rec.FailedAttempts >= *s.cfg.MaxFailedAttempts {
		return VerificationLocked, nil
	}
	if s.expired(rec) {
		return SecurityCodeExpired, nil
	}
	if rec.IsVerified && s.cfg.VerifyOnlyOnce {
		return SecurityCodeVerified, nil
	}

	if err := s.store.MarkVerified(ctx, rec.ID); err != nil {
		return SecurityCodeInvalid, fmt.Errorf("phoneverify: mark record verified: %w", err)
	}
	return SecurityCodeValid, nil
}

// PurgeStale removes records created before now-olderThan. It backs the
// retention job; the engine itself never deletes records outside
// supersession.
func (s *Service) PurgeStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	purger, ok := s.store.(StaleRecordPurger)
	if !ok {
		return 0, fmt.Errorf("phoneverify: record store does not support stale-record purging")
	}
	return purger.DeleteCreatedBefore(ctx, time.Now().Add(-olderThan), limit)
}

func (s *Service) expired(rec *VerificationRecord) bool {
	return time.Since(rec.CreatedAt) > s.cfg.CodeExpiration
}

func (s *Service) generateSecurityCode() (string, error) {
	if g, ok := s.backend.(SecurityCodeGenerator); ok {
		if code, ok := g.GenerateSecurityCode(); ok {
			return code, nil
		}
	}
	return GenerateSecurityCode(s.cfg.TokenLength)
}

// sendVerification composes the SMS text and dispatches it. Transport errors
// are swallowed here and logged with the phone number; the device may still
// get the code through a retried provider or manual fallback, and the caller
// must not infer delivery success from the registration response.
func (s *Service) sendVerification(ctx context.Context, phoneNumber, securityCode string) {
	message := s.composeMessage(securityCode)
	if err := s.backend.SendSMS(ctx, phoneNumber, message); err != nil {
		stdlog.Printf("[phoneverify/sms] error sending verification code to %s: %v", phoneNumber, err)
	}
}

func (s *Service) composeMessage(securityCode string) string {
	if g, ok := s.backend.(MessageGenerator); ok {
		if msg, ok := g.GenerateMessage(s.cfg.AppName, securityCode); ok {
			return msg
		}
	}
	r := strings.NewReplacer("{app}", s.cfg.AppName, "{security_code}", securityCode)
	return r.Replace(s.cfg.Message)
}
