package core

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"
)

const testPhoneNumber = "+13478379634"

// testStore is a minimal in-test RecordStore that also allows rewinding
// timestamps to exercise expiration deterministically.
type testStore struct {
	mu   sync.Mutex
	recs map[string]*VerificationRecord
	seq  int
}

func newTestStore() *testStore {
	return &testStore{recs: make(map[string]*VerificationRecord)}
}

func (s *testStore) DeleteAll(ctx context.Context, phoneNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.recs {
		if rec.PhoneNumber == phoneNumber {
			delete(s.recs, id)
		}
	}
	return nil
}

func (s *testStore) Create(ctx context.Context, phoneNumber, securityCode, sessionToken string) (*VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	now := time.Now()
	rec := &VerificationRecord{
		ID:           fmt.Sprintf("rec-%d", s.seq),
		PhoneNumber:  phoneNumber,
		SecurityCode: securityCode,
		SessionToken: sessionToken,
		CreatedAt:    now,
		ModifiedAt:   now,
	}
	s.recs[rec.ID] = rec
	return rec, nil
}

func (s *testStore) FindOne(ctx context.Context, securityCode, phoneNumber string) (*VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.recs {
		if rec.SecurityCode == securityCode && rec.PhoneNumber == phoneNumber {
			dup := *rec
			return &dup, nil
		}
	}
	return nil, nil
}

func (s *testStore) FindByPhone(ctx context.Context, phoneNumber string) (*VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *VerificationRecord
	for _, rec := range s.recs {
		if rec.PhoneNumber != phoneNumber {
			continue
		}
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, nil
	}
	dup := *latest
	return &dup, nil
}

func (s *testStore) MarkVerified(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return fmt.Errorf("no record with id %s", id)
	}
	rec.IsVerified = true
	rec.FailedAttempts = 0
	rec.ModifiedAt = time.Now()
	return nil
}

func (s *testStore) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return 0, fmt.Errorf("no record with id %s", id)
	}
	rec.FailedAttempts++
	rec.ModifiedAt = time.Now()
	return rec.FailedAttempts, nil
}

func (s *testStore) DeleteCreatedBefore(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, rec := range s.recs {
		if limit > 0 && removed >= limit {
			break
		}
		if rec.CreatedAt.Before(cutoff) {
			delete(s.recs, id)
			removed++
		}
	}
	return removed, nil
}

// current returns the live record for a phone number, bypassing copies.
func (s *testStore) current(phoneNumber string) *VerificationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.recs {
		if rec.PhoneNumber == phoneNumber {
			return rec
		}
	}
	return nil
}

// rewind moves a record's creation time into the past.
func (s *testStore) rewind(id string, by time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.recs[id]; ok {
		rec.CreatedAt = rec.CreatedAt.Add(-by)
	}
}

type sentSMS struct {
	number  string
	message string
}

type stubBackend struct {
	mu   sync.Mutex
	sent []sentSMS
	err  error
}

func (b *stubBackend) SendSMS(ctx context.Context, number, message string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.sent = append(b.sent, sentSMS{number: number, message: message})
	return nil
}

func (b *stubBackend) SendBulkSMS(ctx context.Context, numbers []string, message string) error {
	for _, n := range numbers {
		if err := b.SendSMS(ctx, n, message); err != nil {
			return err
		}
	}
	return nil
}

func (b *stubBackend) lastSent() (sentSMS, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.sent) == 0 {
		return sentSMS{}, false
	}
	return b.sent[len(b.sent)-1], true
}

// fixedCodeBackend issues a predetermined security code, like the sandbox
// providers do.
type fixedCodeBackend struct {
	*stubBackend
	code string
}

func (b *fixedCodeBackend) GenerateSecurityCode() (string, bool) { return b.code, true }

// sandboxBackend additionally short-circuits verification.
type sandboxBackend struct {
	*fixedCodeBackend
}

func (b *sandboxBackend) ValidateSecurityCode(securityCode, phoneNumber, sessionToken string) (Outcome, bool) {
	return SecurityCodeValid, true
}

// hookBackend supplies its own message text.
type hookBackend struct {
	*stubBackend
}

func (b *hookBackend) GenerateMessage(appName, securityCode string) (string, bool) {
	return "CODE " + securityCode + " (" + appName + ")", true
}

func testConfig() Config {
	return Config{
		Backend:        "test",
		SecretKey:      "change-me-later",
		CodeExpiration: time.Hour,
	}
}

func newTestService(t *testing.T, cfg Config, backend Backend) (*Service, *testStore) {
	t.Helper()
	store := newTestStore()
	if backend == nil {
		backend = &stubBackend{}
	}
	svc, err := NewService(cfg, store, backend)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc, store
}

func TestRegisterAndVerifyRoundTrip(t *testing.T) {
	backend := &stubBackend{}
	svc, store := newTestService(t, testConfig(), backend)
	ctx := context.Background()

	sessionToken, err := svc.Register(ctx, testPhoneNumber)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if sessionToken == "" {
		t.Fatal("expected a non-empty session token")
	}

	rec := store.current(testPhoneNumber)
	if rec == nil {
		t.Fatal("expected a stored record")
	}
	if !regexp.MustCompile(`^\d{6}$`).MatchString(rec.SecurityCode) {
		t.Fatalf("expected a 6-digit security code, got %q", rec.SecurityCode)
	}
	if rec.SessionToken != sessionToken {
		t.Fatal("stored session token does not match the returned one")
	}
	if sms, ok := backend.lastSent(); !ok || sms.number != testPhoneNumber {
		t.Fatalf("expected an SMS dispatched to %s", testPhoneNumber)
	}

	outcome, err := svc.Verify(ctx, testPhoneNumber, rec.SecurityCode, sessionToken)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if outcome != SecurityCodeValid {
		t.Fatalf("expected SECURITY_CODE_VALID, got %s", outcome)
	}
	if got := outcome.Message(); got != "Security code is valid." {
		t.Fatalf("unexpected message %q", got)
	}

	rec = store.current(testPhoneNumber)
	if !rec.IsVerified {
		t.Fatal("expected record to be marked verified")
	}
	if rec.FailedAttempts != 0 {
		t.Fatalf("expected failed_attempts reset to 0, got %d", rec.FailedAttempts)
	}
}

func TestRegisterSupersedesPriorRecords(t *testing.T) {
	svc, store := newTestService(t, testConfig(), nil)
	ctx := context.Background()

	firstToken, err := svc.Register(ctx, testPhoneNumber)
	if err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	firstCode := store.current(testPhoneNumber).SecurityCode

	secondToken, err := svc.Register(ctx, testPhoneNumber)
	if err != nil {
		t.Fatalf("second Register failed: %v", err)
	}
	if firstToken == secondToken {
		t.Fatal("expected a fresh session token per registration")
	}

	outcome, err := svc.Verify(ctx, testPhoneNumber, firstCode, firstToken)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	// The old code may collide with the new one by chance; when it does not,
	// the superseded pair must be rejected outright.
	if firstCode != store.current(testPhoneNumber).SecurityCode && outcome != SecurityCodeInvalid {
		t.Fatalf("expected superseded code to be invalid, got %s", outcome)
	}

	secondCode := store.current(testPhoneNumber).SecurityCode
	outcome, err = svc.Verify(ctx, testPhoneNumber, secondCode, secondToken)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if outcome != SecurityCodeValid {
		t.Fatalf("expected fresh pair to verify, got %s", outcome)
	}
}

func TestVerifyOnlyOnce(t *testing.T) {
	cfg := testConfig()
	cfg.VerifyOnlyOnce = true
	svc, store := newTestService(t, cfg, nil)
	ctx := context.Background()

	token, err := svc.Register(ctx, testPhoneNumber)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	code := store.current(testPhoneNumber).SecurityCode

	if outcome, _ := svc.Verify(ctx, testPhoneNumber, code, token); outcome != SecurityCodeValid {
		t.Fatalf("expected first verify to succeed, got %s", outcome)
	}
	outcome, err := svc.Verify(ctx, testPhoneNumber, code, token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if outcome != SecurityCodeVerified {
		t.Fatalf("expected SECURITY_CODE_VERIFIED on repeat, got %s", outcome)
	}
	if got := outcome.Message(); got != "Security code is already verified" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestRepeatVerificationAllowedWithoutOnlyOnce(t *testing.T) {
	svc, store := newTestService(t, testConfig(), nil)
	ctx := context.Background()

	token, _ := svc.Register(ctx, testPhoneNumber)
	code := store.current(testPhoneNumber).SecurityCode

	for i := 0; i < 2; i++ {
		if outcome, _ := svc.Verify(ctx, testPhoneNumber, code, token); outcome != SecurityCodeValid {
			t.Fatalf("verify %d: expected success, got %s", i+1, outcome)
		}
	}
}

func TestExpiredCode(t *testing.T) {
	cfg := testConfig()
	cfg.CodeExpiration = time.Second
	svc, store := newTestService(t, cfg, nil)
	ctx := context.Background()

	token, _ := svc.Register(ctx, testPhoneNumber)
	rec := store.current(testPhoneNumber)
	store.rewind(rec.ID, 2*time.Second)

	outcome, err := svc.Verify(ctx, testPhoneNumber, rec.SecurityCode, token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if outcome != SecurityCodeExpired {
		t.Fatalf("expected SECURITY_CODE_EXPIRED, got %s", outcome)
	}
	if got := outcome.Message(); got != "Security code has expired" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestLockoutAfterMaxFailedAttempts(t *testing.T) {
	maxAttempts := 3
	cfg := testConfig()
	cfg.MaxFailedAttempts = &maxAttempts
	svc, store := newTestService(t, cfg, nil)
	ctx := context.Background()

	token, _ := svc.Register(ctx, testPhoneNumber)
	rec := store.current(testPhoneNumber)
	wrongCode := "000000"
	if wrongCode == rec.SecurityCode {
		wrongCode = "000001"
	}

	for i := 1; i <= 3; i++ {
		outcome, err := svc.Verify(ctx, testPhoneNumber, wrongCode, token)
		if err != nil {
			t.Fatalf("Verify failed: %v", err)
		}
		if outcome != SecurityCodeInvalid {
			t.Fatalf("attempt %d: expected SECURITY_CODE_INVALID, got %s", i, outcome)
		}
		if got := store.current(testPhoneNumber).FailedAttempts; got != i {
			t.Fatalf("attempt %d: expected failed_attempts=%d, got %d", i, i, got)
		}
	}

	// The correct code is refused once the counter hit the threshold.
	outcome, err := svc.Verify(ctx, testPhoneNumber, rec.SecurityCode, token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if outcome != VerificationLocked {
		t.Fatalf("expected LOCKED, got %s", outcome)
	}
	if got := outcome.Message(); got != "Too many failed verification attempts" {
		t.Fatalf("unexpected message %q", got)
	}

	// A fresh registration resets the lifecycle and must verify fine.
	token, err = svc.Register(ctx, testPhoneNumber)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	code := store.current(testPhoneNumber).SecurityCode
	if outcome, _ := svc.Verify(ctx, testPhoneNumber, code, token); outcome != SecurityCodeValid {
		t.Fatalf("expected success after re-registration, got %s", outcome)
	}
}

func TestSessionMismatchDoesNotTouchCounter(t *testing.T) {
	svc, store := newTestService(t, testConfig(), nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, testPhoneNumber)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	rec := store.current(testPhoneNumber)

	outcome, err := svc.Verify(ctx, testPhoneNumber, rec.SecurityCode, "not-the-session-token")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if outcome != SessionTokenInvalid {
		t.Fatalf("expected SESSION_TOKEN_INVALID, got %s", outcome)
	}
	if got := outcome.Message(); got != "Session Token mis-match" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := store.current(testPhoneNumber).FailedAttempts; got != 0 {
		t.Fatalf("session mismatch must not count as a failed attempt, got %d", got)
	}
}

func TestWrongCodeWithoutAnyRecord(t *testing.T) {
	svc, store := newTestService(t, testConfig(), nil)
	ctx := context.Background()

	outcome, err := svc.Verify(ctx, "+15550000000", "123456", "whatever")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if outcome != SecurityCodeInvalid {
		t.Fatalf("expected SECURITY_CODE_INVALID, got %s", outcome)
	}
	if store.current("+15550000000") != nil {
		t.Fatal("no record should exist for an unregistered number")
	}
}

func TestWrongCodeAgainstExpiredRecordDoesNotCount(t *testing.T) {
	cfg := testConfig()
	cfg.CodeExpiration = time.Second
	svc, store := newTestService(t, cfg, nil)
	ctx := context.Background()

	_, _ = svc.Register(ctx, testPhoneNumber)
	rec := store.current(testPhoneNumber)
	store.rewind(rec.ID, time.Minute)

	wrongCode := "000000"
	if wrongCode == rec.SecurityCode {
		wrongCode = "000001"
	}
	if outcome, _ := svc.Verify(ctx, testPhoneNumber, wrongCode, rec.SessionToken); outcome != SecurityCodeInvalid {
		t.Fatalf("expected SECURITY_CODE_INVALID, got %v", outcome)
	}
	if got := store.current(testPhoneNumber).FailedAttempts; got != 0 {
		t.Fatalf("expired records are not live challenges; counter should stay 0, got %d", got)
	}
}

func TestSandboxBackendShortCircuitsVerification(t *testing.T) {
	backend := &sandboxBackend{&fixedCodeBackend{stubBackend: &stubBackend{}, code: "123456"}}
	svc, store := newTestService(t, testConfig(), backend)
	ctx := context.Background()

	token, err := svc.Register(ctx, testPhoneNumber)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if got := store.current(testPhoneNumber).SecurityCode; got != "123456" {
		t.Fatalf("expected the fixed sandbox code, got %q", got)
	}

	// Any inputs verify against a sandbox backend, even with no record.
	if outcome, _ := svc.Verify(ctx, "+19998887777", "999999", token); outcome != SecurityCodeValid {
		t.Fatalf("expected sandbox verify to succeed, got %v", outcome)
	}
}

func TestDeliveryFailureDoesNotFailRegistration(t *testing.T) {
	backend := &stubBackend{err: fmt.Errorf("provider unreachable")}
	svc, store := newTestService(t, testConfig(), backend)

	token, err := svc.Register(context.Background(), testPhoneNumber)
	if err != nil {
		t.Fatalf("Register must not fail on delivery errors: %v", err)
	}
	if token == "" {
		t.Fatal("expected a session token despite delivery failure")
	}
	if store.current(testPhoneNumber) == nil {
		t.Fatal("expected the record to be persisted despite delivery failure")
	}
}

func TestMessageComposition(t *testing.T) {
	backend := &fixedCodeBackend{stubBackend: &stubBackend{}, code: "123456"}
	svc, _ := newTestService(t, testConfig(), backend)

	if _, err := svc.Register(context.Background(), testPhoneNumber); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	sms, ok := backend.lastSent()
	if !ok {
		t.Fatal("expected an SMS to be sent")
	}
	want := "Welcome to Phone Verify! Please use security code 123456 to proceed."
	if sms.message != want {
		t.Fatalf("expected %q, got %q", want, sms.message)
	}
}

func TestBackendMessageHookWins(t *testing.T) {
	backend := &hookBackend{&stubBackend{}}
	cfg := testConfig()
	cfg.AppName = "Acme"
	svc, store := newTestService(t, cfg, backend)

	if _, err := svc.Register(context.Background(), testPhoneNumber); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	code := store.current(testPhoneNumber).SecurityCode
	sms, _ := backend.lastSent()
	if want := "CODE " + code + " (Acme)"; sms.message != want {
		t.Fatalf("expected %q, got %q", want, sms.message)
	}
}

func TestPurgeStale(t *testing.T) {
	svc, store := newTestService(t, testConfig(), nil)
	ctx := context.Background()

	_, _ = svc.Register(ctx, testPhoneNumber)
	_, _ = svc.Register(ctx, "+15551230000")
	store.rewind(store.current(testPhoneNumber).ID, 48*time.Hour)

	removed, err := svc.PurgeStale(ctx, 24*time.Hour, 100)
	if err != nil {
		t.Fatalf("PurgeStale failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 record purged, got %d", removed)
	}
	if store.current(testPhoneNumber) != nil {
		t.Fatal("expected the stale record to be gone")
	}
	if store.current("+15551230000") == nil {
		t.Fatal("expected the fresh record to survive")
	}
}
