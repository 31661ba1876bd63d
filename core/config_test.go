package core

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestConfigValidateReportsAllMissingSettings(t *testing.T) {
	_, err := NewService(Config{}, newTestStore(), &stubBackend{})
	if err == nil {
		t.Fatal("expected an error for an empty config")
	}
	for _, key := range []string{"BACKEND", "SECRET_KEY", "SECURITY_CODE_EXPIRATION_TIME"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("expected error to name %s, got %q", key, err)
		}
	}
}

func TestConfigValidateTokenLengthFloor(t *testing.T) {
	cfg := testConfig()
	cfg.TokenLength = 4
	_, err := NewService(cfg, newTestStore(), &stubBackend{})
	if err == nil {
		t.Fatal("expected an error for a 4-digit token length")
	}
	if !strings.Contains(err.Error(), "TOKEN_LENGTH") {
		t.Fatalf("expected error to name TOKEN_LENGTH, got %q", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	svc, _ := newTestService(t, testConfig(), nil)
	cfg := svc.Config()
	if cfg.TokenLength != DefaultTokenLength {
		t.Fatalf("expected token length %d, got %d", DefaultTokenLength, cfg.TokenLength)
	}
	if cfg.Message != DefaultMessage {
		t.Fatalf("expected default message, got %q", cfg.Message)
	}
	if cfg.AppName != DefaultAppName {
		t.Fatalf("expected default app name, got %q", cfg.AppName)
	}
	if cfg.MaxFailedAttempts != nil {
		t.Fatal("lockout must be disabled by default")
	}
}

func TestConfigLongerTokenLengthAllowed(t *testing.T) {
	cfg := testConfig()
	cfg.TokenLength = 8
	svc, store := newTestService(t, cfg, nil)

	if _, err := svc.Register(context.Background(), testPhoneNumber); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if got := store.current(testPhoneNumber).SecurityCode; len(got) != 8 {
		t.Fatalf("expected an 8-digit code, got %q", got)
	}
}

func TestConfigRejectsNilStoreAndBackend(t *testing.T) {
	if _, err := NewService(testConfig(), nil, &stubBackend{}); err == nil {
		t.Fatal("expected an error for a nil store")
	}
	if _, err := NewService(testConfig(), newTestStore(), nil); err == nil {
		t.Fatal("expected an error for a nil backend")
	}
}

func TestConfigExpirationRequired(t *testing.T) {
	cfg := testConfig()
	cfg.CodeExpiration = -time.Minute
	if _, err := NewService(cfg, newTestStore(), &stubBackend{}); err == nil {
		t.Fatal("expected an error for a non-positive expiration")
	}
}
