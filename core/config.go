package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultMessage is the SMS text used when no template is configured.
	// {app} and {security_code} are substituted at send time.
	DefaultMessage = "Welcome to {app}! Please use security code {security_code} to proceed."

	// DefaultAppName is substituted for {app} when the host does not
	// configure an application name.
	DefaultAppName = "Phone Verify"

	// DefaultTokenLength is the number of digits in a generated security code.
	DefaultTokenLength = 6

	// DefaultMinTokenLength is the smallest security-code length a host may
	// configure. Shorter codes are trivially brute-forceable.
	DefaultMinTokenLength = 6
)

// Config carries every recognized phone-verification setting. Hosts build one
// at startup and hand it to NewService; there is no hot-reload.
type Config struct {
	// Backend is the delivery backend identifier ("twilio", "nexmo",
	// "twilio.sandbox", "console", ...). Required.
	Backend string

	// BackendOptions holds provider credentials and sender info. Keys are
	// matched case-insensitively by the providers.
	BackendOptions map[string]string

	// SecretKey signs session tokens. Required; an empty key would make
	// every session token forgeable.
	SecretKey string

	// TokenLength is the number of digits in generated security codes.
	// Defaults to DefaultTokenLength.
	TokenLength int

	// MinTokenLength is the floor enforced against TokenLength. Defaults to
	// DefaultMinTokenLength.
	MinTokenLength int

	// Message is the SMS template with {app} and {security_code}
	// placeholders. Defaults to DefaultMessage.
	Message string

	// AppName is substituted for {app} in the message template.
	AppName string

	// CodeExpiration is how long a security code stays valid after creation.
	// Required. Expiration is computed from the record's creation time,
	// never stored.
	CodeExpiration time.Duration

	// VerifyOnlyOnce rejects repeat verification of an already-verified
	// record when true.
	VerifyOnlyOnce bool

	// MaxFailedAttempts locks a record once its failed-attempt counter
	// reaches this value. Nil disables lockout.
	MaxFailedAttempts *int
}

func (c *Config) applyDefaults() {
	if c.TokenLength == 0 {
		c.TokenLength = DefaultTokenLength
	}
	if c.MinTokenLength == 0 {
		c.MinTokenLength = DefaultMinTokenLength
	}
	if c.Message == "" {
		c.Message = DefaultMessage
	}
	if c.AppName == "" {
		c.AppName = DefaultAppName
	}
}

// validate reports every missing setting at once so operators can fix their
// configuration in a single pass.
func (c Config) validate() error {
	var missing []string
	if strings.TrimSpace(c.Backend) == "" {
		missing = append(missing, "BACKEND")
	}
	if c.SecretKey == "" {
		missing = append(missing, "SECRET_KEY")
	}
	if c.CodeExpiration <= 0 {
		missing = append(missing, "SECURITY_CODE_EXPIRATION_TIME")
	}
	if len(missing) > 0 {
		return fmt.Errorf("phoneverify: missing required settings: %s", strings.Join(missing, ", "))
	}
	if c.TokenLength < c.MinTokenLength {
		return fmt.Errorf("phoneverify: TOKEN_LENGTH %d is below the minimum of %d", c.TokenLength, c.MinTokenLength)
	}
	return nil
}
