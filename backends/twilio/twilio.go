// Package twilio delivers security codes through the Twilio Messages API.
// Importing the package registers the "twilio" and "twilio.sandbox"
// backends.
package twilio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/CuriousLearner/phone-verify/backends"
	"github.com/CuriousLearner/phone-verify/core"
)

func init() {
	backends.Register("twilio", New)
	backends.Register("twilio.sandbox", NewSandbox)
}

const defaultAPIBase = "https://api.twilio.com"

// Backend sends SMS through Twilio's REST API with account-SID basic auth.
type Backend struct {
	sid     string
	secret  string
	from    string
	apiBase string
	client  *http.Client
}

// New builds a Twilio backend from options: sid, secret (auth token), from
// (sender number), and optionally api_base for testing.
func New(options map[string]string) (core.Backend, error) {
	b := &Backend{
		sid:     backends.Option(options, "sid"),
		secret:  backends.Option(options, "secret"),
		from:    backends.Option(options, "from"),
		apiBase: backends.Option(options, "api_base"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	if b.sid == "" || b.secret == "" || b.from == "" {
		return nil, fmt.Errorf("twilio: sid, secret and from options are required")
	}
	if b.apiBase == "" {
		b.apiBase = defaultAPIBase
	}
	return b, nil
}

func (b *Backend) SendSMS(ctx context.Context, number, message string) error {
	form := url.Values{
		"To":   {number},
		"From": {b.from},
		"Body": {message},
	}
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", b.apiBase, b.sid)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("twilio: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(b.sid, b.secret)

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("twilio: send sms to %s: %w", number, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("twilio: send sms to %s: status %d: %s", number, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (b *Backend) SendBulkSMS(ctx context.Context, numbers []string, message string) error {
	for _, number := range numbers {
		if err := b.SendSMS(ctx, number, message); err != nil {
			return err
		}
	}
	return nil
}

// SandboxBackend dispatches like the real backend but issues a fixed
// security code and accepts any verification, for review environments where
// no device receives the SMS.
type SandboxBackend struct {
	*Backend
	token string
}

// NewSandbox builds a sandbox variant; it additionally requires the
// sandbox_token option, which becomes the fixed security code.
func NewSandbox(options map[string]string) (core.Backend, error) {
	inner, err := New(options)
	if err != nil {
		return nil, err
	}
	token := backends.Option(options, "sandbox_token")
	if token == "" {
		return nil, fmt.Errorf("twilio: sandbox_token option is required for the sandbox backend")
	}
	return &SandboxBackend{Backend: inner.(*Backend), token: token}, nil
}

// GenerateSecurityCode returns the fixed sandbox token.
func (b *SandboxBackend) GenerateSecurityCode() (string, bool) { return b.token, true }

// ValidateSecurityCode unconditionally reports success.
func (b *SandboxBackend) ValidateSecurityCode(securityCode, phoneNumber, sessionToken string) (core.Outcome, bool) {
	return core.SecurityCodeValid, true
}
