// Package nexmo delivers security codes through the Vonage (Nexmo) SMS API.
// Importing the package registers the "nexmo" and "nexmo.sandbox" backends.
package nexmo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/CuriousLearner/phone-verify/backends"
	"github.com/CuriousLearner/phone-verify/core"
)

func init() {
	backends.Register("nexmo", New)
	backends.Register("nexmo.sandbox", NewSandbox)
}

const defaultAPIBase = "https://rest.nexmo.com"

// Backend sends SMS through the Nexmo /sms/json endpoint.
type Backend struct {
	key     string
	secret  string
	from    string
	apiBase string
	client  *http.Client
}

// New builds a Nexmo backend from options: key, secret, from, and optionally
// api_base for testing.
func New(options map[string]string) (core.Backend, error) {
	b := &Backend{
		key:     backends.Option(options, "key"),
		secret:  backends.Option(options, "secret"),
		from:    backends.Option(options, "from"),
		apiBase: backends.Option(options, "api_base"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	if b.key == "" || b.secret == "" || b.from == "" {
		return nil, fmt.Errorf("nexmo: key, secret and from options are required")
	}
	if b.apiBase == "" {
		b.apiBase = defaultAPIBase
	}
	return b, nil
}

// Nexmo reports per-message status inside a 200 response; "0" is success.
type sendResponse struct {
	Messages []struct {
		Status    string `json:"status"`
		ErrorText string `json:"error-text"`
	} `json:"messages"`
}

func (b *Backend) SendSMS(ctx context.Context, number, message string) error {
	form := url.Values{
		"api_key":    {b.key},
		"api_secret": {b.secret},
		"from":       {b.from},
		"to":         {number},
		"text":       {message},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.apiBase+"/sms/json", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("nexmo: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("nexmo: send sms to %s: %w", number, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("nexmo: send sms to %s: status %d", number, resp.StatusCode)
	}

	var parsed sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("nexmo: parse response: %w", err)
	}
	for _, m := range parsed.Messages {
		if m.Status != "0" {
			return fmt.Errorf("nexmo: send sms to %s: status %s: %s", number, m.Status, m.ErrorText)
		}
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

// SandboxBackend issues a fixed security code and accepts any verification.
type SandboxBackend struct {
	*Backend
	token string
}

// NewSandbox builds the sandbox variant; nexmo_sandbox_token becomes the
// fixed security code.
func NewSandbox(options map[string]string) (core.Backend, error) {
	inner, err := New(options)
	if err != nil {
		return nil, err
	}
	token := backends.Option(options, "nexmo_sandbox_token")
	if token == "" {
		return nil, fmt.Errorf("nexmo: nexmo_sandbox_token option is required for the sandbox backend")
	}
	return &SandboxBackend{Backend: inner.(*Backend), token: token}, nil
}

func (b *SandboxBackend) GenerateSecurityCode() (string, bool) { return b.token, true }

func (b *SandboxBackend) ValidateSecurityCode(securityCode, phoneNumber, sessionToken string) (core.Outcome, bool) {
	return core.SecurityCodeValid, true
}
