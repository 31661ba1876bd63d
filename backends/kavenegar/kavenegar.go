// Package kavenegar delivers security codes through the Kavenegar SMS API.
// Importing the package registers the "kavenegar" backend.
package kavenegar

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
	backends.Register("kavenegar", New)
}

const defaultAPIBase = "https://api.kavenegar.com"

// Backend sends SMS through Kavenegar's v1 REST API. Unlike the loop-based
// providers it has a native batch endpoint used by SendBulkSMS.
type Backend struct {
	apiKey  string
	sender  string
	apiBase string
	client  *http.Client
}

// New builds a Kavenegar backend from options: api_key, sender, and
// optionally api_base for testing.
func New(options map[string]string) (core.Backend, error) {
	b := &Backend{
		apiKey:  backends.Option(options, "api_key"),
		sender:  backends.Option(options, "sender"),
		apiBase: backends.Option(options, "api_base"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	if b.apiKey == "" {
		return nil, fmt.Errorf("kavenegar: api_key option is required")
	}
	if b.apiBase == "" {
		b.apiBase = defaultAPIBase
	}
	return b, nil
}

type apiResponse struct {
	Return struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"return"`
}

func (b *Backend) call(ctx context.Context, path string, form url.Values) error {
	endpoint := fmt.Sprintf("%s/v1/%s/%s", b.apiBase, b.apiKey, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("kavenegar: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("kavenegar: %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("kavenegar: %s: status %d", path, resp.StatusCode)
	}
	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("kavenegar: parse response: %w", err)
	}
	if parsed.Return.Status != 200 {
		return fmt.Errorf("kavenegar: %s: api status %d: %s", path, parsed.Return.Status, parsed.Return.Message)
	}
	return nil
}

func (b *Backend) SendSMS(ctx context.Context, number, message string) error {
	form := url.Values{
		"receptor": {number},
		"message":  {message},
	}
	if b.sender != "" {
		form.Set("sender", b.sender)
	}
	return b.call(ctx, "sms/send.json", form)
}

func (b *Backend) SendBulkSMS(ctx context.Context, numbers []string, message string) error {
	receptors, _ := json.Marshal(numbers)
	messages := make([]string, len(numbers))
	senders := make([]string, len(numbers))
	for i := range numbers {
		messages[i] = message
		senders[i] = b.sender
	}
	messageJSON, _ := json.Marshal(messages)
	senderJSON, _ := json.Marshal(senders)

	form := url.Values{
		"receptor": {string(receptors)},
		"message":  {string(messageJSON)},
		"sender":   {string(senderJSON)},
	}
	return b.call(ctx, "sms/sendarray.json", form)
}
