// Package smsir delivers security codes through the SMS.ir bulk API.
// Importing the package registers the "smsir" backend.
package smsir

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/CuriousLearner/phone-verify/backends"
	"github.com/CuriousLearner/phone-verify/core"
)

func init() {
	backends.Register("smsir", New)
}

const defaultAPIBase = "https://api.sms.ir"

// Backend sends SMS through SMS.ir. The API only exposes a bulk call, so a
// single send is a bulk of one.
type Backend struct {
	apiKey     string
	lineNumber string
	apiBase    string
	client     *http.Client
}

// New builds an SMS.ir backend from options: api_key, linenumber, and
// optionally api_base for testing.
func New(options map[string]string) (core.Backend, error) {
	b := &Backend{
		apiKey:     backends.Option(options, "api_key"),
		lineNumber: backends.Option(options, "linenumber"),
		apiBase:    backends.Option(options, "api_base"),
		client:     &http.Client{Timeout: 15 * time.Second},
	}
	if b.apiKey == "" || b.lineNumber == "" {
		return nil, fmt.Errorf("smsir: api_key and linenumber options are required")
	}
	if b.apiBase == "" {
		b.apiBase = defaultAPIBase
	}
	return b, nil
}

type sendRequest struct {
	LineNumber  string   `json:"lineNumber"`
	MessageText string   `json:"messageText"`
	Mobiles     []string `json:"mobiles"`
}

func (b *Backend) SendSMS(ctx context.Context, number, message string) error {
	return b.SendBulkSMS(ctx, []string{number}, message)
}

func (b *Backend) SendBulkSMS(ctx context.Context, numbers []string, message string) error {
	payload, err := json.Marshal(sendRequest{
		LineNumber:  b.lineNumber,
		MessageText: message,
		Mobiles:     numbers,
	})
	if err != nil {
		return fmt.Errorf("smsir: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.apiBase+"/v1/send/bulk", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("smsir: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("smsir: send sms: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("smsir: send sms: status %d", resp.StatusCode)
	}
	return nil
}
