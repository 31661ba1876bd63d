// Package console is a delivery backend that prints messages instead of
// dispatching them, for development and test environments. Importing the
// package registers the "console" backend.
package console

import (
	"context"
	stdlog "log"

	"github.com/CuriousLearner/phone-verify/backends"
	"github.com/CuriousLearner/phone-verify/core"
)

func init() {
	backends.Register("console", New)
}

// Backend logs every message to stdout.
type Backend struct{}

func New(options map[string]string) (core.Backend, error) {
	return Backend{}, nil
}

func (Backend) SendSMS(ctx context.Context, number, message string) error {
	stdlog.Printf("[phoneverify/console] SMS to=%s body=%q", number, message)
	return nil
}

func (b Backend) SendBulkSMS(ctx context.Context, numbers []string, message string) error {
	for _, number := range numbers {
		if err := b.SendSMS(ctx, number, message); err != nil {
			return err
		}
	}
	return nil
}
