// Package verifyhttp exposes the two verification operations over net/http.
// Payload shape checking and route wiring live here; all lifecycle logic
// stays in core.
package verifyhttp

import (
	"net/http"

	"github.com/CuriousLearner/phone-verify/core"
)

// Service adapts a core.Service to HTTP handlers.
type Service struct {
	svc *core.Service
}

func NewService(svc *core.Service) *Service {
	return &Service{svc: svc}
}

// Routes registers the verification endpoints on the mux.
func (s *Service) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /phone/register", s.handleRegisterPOST)
	mux.HandleFunc("POST /phone/verify", s.handleVerifyPOST)
}
