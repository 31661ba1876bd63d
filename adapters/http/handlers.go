package verifyhttp

import (
	"net/http"
	"strings"
)

func (s *Service) handleRegisterPOST(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phone_number"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid_request")
		return
	}

	phone := strings.TrimSpace(req.PhoneNumber)
	if phone == "" || !reE164.MatchString(phone) {
		badRequest(w, "invalid_phone_number")
		return
	}

	sessionToken, err := s.svc.Register(r.Context(), phone)
	if err != nil {
		serverErr(w, "registration_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_token": sessionToken})
}

func (s *Service) handleVerifyPOST(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber  string `json:"phone_number"`
		SecurityCode string `json:"security_code"`
		SessionToken string `json:"session_token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid_request")
		return
	}

	phone := strings.TrimSpace(req.PhoneNumber)
	code := strings.TrimSpace(req.SecurityCode)
	token := strings.TrimSpace(req.SessionToken)
	if phone == "" || code == "" || token == "" {
		badRequest(w, "invalid_request")
		return
	}

	outcome, err := s.svc.Verify(r.Context(), phone, code, token)
	if err != nil {
		serverErr(w, "verification_failed")
		return
	}
	if !outcome.OK() {
		badRequest(w, outcome.Message())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": outcome.Message()})
}
