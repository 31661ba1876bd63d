package verifyhttp

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
)

var reE164 = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

func decodeJSON(r *http.Request, dst any) error {
	if r == nil || r.Body == nil {
		return errors.New("missing_body")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// Reject trailing garbage.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid_json")
	}
	return nil
}

type errResp struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, code string) {
	writeJSON(w, http.StatusBadRequest, errResp{Error: code})
}

func serverErr(w http.ResponseWriter, code string) {
	writeJSON(w, http.StatusInternalServerError, errResp{Error: code})
}
