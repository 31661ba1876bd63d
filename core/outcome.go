package core

// Outcome is the result of evaluating a submitted security code against the
// stored record. Policy rejections are values, not errors: only storage and
// configuration failures travel on the error channel.
type Outcome int

const (
	SecurityCodeValid Outcome = iota
	SecurityCodeInvalid
	SessionTokenInvalid
	SecurityCodeExpired
	SecurityCodeVerified
	VerificationLocked
)

// Message returns the user-facing reason for this outcome.
func (o Outcome) Message() string {
	switch o {
	case SecurityCodeValid:
		return "Security code is valid."
	case SecurityCodeInvalid:
		return "Security code is not valid"
	case SessionTokenInvalid:
		return "Session Token mis-match"
	case SecurityCodeExpired:
		return "Security code has expired"
	case SecurityCodeVerified:
		return "Security code is already verified"
	case VerificationLocked:
		return "Too many failed verification attempts"
	}
	return "Security code is not valid"
}

// OK reports whether the verification succeeded.
func (o Outcome) OK() bool { return o == SecurityCodeValid }

func (o Outcome) String() string {
	switch o {
	case SecurityCodeValid:
		return "SECURITY_CODE_VALID"
	case SecurityCodeInvalid:
		return "SECURITY_CODE_INVALID"
	case SessionTokenInvalid:
		return "SESSION_TOKEN_INVALID"
	case SecurityCodeExpired:
		return "SECURITY_CODE_EXPIRED"
	case SecurityCodeVerified:
		return "SECURITY_CODE_VERIFIED"
	case VerificationLocked:
		return "LOCKED"
	}
	return "UNKNOWN"
}
