package core

import "context"

// Backend is the outbound SMS transport used to deliver security codes.
// Implementations wrap one vendor; sandbox variants skip real dispatch.
type Backend interface {
	// SendSMS delivers one message to one number.
	SendSMS(ctx context.Context, number, message string) error
	// SendBulkSMS delivers the same message to several numbers. Providers
	// without a native batch call loop over SendSMS.
	SendBulkSMS(ctx context.Context, numbers []string, message string) error
}

// SecurityCodeGenerator is an optional backend capability that overrides code
// generation. Sandbox backends return a fixed, preconfigured code so review
// environments can verify without receiving an SMS.
type SecurityCodeGenerator interface {
	GenerateSecurityCode() (code string, ok bool)
}

// SecurityCodeValidator is an optional backend capability that short-circuits
// verification. Sandbox backends report SecurityCodeValid unconditionally.
type SecurityCodeValidator interface {
	ValidateSecurityCode(securityCode, phoneNumber, sessionToken string) (Outcome, bool)
}

// MessageGenerator is an optional backend capability consulted before the
// configured template when composing the SMS text. Returning ok=false falls
// back to the template.
type MessageGenerator interface {
	GenerateMessage(appName, securityCode string) (message string, ok bool)
}
