package validate

// Reason identifies why an input or an auth attempt was rejected.
// Callers surface the matching message verbatim; no other wording is used.
type Reason string

const (
	ReasonEmailInvalid    Reason = "EMAIL_INVALID"
	ReasonPasswordInvalid Reason = "PASSWORD_INVALID"
	ReasonNameInvalid     Reason = "NAME_INVALID"
	ReasonOtpInvalid      Reason = "OTP_INVALID"
	ReasonOtpExpired      Reason = "OTP_EXPIRED"
	ReasonLoginFailed     Reason = "LOGIN_FAILED"
)

var reasonMessages = map[Reason]string{
	ReasonEmailInvalid:    "Please enter a valid email address.",
	ReasonPasswordInvalid: "Password must be at least 8 characters long and contain at least one uppercase letter, one lowercase letter, one number, and one special character.",
	ReasonNameInvalid:     "Please enter your first name, or first and last name.",
	ReasonOtpInvalid:      "Invalid code provided. Please try again.",
	ReasonOtpExpired:      "Your 4 digit code has expired. Please try again.",
	ReasonLoginFailed:     "Unable to login",
}

// Message returns the human-readable text for the reason.
func (r Reason) Message() string {
	return reasonMessages[r]
}
