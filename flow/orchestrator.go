// Package flow drives the three authentication journeys (login, signup,
// password reset) against the validator, the OTP challenge controller, and
// the session client. Flow state is an explicit machine here rather than a
// side effect of UI re-renders, so every transition is testable headlessly.
package flow

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-stickies/credentials"
	"github.com/jrsteele09/go-stickies/otp"
	"github.com/jrsteele09/go-stickies/session"
	"github.com/jrsteele09/go-stickies/validate"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// FlowState names the active authentication journey. Exactly one is active
// at a time.
type FlowState int

const (
	StateLogin FlowState = iota
	StateSignup
	StateReset
)

func (s FlowState) String() string {
	switch s {
	case StateLogin:
		return "LOGIN"
	case StateSignup:
		return "SIGNUP"
	case StateReset:
		return "RESET"
	}
	return "UNKNOWN"
}

// Outcome tells the caller where to navigate after a flow submission.
type Outcome int

const (
	// OutcomeStay keeps the user on the current form; a message explains why.
	OutcomeStay Outcome = iota
	// OutcomeEnterApplication means authentication succeeded.
	OutcomeEnterApplication
	// OutcomeBackToLogin follows a successful password reset.
	OutcomeBackToLogin
)

const (
	signupLockMessage = "Sign Up unsuccessful. Please try again later."
	resetLockMessage  = "Password Reset unsuccessful. Please try again later."
	resetDoneMessage  = "Password Reset Successful. Please Login with your new password."
)

// Orchestrator owns the flow state machine for one session.
type Orchestrator struct {
	api          *session.Client
	sessionCtx   *SessionContext
	otpLength    int
	otpAttempts  int
	otpExpiry    time.Duration
	tickInterval time.Duration

	lock      sync.Mutex
	active    FlowState
	challenge *otp.Controller
	errorMsg  string
	infoMsg   string
	busy      bool
}

// OrchestratorOption modifies an Orchestrator during construction.
type OrchestratorOption func(*Orchestrator)

// WithOtpPolicy sets the code length, issuance ceiling, and code lifetime.
func WithOtpPolicy(length, maxAttempts int, expiry time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.otpLength = length
		o.otpAttempts = maxAttempts
		o.otpExpiry = expiry
	}
}

// WithTickInterval sets the countdown tick interval (primarily for testing).
func WithTickInterval(interval time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.tickInterval = interval
	}
}

// NewOrchestrator creates an orchestrator starting on the login flow.
func NewOrchestrator(api *session.Client, sessionCtx *SessionContext, options ...OrchestratorOption) (*Orchestrator, error) {
	if api == nil {
		return nil, errors.New("[NewOrchestrator] session client is required")
	}
	if sessionCtx == nil {
		return nil, errors.New("[NewOrchestrator] session context is required")
	}

	orchestrator := &Orchestrator{
		api:          api,
		sessionCtx:   sessionCtx,
		otpLength:    4,
		otpAttempts:  4,
		otpExpiry:    600 * time.Second,
		tickInterval: time.Second,
		active:       StateLogin,
	}
	for _, opt := range options {
		opt(orchestrator)
	}
	if orchestrator.otpLength <= 0 || orchestrator.otpAttempts <= 0 || orchestrator.otpExpiry <= 0 {
		return nil, errors.New("[NewOrchestrator] otp policy values must be positive")
	}
	return orchestrator, nil
}

// Toggle switches the active flow. The previous flow's challenge state and
// messages are discarded; no two flows are ever active at once.
func (o *Orchestrator) Toggle(state FlowState) {
	o.lock.Lock()
	defer o.lock.Unlock()
	if state == o.active {
		return
	}
	o.active = state
	o.errorMsg = ""
	o.infoMsg = ""
	o.resetChallengeLocked(state)
}

func (o *Orchestrator) resetChallengeLocked(state FlowState) {
	if o.challenge != nil {
		o.challenge.Reset()
		o.challenge = nil
	}

	var lockMessage string
	switch state {
	case StateSignup:
		lockMessage = signupLockMessage
	case StateReset:
		lockMessage = resetLockMessage
	default:
		return
	}

	// Policy values were validated in NewOrchestrator.
	o.challenge, _ = otp.NewController(o.otpLength, o.otpAttempts, o.otpExpiry,
		otp.WithLockMessage(lockMessage),
		otp.WithTickInterval(o.tickInterval),
		otp.WithExpireHandler(func() {
			o.setError(validate.ReasonOtpExpired.Message())
		}),
	)
}

// Login validates locally first: a bad email or password never reaches the
// network. On success the scrubbed profile is persisted and the caller
// transitions into the application area.
func (o *Orchestrator) Login(ctx context.Context, email, password string) (Outcome, error) {
	if !o.begin() {
		return OutcomeStay, nil
	}
	defer o.end()
	o.clearMessages()

	if !validate.Email(email) {
		o.setError(validate.ReasonEmailInvalid.Message())
		return OutcomeStay, nil
	}
	if !validate.Password(password) {
		o.setError(validate.ReasonPasswordInvalid.Message())
		return OutcomeStay, nil
	}

	result, err := o.api.Login(ctx, email, password)
	if err != nil {
		return OutcomeStay, err
	}
	if result.Status != session.StatusSuccess {
		o.setError(validate.ReasonLoginFailed.Message())
		return OutcomeStay, nil
	}

	o.enterApplication(credentials.Profile{Email: email})
	return OutcomeEnterApplication, nil
}

// RequestCode asks the active flow's issuance endpoint for a passcode. For
// signup the backend rejects an already-registered address; for reset the
// response never reveals whether the account exists.
func (o *Orchestrator) RequestCode(ctx context.Context, email string) (session.Result, error) {
	o.lock.Lock()
	state := o.active
	challenge := o.challenge
	o.lock.Unlock()
	if challenge == nil {
		return session.Result{}, errors.New("[Orchestrator.RequestCode] no code-bearing flow is active")
	}

	if !o.begin() {
		return session.Result{}, nil
	}
	defer o.end()
	o.clearMessages()

	resend := challenge.IssuedCount() > 0

	var send otp.SendFunc
	switch state {
	case StateSignup:
		send = func(ctx context.Context) (session.Result, error) {
			return o.api.CheckEmail(ctx, email)
		}
	case StateReset:
		send = func(ctx context.Context) (session.Result, error) {
			return o.api.ForgotPassword(ctx, email)
		}
	}

	result, err := challenge.RequestCode(ctx, email, send)
	if err != nil {
		return session.Result{}, err
	}
	if result.Status != session.StatusSuccess {
		o.setError(result.Message)
		return result, nil
	}

	if state == StateReset {
		prefix := "sent"
		if resend {
			prefix = "resent"
		}
		o.setInfo("If your email is assigned to an account, a 4 digit One Time Password has been " + prefix + " to your email address.")
	} else {
		o.setInfo(result.Message)
	}
	return result, nil
}

// SignUp submits the combined signup payload once name, email, password, and
// code all pass locally. Success behaves like a login success.
func (o *Orchestrator) SignUp(ctx context.Context, name, email, password, code string) (Outcome, error) {
	o.lock.Lock()
	state := o.active
	challenge := o.challenge
	o.lock.Unlock()
	if state != StateSignup || challenge == nil {
		return OutcomeStay, errors.New("[Orchestrator.SignUp] signup flow is not active")
	}

	if !o.begin() {
		return OutcomeStay, nil
	}
	defer o.end()
	o.clearMessages()

	if !validate.Name(name) {
		o.setError(validate.ReasonNameInvalid.Message())
		return OutcomeStay, nil
	}
	if !validate.Email(email) {
		o.setError(validate.ReasonEmailInvalid.Message())
		return OutcomeStay, nil
	}
	if !validate.Password(password) {
		o.setError(validate.ReasonPasswordInvalid.Message())
		return OutcomeStay, nil
	}

	result, err := challenge.SubmitCode(ctx, code, func(ctx context.Context) (session.Result, error) {
		return o.api.SignUp(ctx, name, email, password, code)
	})
	if err != nil {
		return OutcomeStay, err
	}
	if result.Status != session.StatusSuccess {
		o.setError(result.Message)
		return OutcomeStay, nil
	}

	o.enterApplication(credentials.Profile{Name: name, Email: email})
	return OutcomeEnterApplication, nil
}

// ResetPassword submits the new password with the passcode. On success the
// flow returns to login with an informational message rather than entering
// the application.
func (o *Orchestrator) ResetPassword(ctx context.Context, email, newPassword, code string) (Outcome, error) {
	o.lock.Lock()
	state := o.active
	challenge := o.challenge
	o.lock.Unlock()
	if state != StateReset || challenge == nil {
		return OutcomeStay, errors.New("[Orchestrator.ResetPassword] reset flow is not active")
	}

	if !o.begin() {
		return OutcomeStay, nil
	}
	defer o.end()
	o.clearMessages()

	if !validate.Email(email) {
		o.setError(validate.ReasonEmailInvalid.Message())
		return OutcomeStay, nil
	}
	if !validate.Password(newPassword) {
		o.setError(validate.ReasonPasswordInvalid.Message())
		return OutcomeStay, nil
	}

	result, err := challenge.SubmitCode(ctx, code, func(ctx context.Context) (session.Result, error) {
		return o.api.ResetPassword(ctx, email, newPassword, code)
	})
	if err != nil {
		return OutcomeStay, err
	}
	if result.Status != session.StatusSuccess {
		o.setError(result.Message)
		return OutcomeStay, nil
	}

	o.lock.Lock()
	o.active = StateLogin
	o.resetChallengeLocked(StateLogin)
	o.lock.Unlock()
	o.setInfo(resetDoneMessage)
	return OutcomeBackToLogin, nil
}

// Logout ends the session and tears down the session context.
func (o *Orchestrator) Logout(ctx context.Context) (session.Result, error) {
	profile, _ := o.sessionCtx.Profiles.GetProfile()

	result, err := o.api.Logout(ctx)
	if err != nil {
		return session.Result{}, err
	}

	o.sessionCtx.Teardown()
	if o.sessionCtx.Events != nil {
		if pubErr := o.sessionCtx.Events.PublishLogout(profile.Email); pubErr != nil {
			log.Err(pubErr).Msg("Failed to publish logout event")
		}
	}
	return result, nil
}

func (o *Orchestrator) enterApplication(profile credentials.Profile) {
	// The profile type has no password field; anything sensitive stays out of
	// the stored copy.
	o.sessionCtx.Profiles.SetProfile(profile)
	if o.sessionCtx.Events != nil {
		if err := o.sessionCtx.Events.PublishLogin(profile.Email); err != nil {
			log.Err(err).Msg("Failed to publish login event")
		}
	}
	o.clearMessages()
}

// ActiveFlow returns the flow currently shown to the user.
func (o *Orchestrator) ActiveFlow() FlowState {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.active
}

// Challenge exposes the active flow's OTP controller for countdown display.
// Nil while the login flow is active.
func (o *Orchestrator) Challenge() *otp.Controller {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.challenge
}

// ErrorMessage returns the current error text, empty when none.
func (o *Orchestrator) ErrorMessage() string {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.errorMsg
}

// InfoMessage returns the current informational text, empty when none.
func (o *Orchestrator) InfoMessage() string {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.infoMsg
}

// begin marks the orchestrator busy for the duration of a network-bound
// action. A second submission while busy is dropped, so a double-click never
// issues two sends or two logins.
func (o *Orchestrator) begin() bool {
	o.lock.Lock()
	defer o.lock.Unlock()
	if o.busy {
		return false
	}
	o.busy = true
	return true
}

func (o *Orchestrator) end() {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.busy = false
}

func (o *Orchestrator) setError(message string) {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.errorMsg = message
	o.infoMsg = ""
}

func (o *Orchestrator) setInfo(message string) {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.infoMsg = message
	o.errorMsg = ""
}

func (o *Orchestrator) clearMessages() {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.errorMsg = ""
	o.infoMsg = ""
}
