// Package otp tracks a one-time-passcode challenge for a single auth flow:
// how many codes have been issued, how long the current one has left, and
// whether the retry ceiling has been hit. The state machine lives here so it
// can be tested without any rendering or transport layer.
package otp

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-stickies/session"
	"github.com/jrsteele09/go-stickies/validate"
	"github.com/pkg/errors"
)

// State is the challenge's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateIssued
	StateVerifying
	StateAccepted
	StateRejected
	StateLocked
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateIssued:
		return "ISSUED"
	case StateVerifying:
		return "VERIFYING"
	case StateAccepted:
		return "ACCEPTED"
	case StateRejected:
		return "REJECTED"
	case StateLocked:
		return "LOCKED"
	}
	return "UNKNOWN"
}

// SendFunc asks the backend to issue a code to the user's email.
type SendFunc func(ctx context.Context) (session.Result, error)

// VerifyFunc submits the code bundled with the parent flow's payload
// (signup completion or password reset).
type VerifyFunc func(ctx context.Context) (session.Result, error)

const defaultLockMessage = "Please try again later."

// Controller is the per-flow challenge state machine. A Controller belongs to
// exactly one flow instance; toggling flows tears it down via Reset.
type Controller struct {
	length      int
	maxAttempts int
	expiry      time.Duration
	interval    time.Duration
	lockMessage string
	onExpire    func()

	lock        sync.Mutex
	state       State
	issuedCount int
	remaining   int
	expired     bool
	code        string
	countdown   *countdown
}

// ControllerOption modifies a Controller during construction.
type ControllerOption func(*Controller)

// WithLockMessage sets the flow-specific message surfaced once the retry
// ceiling is exceeded.
func WithLockMessage(message string) ControllerOption {
	return func(c *Controller) {
		c.lockMessage = message
	}
}

// WithTickInterval sets the countdown tick interval (primarily for testing;
// defaults to one second).
func WithTickInterval(interval time.Duration) ControllerOption {
	return func(c *Controller) {
		c.interval = interval
	}
}

// WithExpireHandler registers a callback fired once when the countdown
// reaches zero.
func WithExpireHandler(handler func()) ControllerOption {
	return func(c *Controller) {
		c.onExpire = handler
	}
}

// NewController creates a challenge controller for codes of the given length,
// allowing maxAttempts issuances, each valid for expiry.
func NewController(length, maxAttempts int, expiry time.Duration, options ...ControllerOption) (*Controller, error) {
	if length <= 0 {
		return nil, errors.New("[otp.NewController] length must be positive")
	}
	if maxAttempts <= 0 {
		return nil, errors.New("[otp.NewController] maxAttempts must be positive")
	}
	if expiry <= 0 {
		return nil, errors.New("[otp.NewController] expiry must be positive")
	}

	controller := &Controller{
		length:      length,
		maxAttempts: maxAttempts,
		expiry:      expiry,
		interval:    time.Second,
		lockMessage: defaultLockMessage,
	}
	for _, opt := range options {
		opt(controller)
	}
	return controller, nil
}

// RequestCode validates the email locally, enforces the issuance ceiling
// without touching the network, and only then calls the issuance endpoint.
// On success the countdown restarts and any previously entered code is
// discarded.
func (c *Controller) RequestCode(ctx context.Context, email string, send SendFunc) (session.Result, error) {
	if send == nil {
		return session.Result{}, errors.New("[Controller.RequestCode] send is required")
	}

	c.lock.Lock()
	if c.state == StateLocked || c.issuedCount >= c.maxAttempts {
		c.state = StateLocked
		message := c.lockMessage
		c.lock.Unlock()
		return session.Result{Status: session.StatusError, Message: message}, nil
	}
	c.lock.Unlock()

	if !validate.Email(email) {
		return session.Result{Status: session.StatusError, Message: validate.ReasonEmailInvalid.Message()}, nil
	}

	result, err := send(ctx)
	if err != nil {
		return session.Result{}, err
	}
	if result.Status != session.StatusSuccess {
		// Issuance failed server-side; surface the endpoint's message without
		// consuming an attempt.
		return result, nil
	}

	c.lock.Lock()
	c.issuedCount++
	c.state = StateIssued
	c.code = ""
	c.expired = false
	c.remaining = int(c.expiry / time.Second)
	c.stopCountdownLocked()
	c.countdown = startCountdown(c.interval, c.OnTick)
	c.lock.Unlock()

	return result, nil
}

// SubmitCode re-validates the code length and challenge state, then calls the
// verification endpoint. A rejected code consumes an attempt; exceeding the
// ceiling locks the challenge for good.
func (c *Controller) SubmitCode(ctx context.Context, code string, verify VerifyFunc) (session.Result, error) {
	if verify == nil {
		return session.Result{}, errors.New("[Controller.SubmitCode] verify is required")
	}

	c.lock.Lock()
	switch {
	case c.state == StateLocked || c.issuedCount > c.maxAttempts:
		c.state = StateLocked
		message := c.lockMessage
		c.lock.Unlock()
		return session.Result{Status: session.StatusError, Message: message}, nil
	case c.state != StateIssued && c.state != StateRejected:
		c.lock.Unlock()
		return session.Result{Status: session.StatusError, Message: validate.ReasonOtpInvalid.Message()}, nil
	case c.expired || c.remaining <= 0:
		c.lock.Unlock()
		return session.Result{Status: session.StatusError, Message: validate.ReasonOtpExpired.Message()}, nil
	case len(code) != c.length:
		c.lock.Unlock()
		return session.Result{Status: session.StatusError, Message: validate.ReasonOtpInvalid.Message()}, nil
	}
	c.state = StateVerifying
	c.code = code
	c.lock.Unlock()

	result, err := verify(ctx)

	c.lock.Lock()
	defer c.lock.Unlock()
	if err != nil {
		c.state = StateIssued
		return session.Result{}, err
	}
	if result.Status == session.StatusSuccess {
		c.state = StateAccepted
		c.stopCountdownLocked()
		return result, nil
	}

	c.issuedCount++
	if c.issuedCount > c.maxAttempts {
		c.state = StateLocked
		return session.Result{Status: session.StatusError, Message: c.lockMessage}, nil
	}
	c.state = StateRejected
	return session.Result{Status: session.StatusError, Message: validate.ReasonOtpInvalid.Message()}, nil
}

// OnTick advances the expiry countdown by one second. It reports true when
// the countdown is finished and the ticker should stop. When the remaining
// time reaches zero the code entered so far is invalidated and the expire
// handler fires.
func (c *Controller) OnTick() bool {
	c.lock.Lock()
	switch c.state {
	case StateIssued, StateVerifying, StateRejected:
	default:
		c.lock.Unlock()
		return true
	}
	c.remaining--
	if c.remaining > 0 {
		c.lock.Unlock()
		return false
	}
	c.remaining = 0
	c.expired = true
	handler := c.onExpire
	c.lock.Unlock()

	if handler != nil {
		handler()
	}
	return true
}

// Reset cancels the countdown and returns the controller to idle. Called when
// the owning flow is toggled away or torn down; a fresh challenge starts from
// scratch.
func (c *Controller) Reset() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.stopCountdownLocked()
	c.state = StateIdle
	c.issuedCount = 0
	c.remaining = 0
	c.expired = false
	c.code = ""
}

// State returns the challenge's current lifecycle state.
func (c *Controller) State() State {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.state
}

// IssuedCount returns how many attempts have been consumed.
func (c *Controller) IssuedCount() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.issuedCount
}

// Remaining returns the seconds left before the current code expires.
func (c *Controller) Remaining() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.remaining
}

// Code returns the most recently submitted code.
func (c *Controller) Code() string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.code
}

func (c *Controller) stopCountdownLocked() {
	if c.countdown != nil {
		c.countdown.cancel()
		c.countdown = nil
	}
}
