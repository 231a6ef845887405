// Package session wraps every outbound call to the Stickies backend. It
// injects the bearer credential on the way out and, when the backend rejects
// it, silently refreshes the session once and replays the request, so callers
// only ever see a terminal failure.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/jrsteele09/go-stickies/credentials"
	"github.com/pkg/errors"
)

const (
	loginPath          = "/users/login"
	logoutPath         = "/users/logout"
	signUpPath         = "/users/signup"
	checkEmailPath     = "/users/checkEmail"
	forgotPasswordPath = "/users/forgotPassword"
	resetPasswordPath  = "/users/resetPassword"
)

const requestTimeout = 30 * time.Second

// Status distinguishes the two outcomes an API operation can report.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusError   Status = "ERROR"
)

// Result is the structured outcome returned by every API operation. Expected
// failures (bad credentials, rejected codes, backend refusals) come back as
// a Result with StatusError, never as a Go error.
type Result struct {
	Status  Status
	Message string
}

func success(message string) Result { return Result{Status: StatusSuccess, Message: message} }
func failure(message string) Result { return Result{Status: StatusError, Message: message} }

// Client is the session-aware API client. All Stickies endpoints, including
// the notes CRUD surface, go through it.
type Client struct {
	baseURL   string
	store     credentials.Store
	transport *authTransport
	http      *http.Client
}

// Option modifies a Client during construction.
type Option func(*Client)

// WithBaseTransport replaces the underlying round tripper (primarily for testing).
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport.base = rt
	}
}

// WithUnauthorizedHook registers a callback invoked when the session becomes
// terminally unauthorized (refresh failed and the credential was cleared).
func WithUnauthorizedHook(hook func()) Option {
	return func(c *Client) {
		c.transport.onUnauthorized = hook
	}
}

// New creates a session client for the backend at baseURL. The credential
// store is exclusively owned by the returned client.
func New(baseURL string, store credentials.Store, options ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("[session.New] baseURL is required")
	}
	if store == nil {
		return nil, errors.New("[session.New] credential store is required")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "[session.New] cookie jar")
	}

	client := &Client{
		baseURL: baseURL,
		store:   store,
		transport: &authTransport{
			base:  http.DefaultTransport,
			store: store,
			jar:   jar,
		},
	}
	for _, opt := range options {
		opt(client)
	}

	client.http = &http.Client{
		Transport: client.transport,
		Jar:       jar,
		Timeout:   requestTimeout,
	}
	return client, nil
}

// Login exchanges the primary credentials for a session. Any previously held
// credential is discarded first.
func (c *Client) Login(ctx context.Context, email, password string) (Result, error) {
	if email == "" || password == "" {
		return Result{}, errors.New("[Client.Login] email and password are required")
	}
	if err := c.store.Clear(ctx); err != nil {
		return Result{}, err
	}

	resp, err := c.call(ctx, http.MethodPost, loginPath, loginRequest{Email: email, Password: password}, nil)
	if err != nil {
		return failure("Unable to login"), nil
	}
	token := resp.Header.Get("Authorization")
	if token == "" {
		return failure("Unable to login"), nil
	}
	if err := c.store.Set(ctx, token); err != nil {
		return Result{}, err
	}
	return success("Login Successful"), nil
}

// Logout clears the credential first so the session ends locally even when
// the backend call fails.
func (c *Client) Logout(ctx context.Context) (Result, error) {
	if err := c.store.Clear(ctx); err != nil {
		return Result{}, err
	}
	if _, err := c.call(ctx, http.MethodPost, logoutPath, struct{}{}, nil); err != nil {
		return failure("Unable to logout"), nil
	}
	return success("Logout Successful"), nil
}

// SignUp completes registration with the emailed one-time passcode and, on
// success, stores the issued credential like a login would.
func (c *Client) SignUp(ctx context.Context, name, email, password, otp string) (Result, error) {
	if name == "" || email == "" || password == "" || otp == "" {
		return Result{}, errors.New("[Client.SignUp] name, email, password, and otp are required")
	}

	resp, err := c.call(ctx, http.MethodPost, signUpPath, signUpRequest{
		Name:     name,
		Email:    email,
		Password: password,
		Otp:      otp,
	}, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return failure(apiErr.Message), nil
		}
		return failure("Sign Up Unsuccessful"), nil
	}
	token := resp.Header.Get("Authorization")
	if token == "" {
		return failure("Sign Up Unsuccessful"), nil
	}
	if err := c.store.Set(ctx, token); err != nil {
		return Result{}, err
	}
	return success("User Created"), nil
}

// CheckEmail asks the backend to issue a signup passcode. A taken address is
// reported as an error so the user is sent back to login or reset.
func (c *Client) CheckEmail(ctx context.Context, email string) (Result, error) {
	if email == "" {
		return Result{}, errors.New("[Client.CheckEmail] email is required")
	}
	if _, err := c.call(ctx, http.MethodPost, checkEmailPath, emailRequest{Email: email}, nil); err != nil {
		return failure("User already exists. Please login or reset your password."), nil
	}
	return success("OTP has been sent your email."), nil
}

// ForgotPassword asks the backend to issue a reset passcode. The backend
// answers success whether or not the account exists, so neither outcome
// reveals anything about the address.
func (c *Client) ForgotPassword(ctx context.Context, email string) (Result, error) {
	if email == "" {
		return Result{}, errors.New("[Client.ForgotPassword] email is required")
	}
	if _, err := c.call(ctx, http.MethodPost, forgotPasswordPath, emailRequest{Email: email}, nil); err != nil {
		return failure("Unable to send OTP. Please try again later."), nil
	}
	return success("OTP has been sent to email on file."), nil
}

// ResetPassword sets a new password using the emailed passcode.
func (c *Client) ResetPassword(ctx context.Context, email, newPassword, otp string) (Result, error) {
	if email == "" || newPassword == "" || otp == "" {
		return Result{}, errors.New("[Client.ResetPassword] email, newPassword, and otp are required")
	}
	if _, err := c.call(ctx, http.MethodPost, resetPasswordPath, resetRequest{
		Email:       email,
		NewPassword: newPassword,
		Otp:         otp,
	}, nil); err != nil {
		return failure("Unable to reset password"), nil
	}
	return success("Password has been reset"), nil
}

// Get issues an authenticated GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	_, err := c.call(ctx, http.MethodGet, path, nil, out)
	return err
}

// Post issues an authenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	_, err := c.call(ctx, http.MethodPost, path, body, out)
	return err
}

// Patch issues an authenticated PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	_, err := c.call(ctx, http.MethodPatch, path, body, out)
	return err
}

// Delete issues an authenticated DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	_, err := c.call(ctx, http.MethodDelete, path, nil, out)
	return err
}

// call performs one request/response exchange. Non-2xx statuses come back as
// an *APIError carrying the backend's message; a failed session renewal comes
// back as ErrUnauthorized via the transport.
func (c *Client) call(ctx context.Context, method, path string, body, out any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: decodeErrorMessage(resp.Body)}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp, nil
}

func decodeErrorMessage(body io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return ""
	}
	return payload.Error
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Otp      string `json:"otp"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"newPassword"`
	Otp         string `json:"otp"`
}
