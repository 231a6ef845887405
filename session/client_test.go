package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jrsteele09/go-stickies/credentials"
	"github.com/jrsteele09/go-stickies/session"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a minimal Stickies API: /notes accepts only the current
// token, and the refresh endpoint hands out a fresh one (or refuses).
type fakeBackend struct {
	lock          sync.Mutex
	validToken    string
	refreshTo     string // token issued by a successful refresh; "" refuses
	stubborn      bool   // when set, /notes keeps rejecting even refreshed tokens
	notesCalls    int
	refreshCalls  int
	loginCalls    int
	signUpPayload map[string]string
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/notes", func(w http.ResponseWriter, r *http.Request) {
		b.lock.Lock()
		b.notesCalls++
		valid := b.validToken
		b.lock.Unlock()

		if r.Header.Get("Authorization") != valid {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]string{{"title": "hello"}})
	})
	mux.HandleFunc(session.RefreshPath, func(w http.ResponseWriter, r *http.Request) {
		b.lock.Lock()
		b.refreshCalls++
		fresh := b.refreshTo
		if fresh != "" && !b.stubborn {
			b.validToken = fresh
		}
		b.lock.Unlock()

		if fresh == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Authorization", fresh)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/users/login", func(w http.ResponseWriter, r *http.Request) {
		b.lock.Lock()
		b.loginCalls++
		valid := b.validToken
		b.lock.Unlock()
		w.Header().Set("Authorization", valid)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/users/signup", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		b.lock.Lock()
		b.signUpPayload = payload
		b.lock.Unlock()
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid otp"})
	})
	mux.HandleFunc("/users/checkEmail", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "User already exists"})
	})
	mux.HandleFunc("/users/forgotPassword", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func newClient(t *testing.T, backend *fakeBackend, options ...session.Option) (*session.Client, *credentials.MemoryStore) {
	t.Helper()

	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	store := credentials.NewMemoryStore()
	client, err := session.New(srv.URL, store, options...)
	require.NoError(t, err)
	return client, store
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("stores the issued credential", func(t *testing.T) {
		backend := &fakeBackend{validToken: "Bearer token-1"}
		client, store := newClient(t, backend)

		result, err := client.Login(ctx, "user@example.com", "Password123$")
		require.NoError(t, err)
		require.Equal(t, session.StatusSuccess, result.Status)
		require.Equal(t, "Login Successful", result.Message)
		require.Equal(t, 1, backend.loginCalls)

		credential, err := store.Get(ctx)
		require.NoError(t, err)
		require.Equal(t, "Bearer token-1", credential)
	})

	t.Run("missing fields are a programmer error", func(t *testing.T) {
		client, _ := newClient(t, &fakeBackend{})

		_, err := client.Login(ctx, "", "Password123$")
		require.Error(t, err)
		_, err = client.Login(ctx, "user@example.com", "")
		require.Error(t, err)
	})
}

func TestRefreshProtocol(t *testing.T) {
	ctx := context.Background()

	t.Run("rejected credential is refreshed and the request replayed exactly once", func(t *testing.T) {
		backend := &fakeBackend{validToken: "Bearer fresh", refreshTo: "Bearer fresh"}
		client, store := newClient(t, backend)
		require.NoError(t, store.Set(ctx, "Bearer stale"))

		var out []map[string]string
		err := client.Get(ctx, "/notes", &out)
		require.NoError(t, err)
		require.Len(t, out, 1)

		require.Equal(t, 2, backend.notesCalls, "original request plus one replay")
		require.Equal(t, 1, backend.refreshCalls)

		credential, err := store.Get(ctx)
		require.NoError(t, err)
		require.Equal(t, "Bearer fresh", credential)
	})

	t.Run("refresh failure clears the store and surfaces the redirect error", func(t *testing.T) {
		backend := &fakeBackend{validToken: "Bearer fresh", refreshTo: ""}
		var expired atomic.Bool
		client, store := newClient(t, backend, session.WithUnauthorizedHook(func() {
			expired.Store(true)
		}))
		require.NoError(t, store.Set(ctx, "Bearer stale"))

		err := client.Get(ctx, "/notes", nil)
		require.Error(t, err)
		require.True(t, errors.Is(err, session.ErrUnauthorized))
		require.True(t, expired.Load())

		credential, err := store.Get(ctx)
		require.NoError(t, err)
		require.Empty(t, credential)
	})

	t.Run("401 from the refresh endpoint itself is terminal", func(t *testing.T) {
		backend := &fakeBackend{refreshTo: ""}
		client, store := newClient(t, backend)
		require.NoError(t, store.Set(ctx, "Bearer stale"))

		err := client.Post(ctx, session.RefreshPath, nil, nil)
		require.Error(t, err)
		require.True(t, errors.Is(err, session.ErrUnauthorized))
		require.Equal(t, 1, backend.refreshCalls, "the failing call itself, no refresh attempt")

		credential, err := store.Get(ctx)
		require.NoError(t, err)
		require.Empty(t, credential)
	})

	t.Run("a replay rejected again is surfaced as a generic error", func(t *testing.T) {
		// The refresh succeeds but hands out a token /notes still rejects.
		backend := &fakeBackend{validToken: "Bearer never-issued", refreshTo: "Bearer also-stale", stubborn: true}
		client, store := newClient(t, backend)
		require.NoError(t, store.Set(ctx, "Bearer stale"))

		getErr := client.Get(ctx, "/notes", nil)
		require.Error(t, getErr)
		require.False(t, errors.Is(getErr, session.ErrUnauthorized))

		var apiErr *session.APIError
		require.True(t, errors.As(getErr, &apiErr))
		require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		require.Equal(t, 1, backend.refreshCalls, "at most one refresh per request")
		require.Equal(t, 2, backend.notesCalls)
	})

	t.Run("concurrent failures coalesce into a single refresh", func(t *testing.T) {
		backend := &fakeBackend{validToken: "Bearer fresh", refreshTo: "Bearer fresh"}
		client, store := newClient(t, backend)
		require.NoError(t, store.Set(ctx, "Bearer stale"))

		var wg sync.WaitGroup
		errs := make([]error, 4)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = client.Get(ctx, "/notes", nil)
			}(i)
		}
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}
		require.Equal(t, 1, backend.refreshCalls)
	})

	t.Run("no credential means no refresh attempt", func(t *testing.T) {
		backend := &fakeBackend{validToken: "Bearer fresh", refreshTo: "Bearer fresh"}
		client, _ := newClient(t, backend)

		err := client.Get(ctx, "/notes", nil)
		require.Error(t, err)
		var apiErr *session.APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		require.Equal(t, 0, backend.refreshCalls)
	})
}

func TestResultMessages(t *testing.T) {
	ctx := context.Background()

	t.Run("checkEmail reports an existing account", func(t *testing.T) {
		client, _ := newClient(t, &fakeBackend{})

		result, err := client.CheckEmail(ctx, "taken@example.com")
		require.NoError(t, err)
		require.Equal(t, session.StatusError, result.Status)
		require.Equal(t, "User already exists. Please login or reset your password.", result.Message)
	})

	t.Run("forgotPassword succeeds without revealing account existence", func(t *testing.T) {
		client, _ := newClient(t, &fakeBackend{})

		result, err := client.ForgotPassword(ctx, "whoever@example.com")
		require.NoError(t, err)
		require.Equal(t, session.StatusSuccess, result.Status)
		require.Equal(t, "OTP has been sent to email on file.", result.Message)
	})

	t.Run("signup surfaces the backend's error message", func(t *testing.T) {
		backend := &fakeBackend{}
		client, _ := newClient(t, backend)

		result, err := client.SignUp(ctx, "Jo Doe", "jo@example.com", "Password123$", "1234")
		require.NoError(t, err)
		require.Equal(t, session.StatusError, result.Status)
		require.Equal(t, "invalid otp", result.Message)
		require.Equal(t, "1234", backend.signUpPayload["otp"])
	})
}
