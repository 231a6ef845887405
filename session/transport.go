package session

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-stickies/credentials"
	"github.com/rs/zerolog/log"
)

// RefreshPath is the endpoint that exchanges the session's refresh cookie for
// a new access credential. A 401 from this endpoint is terminal: it is never
// itself retried.
const RefreshPath = "/users/refresh-token"

// pendingRequest tracks one logical outbound request through the refresh
// protocol. The retried flag is single-use: a request is replayed at most
// once after a refresh, which bounds the protocol even when the refreshed
// credential is rejected again.
type pendingRequest struct {
	id      string
	req     *http.Request
	retried bool
}

// authTransport injects the stored credential into outgoing requests and,
// on an authorization failure, performs a one-shot silent refresh before
// replaying the original request. Refreshes are coalesced: only one refresh
// call is in flight at a time, and waiters reuse its result.
type authTransport struct {
	base           http.RoundTripper
	store          credentials.Store
	jar            http.CookieJar
	onUnauthorized func()

	refreshLock sync.Mutex
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	// RoundTrippers must not mutate the caller's request.
	req = req.Clone(ctx)
	pending := &pendingRequest{id: uuid.NewString(), req: req}

	attached, err := t.store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read credential: %w", err)
	}
	if attached != "" {
		req.Header.Set("Authorization", attached)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	if req.URL.Path == RefreshPath {
		resp.Body.Close()
		t.terminal(ctx)
		return nil, ErrUnauthorized
	}

	if attached == "" || pending.retried {
		// Nothing to refresh, or the one replay has been spent. Surface the
		// response unmodified.
		return resp, nil
	}
	resp.Body.Close()

	pending.retried = true
	log.Debug().Str("request_id", pending.id).Msg("Credential rejected, refreshing")

	fresh, err := t.refresh(req, attached)
	if err != nil {
		return nil, err
	}

	replay, err := t.replayable(pending)
	if err != nil {
		return nil, err
	}
	replay.Header.Set("Authorization", fresh)
	return t.base.RoundTrip(replay)
}

// refresh issues one refresh call and stores the new credential. Concurrent
// callers queue on refreshLock; whoever arrives after a successful refresh
// reuses the stored credential instead of issuing another call.
func (t *authTransport) refresh(origin *http.Request, stale string) (string, error) {
	t.refreshLock.Lock()
	defer t.refreshLock.Unlock()

	ctx := origin.Context()
	if current, err := t.store.Get(ctx); err == nil && current != "" && current != stale {
		return current, nil
	}

	refreshURL := *origin.URL
	refreshURL.Path = RefreshPath
	refreshURL.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, refreshURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	t.attachCookies(req, &refreshURL)

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.terminal(ctx)
		return "", ErrUnauthorized
	}
	defer resp.Body.Close()
	t.storeCookies(resp, &refreshURL)

	fresh := resp.Header.Get("Authorization")
	if resp.StatusCode != http.StatusOK || fresh == "" {
		t.terminal(ctx)
		return "", ErrUnauthorized
	}
	if err := t.store.Set(ctx, fresh); err != nil {
		return "", fmt.Errorf("failed to store refreshed credential: %w", err)
	}
	return fresh, nil
}

// replayable rebuilds the pending request with a fresh body for the single
// retry after refresh.
func (t *authTransport) replayable(pending *pendingRequest) (*http.Request, error) {
	replay := pending.req.Clone(pending.req.Context())
	if pending.req.GetBody != nil {
		body, err := pending.req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		replay.Body = body
	}
	return replay, nil
}

// terminal clears the credential store and notifies the owner that the
// session is over. Navigation back to the entry point is the caller's job.
func (t *authTransport) terminal(ctx context.Context) {
	if err := t.store.Clear(ctx); err != nil {
		log.Err(err).Msg("Failed to clear credential after refresh failure")
	}
	if t.onUnauthorized != nil {
		t.onUnauthorized()
	}
}

// The refresh call is issued below the http.Client, so the client's cookie
// jar never sees it. The jar is threaded through by hand to keep the refresh
// cookie flowing.
func (t *authTransport) attachCookies(req *http.Request, u *url.URL) {
	if t.jar == nil {
		return
	}
	for _, cookie := range t.jar.Cookies(u) {
		req.AddCookie(cookie)
	}
}

func (t *authTransport) storeCookies(resp *http.Response, u *url.URL) {
	if t.jar == nil {
		return
	}
	if cookies := resp.Cookies(); len(cookies) > 0 {
		t.jar.SetCookies(u, cookies)
	}
}
