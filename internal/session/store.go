package session

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dgellow/wishlist-front/internal/client"
	"github.com/dgellow/wishlist-front/internal/config"
	"github.com/dgellow/wishlist-front/internal/log"
)

// Authenticator performs the remote authentication call. *client.Client
// satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*client.Response, error)
}

// AttemptRecorder receives authentication outcomes. *metrics.Collector satisfies it.
type AttemptRecorder interface {
	RecordAuthAttempt(outcome string)
}

const (
	outcomeSuccess    = "success"
	outcomeFailure    = "failure"
	outcomeSuperseded = "superseded"
)

// Option configures a Store
type Option func(*Store)

// WithCredentialRetention keeps the password of the last successful login so
// CurrentUserPassword can return it
func WithCredentialRetention(retain bool) Option {
	return func(s *Store) {
		s.retainCredential = retain
	}
}

// WithMetrics records authentication outcomes
func WithMetrics(r AttemptRecorder) Option {
	return func(s *Store) {
		s.metrics = r
	}
}

// Store is the single authoritative holder of authentication state. It is
// owned by the composition root and safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	state State

	attempts         atomic.Uint64
	retainCredential bool
	metrics          AttemptRecorder

	subsMu  sync.Mutex
	subs    map[uint64]func(State)
	nextSub uint64
}

// NewStore creates a logged-out store
func NewStore(opts ...Option) *Store {
	s := &Store{
		subs: make(map[uint64]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type authenticateResponse struct {
	Token string `json:"token"`
}

// Authenticate runs the authentication transaction against endpoint.
//
// On a 200 response carrying a token the session becomes logged in and the
// raw response is returned. Any other outcome records a failed login and
// returns ErrInvalidCredentials; the underlying cause is logged, not returned.
// Only the most recently started attempt may commit: an older attempt that
// finishes later leaves the state alone, and if it succeeded its response is
// returned together with ErrAttemptSuperseded.
func (s *Store) Authenticate(ctx context.Context, endpoint Authenticator, username, password string) (*client.Response, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, ErrInvalidInput
	}

	attempt := s.attempts.Add(1)
	log.LogDebugWithFields("session", "Authenticating", map[string]any{
		"user":    username,
		"attempt": attempt,
	})

	resp, err := endpoint.Authenticate(ctx, username, password)
	var token string
	if err == nil {
		token, err = tokenFrom(resp)
	}

	if err != nil {
		log.LogDebugWithFields("session", "Authentication failed", map[string]any{
			"user":    username,
			"attempt": attempt,
			"cause":   err.Error(),
		})
		committed := s.commit(attempt, func(st *State) {
			applyFailure(st, username)
		})
		if committed {
			s.record(outcomeFailure)
		} else {
			s.record(outcomeSuperseded)
		}
		return nil, ErrInvalidCredentials
	}

	committed := s.commit(attempt, func(st *State) {
		s.applySuccess(st, username, password, token)
	})
	if !committed {
		log.LogInfoWithFields("session", "Discarding superseded login", map[string]any{
			"user":    username,
			"attempt": attempt,
		})
		s.record(outcomeSuperseded)
		return resp, ErrAttemptSuperseded
	}

	s.record(outcomeSuccess)
	log.LogInfoWithFields("session", "Login successful", map[string]any{
		"user":    username,
		"attempt": attempt,
		"token":   log.Redact(token),
	})
	return resp, nil
}

func tokenFrom(resp *client.Response) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("no response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var body authenticateResponse
	if err := resp.JSON(&body); err != nil {
		return "", err
	}
	if body.Token == "" {
		return "", fmt.Errorf("response carried no token")
	}
	return body.Token, nil
}

// RecordSuccess commits a successful login. A session always carries a
// token, so an empty one is rejected.
func (s *Store) RecordSuccess(username, password, token string) error {
	if token == "" || username == "" {
		return ErrInvalidInput
	}
	s.commit(0, func(st *State) {
		s.applySuccess(st, username, password, token)
	})
	return nil
}

// RecordFailure commits a failed login. Any previous session is cleared.
func (s *Store) RecordFailure(username string) {
	s.commit(0, func(st *State) {
		applyFailure(st, username)
	})
}

// Invalidate logs the current session out, keeping the user name. It reports
// whether there was a session to end.
func (s *Store) Invalidate(reason string) bool {
	return s.invalidate(func(State) bool { return true }, reason)
}

// InvalidateToken logs the session out only while token is still the active
// bearer. A rejection of a token from an earlier session leaves a newer
// session alone.
func (s *Store) InvalidateToken(token, reason string) bool {
	if token == "" {
		return false
	}
	return s.invalidate(func(st State) bool { return st.Token == token }, reason)
}

func (s *Store) invalidate(match func(State) bool, reason string) bool {
	s.mu.Lock()
	if s.state.Status != StatusLoggedIn || !match(s.state) {
		s.mu.Unlock()
		return false
	}
	user := s.state.UserName
	s.state = State{
		Status:   StatusLoggedOut,
		UserName: user,
		Attempt:  s.state.Attempt,
	}
	snapshot := s.state
	s.mu.Unlock()

	log.LogInfoWithFields("session", "Session invalidated", map[string]any{
		"user":   user,
		"reason": reason,
	})
	s.notify(snapshot)
	return true
}

func (s *Store) applySuccess(st *State, username, password, token string) {
	claims, _ := parseClaims(token)
	*st = State{
		Status:   StatusLoggedIn,
		UserName: username,
		Token:    token,
		Claims:   claims,
	}
	if s.retainCredential {
		st.credential = config.Secret(password)
	}
}

func applyFailure(st *State, username string) {
	*st = State{
		Status:   StatusLoginFailed,
		UserName: username,
	}
}

// commit applies mutate unless a newer attempt than attempt has started.
// attempt 0 always commits.
func (s *Store) commit(attempt uint64, mutate func(*State)) bool {
	s.mu.Lock()
	if attempt != 0 && attempt != s.attempts.Load() {
		s.mu.Unlock()
		return false
	}
	mutate(&s.state)
	s.state.Attempt = attempt
	snapshot := s.state
	s.mu.Unlock()

	s.notify(snapshot)
	return true
}

func (s *Store) record(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordAuthAttempt(outcome)
	}
}

// Subscribe registers fn to be called with a snapshot after every committed
// change. The returned func removes the subscription.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Store) notify(snapshot State) {
	s.subsMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	snapshot.credential = ""
	for _, fn := range fns {
		fn(snapshot)
	}
}

// Snapshot returns a copy of the current state without the retained credential
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	st.credential = ""
	return st
}

func (s *Store) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsLoggedIn()
}

func (s *Store) HasLoginErrored() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.HasLoginErrored()
}

// CurrentUserName returns the user of the most recent committed attempt
func (s *Store) CurrentUserName() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.UserName, s.state.UserName != ""
}

// CurrentUserPassword returns the password of the active session. It is only
// available when the store was built WithCredentialRetention(true).
func (s *Store) CurrentUserPassword() (config.Secret, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.credential, s.state.credential != ""
}

// CurrentToken returns the bearer credential of the active session
func (s *Store) CurrentToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token, s.state.Status == StatusLoggedIn && s.state.Token != ""
}

// TokenClaims returns the unverified claims of the active token, if it is a JWT
func (s *Store) TokenClaims() (TokenClaims, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Status != StatusLoggedIn {
		return TokenClaims{}, false
	}
	return s.state.Claims, s.state.Claims != (TokenClaims{})
}
