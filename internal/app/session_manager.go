package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/ideacritic/internal/debate"
)

// DefaultIdleTimeout is how long an untouched browser session survives.
const DefaultIdleTimeout = 2 * time.Hour

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("app: session not found")

// SessionInfo holds metadata about a browser session.
type SessionInfo struct {
	// SessionID is the random identifier stored in the browser cookie.
	SessionID string

	// CreatedAt is when the session was created.
	CreatedAt time.Time

	// LastSeen is the last time the session was looked up.
	LastSeen time.Time

	// Running reports whether an analysis is currently streaming.
	Running bool
}

// SessionManager keeps one [debate.Session] per browser. Sessions are never
// shared; each holds at most one running analysis, whose context is cancelled
// when the session is reset, deleted or expires.
// All exported methods are safe for concurrent use.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*managedSession
	idle     time.Duration
	now      func() time.Time
}

type managedSession struct {
	info    SessionInfo
	session *debate.Session
	cancel  context.CancelFunc
	runs    uint64
}

// SessionManagerOption configures a [SessionManager].
type SessionManagerOption func(*SessionManager)

// WithIdleTimeout sets how long an unused session is kept. Non-positive values
// are ignored.
func WithIdleTimeout(d time.Duration) SessionManagerOption {
	return func(sm *SessionManager) {
		if d > 0 {
			sm.idle = d
		}
	}
}

// WithSessionClock overrides the time source.
func WithSessionClock(now func() time.Time) SessionManagerOption {
	return func(sm *SessionManager) { sm.now = now }
}

// NewSessionManager creates an empty SessionManager.
func NewSessionManager(opts ...SessionManagerOption) *SessionManager {
	sm := &SessionManager{
		sessions: make(map[string]*managedSession),
		idle:     DefaultIdleTimeout,
		now:      time.Now,
	}
	for _, o := range opts {
		o(sm)
	}
	return sm
}

// Create starts a fresh session in [debate.AwaitingIdea] and returns its id.
func (sm *SessionManager) Create() (string, *debate.Session) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	id := uuid.NewString()
	now := sm.now().UTC()
	ms := &managedSession{
		info:    SessionInfo{SessionID: id, CreatedAt: now, LastSeen: now},
		session: debate.NewSession(),
	}
	sm.sessions[id] = ms
	slog.Debug("session created", "session_id", id)
	return id, ms.session
}

// Get returns the session for id and marks it as seen.
func (sm *SessionManager) Get(id string) (*debate.Session, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ms, ok := sm.sessions[id]
	if !ok {
		return nil, false
	}
	ms.info.LastSeen = sm.now().UTC()
	return ms.session, true
}

// Info returns metadata for the session with the given id.
func (sm *SessionManager) Info(id string) (SessionInfo, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ms, ok := sm.sessions[id]
	if !ok {
		return SessionInfo{}, false
	}
	info := ms.info
	info.Running = ms.cancel != nil
	return info, true
}

// RunContext derives the context for one analysis run of session id. The
// returned done func must be called when the run finishes. A second run
// while one is active fails with [debate.ErrRunInProgress].
func (sm *SessionManager) RunContext(ctx context.Context, id string) (context.Context, func(), error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ms, ok := sm.sessions[id]
	if !ok {
		return nil, nil, ErrSessionNotFound
	}
	if ms.cancel != nil {
		return nil, nil, debate.ErrRunInProgress
	}

	runCtx, cancel := context.WithCancel(ctx)
	ms.cancel = cancel
	ms.runs++
	token := ms.runs
	done := func() {
		cancel()
		sm.mu.Lock()
		defer sm.mu.Unlock()
		// A reset may have let a newer run start on the same session.
		if ms.runs == token {
			ms.cancel = nil
		}
	}
	return runCtx, done, nil
}

// Reset cancels any running analysis and returns the session to
// [debate.AwaitingIdea].
func (sm *SessionManager) Reset(id string) error {
	sm.mu.Lock()
	ms, ok := sm.sessions[id]
	if ok {
		ms.info.LastSeen = sm.now().UTC()
		if ms.cancel != nil {
			ms.cancel()
			ms.cancel = nil
		}
	}
	sm.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	ms.session.Reset()
	return nil
}

// Delete cancels any running analysis and forgets the session.
func (sm *SessionManager) Delete(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if ms, ok := sm.sessions[id]; ok {
		if ms.cancel != nil {
			ms.cancel()
		}
		delete(sm.sessions, id)
	}
}

// Len returns the number of live sessions.
func (sm *SessionManager) Len() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}

// Sweep removes sessions that have not been seen within the idle timeout and
// have no running analysis. It returns the number removed.
func (sm *SessionManager) Sweep() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	cutoff := sm.now().UTC().Add(-sm.idle)
	removed := 0
	for id, ms := range sm.sessions {
		if ms.cancel == nil && ms.info.LastSeen.Before(cutoff) {
			delete(sm.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("expired idle sessions", "removed", removed, "remaining", len(sm.sessions))
	}
	return removed
}

// Run calls Sweep every interval until ctx is cancelled.
func (sm *SessionManager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sm.Sweep()
		}
	}
}
