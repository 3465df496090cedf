package chat

import (
	"context"
	"log"
	"sync"
	"time"
)

// Sessions is the registry of live conversation sessions, keyed by session
// key. Turns on one session are serialized; different sessions run in
// parallel unless they belong to the same user.
type Sessions struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry
	users   map[string]*userEntry
	prefs   PreferenceStore
	now     func() time.Time
	clock   func() time.Time // passed to new sessions; nil means real time
}

type sessionEntry struct {
	mu       sync.Mutex // held for a whole turn
	sess     *Session
	refs     int       // turns holding or waiting for mu; guarded by Sessions.mu
	lastUsed time.Time // guarded by Sessions.mu
}

// userEntry holds the preferences of one user. Every session the user
// speaks in shares it, and its lock is held for the whole turn so two
// threads of the same user cannot overwrite each other's changes.
type userEntry struct {
	mu       sync.Mutex
	prefs    *Preferences
	refs     int       // guarded by Sessions.mu
	lastUsed time.Time // guarded by Sessions.mu
}

// SessionsOpts holds parameters for creating a Sessions registry.
type SessionsOpts struct {
	Prefs PreferenceStore  // optional; without it preferences live only in memory
	Now   func() time.Time // defaults to time.Now; also the clock of every session
}

// NewSessions creates an empty registry.
func NewSessions(opts SessionsOpts) *Sessions {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Sessions{
		entries: make(map[string]*sessionEntry),
		users:   make(map[string]*userEntry),
		prefs:   opts.Prefs,
		now:     now,
		clock:   opts.Now,
	}
}

// Do runs fn on the session for key while holding its lock. The session's
// Prefs belong to userKey (defaulting to key) for the duration of fn: with a
// store they are reloaded before fn and saved after it. Several users may
// share one session, as in a channel, and each turn sees only its own
// speaker's preferences. Store failures are logged, not returned.
func (s *Sessions) Do(ctx context.Context, key, userKey string, fn func(*Session)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if userKey == "" {
		userKey = key
	}

	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		e = &sessionEntry{}
		s.entries[key] = e
	}
	u, ok := s.users[userKey]
	if !ok {
		u = &userEntry{}
		s.users[userKey] = u
	}
	e.refs++
	u.refs++
	s.mu.Unlock()

	// Lock order: session, then user.
	e.mu.Lock()
	defer e.mu.Unlock()
	u.mu.Lock()
	defer u.mu.Unlock()

	loaded := s.loadPrefs(ctx, userKey, u)
	if e.sess == nil {
		e.sess = NewSession(key, nil)
		e.sess.Now = s.clock
	}
	e.sess.Prefs = u.prefs
	fn(e.sess)
	if e.sess.Prefs != nil {
		u.prefs = e.sess.Prefs
	}

	if s.prefs != nil && loaded {
		if err := s.prefs.Save(ctx, userKey, u.prefs); err != nil {
			log.Printf("chat: save preferences for %s: %v", userKey, err)
		}
	}

	s.mu.Lock()
	t := s.now()
	e.lastUsed = t
	u.lastUsed = t
	e.refs--
	u.refs--
	s.mu.Unlock()
	return nil
}

// loadPrefs refreshes u.prefs from the store and reports whether the
// result may be saved back. A failed load keeps the cached profile and
// suppresses the save so the stored row is not replaced by a partial one.
func (s *Sessions) loadPrefs(ctx context.Context, userKey string, u *userEntry) bool {
	if s.prefs == nil {
		if u.prefs == nil {
			u.prefs = NewPreferences()
		}
		return false
	}
	p, err := s.prefs.Load(ctx, userKey)
	if err != nil {
		log.Printf("chat: load preferences for %s: %v", userKey, err)
		if u.prefs == nil {
			u.prefs = NewPreferences()
		}
		return false
	}
	u.prefs = p
	return true
}

// Reset drops the in-memory session for key. Stored preferences survive.
func (s *Sessions) Reset(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Evict drops sessions idle for longer than olderThan and returns how many
// were removed. Sessions in the middle of a turn are kept. Idle users are
// dropped along with them.
func (s *Sessions) Evict(olderThan time.Duration) int {
	cutoff := s.now().Add(-olderThan)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, e := range s.entries {
		if e.refs > 0 || !e.lastUsed.Before(cutoff) {
			continue
		}
		delete(s.entries, key)
		n++
	}
	for key, u := range s.users {
		if u.refs == 0 && u.lastUsed.Before(cutoff) {
			delete(s.users, key)
		}
	}
	return n
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
