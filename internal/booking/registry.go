package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zulandar/evbot/internal/chat"
	"github.com/zulandar/evbot/internal/station"
)

var _ chat.FormLocator = (*Registry)(nil)

// Registry tracks the open booking form of each session.
type Registry struct {
	dir   station.Directory
	avail *Availability
	now   func() time.Time
	ref   func() string

	mu    sync.Mutex
	forms map[string]*openForm
}

type openForm struct {
	form     *Form
	lastUsed time.Time
}

// RegistryOpts holds parameters for creating a Registry.
type RegistryOpts struct {
	Directory    station.Directory
	Availability *Availability
	Now          func() time.Time // passed to every form
	Reference    func() string    // passed to every form
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts RegistryOpts) (*Registry, error) {
	if opts.Directory == nil {
		return nil, fmt.Errorf("booking: registry: directory is required")
	}
	if opts.Availability == nil {
		return nil, fmt.Errorf("booking: registry: availability is required")
	}
	return &Registry{
		dir:   opts.Directory,
		avail: opts.Availability,
		now:   opts.Now,
		ref:   opts.Reference,
		forms: make(map[string]*openForm),
	}, nil
}

// Open returns the session's form, creating it with the current station
// list if none is open. The bool reports whether a new form was created.
func (r *Registry) Open(ctx context.Context, sessionKey string) (*Form, bool, error) {
	if f, ok := r.Get(sessionKey); ok {
		return f, false, nil
	}
	stations, err := r.dir.List(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("booking: open form: %w", err)
	}
	f, err := NewForm(FormOpts{
		SessionKey:   sessionKey,
		Stations:     stations,
		Availability: r.avail,
		Now:          r.now,
		Reference:    r.ref,
	})
	if err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.forms[sessionKey]; ok {
		existing.lastUsed = r.clock()
		return existing.form, false, nil
	}
	r.forms[sessionKey] = &openForm{form: f, lastUsed: r.clock()}
	return f, true, nil
}

// Get returns the open form of a session and marks it as used.
func (r *Registry) Get(sessionKey string) (*Form, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.forms[sessionKey]
	if !ok {
		return nil, false
	}
	o.lastUsed = r.clock()
	return o.form, true
}

// Locate implements chat.FormLocator.
func (r *Registry) Locate(sessionKey string) (chat.BookingFormAdapter, bool) {
	f, ok := r.Get(sessionKey)
	if !ok {
		return nil, false
	}
	return f, true
}

// Close discards the session's form. It reports whether one was open.
func (r *Registry) Close(sessionKey string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.forms[sessionKey]
	delete(r.forms, sessionKey)
	return ok
}

// Evict closes forms not used for longer than olderThan and returns how
// many were closed.
func (r *Registry) Evict(olderThan time.Duration) int {
	cutoff := r.clock().Add(-olderThan)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for key, o := range r.forms {
		if o.lastUsed.Before(cutoff) {
			delete(r.forms, key)
			n++
		}
	}
	return n
}

func (r *Registry) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

// Len returns the number of open forms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.forms)
}
