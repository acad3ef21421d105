// Package authwall tracks which upstream services are blocked behind a
// sign-in page, rate-limits the login tabs opened for them, and replays the
// resolutions that hit the wall once a sign-in is observed.
package authwall

import (
	"sync"
	"time"

	"titlelink/api/internal/links"
)

// DefaultPromptInterval is the minimum spacing between login tabs for one service.
const DefaultPromptInterval = 30 * time.Second

// State is the per-service authentication bookkeeping.
type State struct {
	// Authenticated is optimistic: it flips to true on the first observed
	// navigation to a non-login page of the service.
	Authenticated bool
	Pending       map[string]func()
	LastPromptAt  time.Time
	// Notified is set once the user has been told to sign in and cleared
	// when the service authenticates again.
	Notified bool
}

// Snapshot is a copy of State safe to hand out.
type Snapshot struct {
	Authenticated bool      `json:"authenticated"`
	Pending       []string  `json:"pending"`
	LastPromptAt  time.Time `json:"lastPromptAt"`
}

// Decision tells the caller which side effects a newly detected wall needs.
type Decision struct {
	OpenTab bool
	Notify  bool
}

type Tracker struct {
	mu       sync.Mutex
	interval time.Duration
	now      func() time.Time
	states   map[links.Kind]*State
}

// NewTracker creates state for Jira and Asana. now may be nil.
func NewTracker(interval time.Duration, now func() time.Time) *Tracker {
	if interval <= 0 {
		interval = DefaultPromptInterval
	}
	if now == nil {
		now = time.Now
	}
	t := &Tracker{
		interval: interval,
		now:      now,
		states:   make(map[links.Kind]*State),
	}
	for _, kind := range []links.Kind{links.KindJira, links.KindAsana} {
		t.states[kind] = &State{Pending: make(map[string]func())}
	}
	return t
}

func (t *Tracker) state(kind links.Kind) *State {
	st, ok := t.states[kind]
	if !ok {
		st = &State{Pending: make(map[string]func())}
		t.states[kind] = st
	}
	return st
}

// Block records that a fetch of url hit kind's sign-in wall. retry replaces
// any callback already queued for the same url.
func (t *Tracker) Block(kind links.Kind, url string, retry func()) Decision {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.state(kind)
	st.Authenticated = false
	if retry != nil {
		st.Pending[url] = retry
	}

	var d Decision
	now := t.now()
	if st.LastPromptAt.IsZero() || now.Sub(st.LastPromptAt) >= t.interval {
		st.LastPromptAt = now
		d.OpenTab = true
	}
	if !st.Notified {
		st.Notified = true
		d.Notify = true
	}
	return d
}

// Requeue queues retry for url without opening a tab or notifying. It is
// used for placeholders found in a shared cache whose original retry lives
// in another process or did not survive a restart. A callback already
// queued for url is kept.
func (t *Tracker) Requeue(kind links.Kind, url string, retry func()) {
	if retry == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.state(kind)
	if _, ok := st.Pending[url]; !ok {
		st.Pending[url] = retry
	}
}

// Complete marks kind authenticated and runs every queued retry exactly
// once. The pending set is swapped out before any callback runs, so a retry
// that blocks again queues itself for the next completion.
func (t *Tracker) Complete(kind links.Kind) int {
	t.mu.Lock()
	st := t.state(kind)
	st.Authenticated = true
	st.Notified = false
	pending := st.Pending
	st.Pending = make(map[string]func())
	t.mu.Unlock()

	for _, retry := range pending {
		retry()
	}
	return len(pending)
}

// Authenticated reports the optimistic flag for kind.
func (t *Tracker) Authenticated(kind links.Kind) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state(kind).Authenticated
}

// Snapshot returns a copy of kind's state.
func (t *Tracker) Snapshot(kind links.Kind) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.state(kind)
	snap := Snapshot{
		Authenticated: st.Authenticated,
		LastPromptAt:  st.LastPromptAt,
		Pending:       make([]string, 0, len(st.Pending)),
	}
	for url := range st.Pending {
		snap.Pending = append(snap.Pending, url)
	}
	return snap
}
