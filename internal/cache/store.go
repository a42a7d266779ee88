// Package cache holds the most recent risk assessment per kind with TTL-based
// staleness and single-flight refresh tickets.
//
// Entries are immutable value objects behind an atomic pointer: an update is
// one pointer swap, so readers always observe either the previous complete
// entry or the new complete entry. The refresh ticket is a per-kind
// compare-and-set slot guaranteeing at most one refresh in flight per kind;
// late joiners wait on the ticket's done channel and share its outcome.
package cache

import (
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/dustcast-service/internal/domain"
)

// Kind distinguishes the independently refreshed cache slots.
type Kind string

const (
	KindCurrent  Kind = "current"
	KindForecast Kind = "forecast"
)

// Kinds returns all cache kinds in a stable order.
func Kinds() []Kind {
	return []Kind{KindCurrent, KindForecast}
}

// Status is the staleness state of a slot, derived from fetch time and TTL.
type Status string

const (
	StatusEmpty Status = "empty"
	StatusFresh Status = "fresh"
	StatusStale Status = "stale"
)

// Entry is one cached assessment. Never mutated after Put.
type Entry struct {
	Kind       Kind
	Assessment domain.RiskAssessment
	FetchedAt  time.Time
	TTL        time.Duration
}

// Flight is the refresh ticket: it exists exactly while one refresh for its
// kind is in progress. Created by Begin, finished by Complete.
type Flight struct {
	done chan struct{}
	err  error
}

// Done closes when the refresh finishes, success or failure.
func (f *Flight) Done() <-chan struct{} { return f.done }

// Err reports the refresh outcome. Valid only after Done is closed.
func (f *Flight) Err() error { return f.err }

type slot struct {
	entry  atomic.Pointer[Entry]
	flight atomic.Pointer[Flight]
}

// Store is the kind-keyed assessment cache. Safe for concurrent use; readers
// never block.
type Store struct {
	slots map[Kind]*slot
	ttls  map[Kind]time.Duration
	clock clockwork.Clock
}

// New creates a Store with per-kind TTLs. Pass a nil clock for real time.
func New(currentTTL, forecastTTL time.Duration, clk clockwork.Clock) *Store {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Store{
		slots: map[Kind]*slot{
			KindCurrent:  {},
			KindForecast: {},
		},
		ttls: map[Kind]time.Duration{
			KindCurrent:  currentTTL,
			KindForecast: forecastTTL,
		},
		clock: clk,
	}
}

// Get returns the cached entry for a kind and its staleness. A nil entry is
// returned with StatusEmpty when nothing was ever written.
func (s *Store) Get(kind Kind) (*Entry, Status) {
	e := s.slots[kind].entry.Load()
	if e == nil {
		return nil, StatusEmpty
	}
	if s.clock.Since(e.FetchedAt) < e.TTL {
		return e, StatusFresh
	}
	return e, StatusStale
}

// Put atomically replaces the entry for a kind, stamping it with the current
// time. Only the refresh path calls Put, and only while holding the ticket.
func (s *Store) Put(kind Kind, assessment domain.RiskAssessment) {
	s.slots[kind].entry.Store(&Entry{
		Kind:       kind,
		Assessment: assessment,
		FetchedAt:  s.clock.Now(),
		TTL:        s.ttls[kind],
	})
}

// Begin tries to acquire the refresh ticket for a kind. On success it returns
// the new flight and true; the caller must finish it with Complete. When a
// refresh is already in progress it returns that flight and false, so callers
// can either give up (fire-and-forget dedup) or wait on Done and join its
// outcome.
func (s *Store) Begin(kind Kind) (*Flight, bool) {
	sl := s.slots[kind]
	f := &Flight{done: make(chan struct{})}
	for {
		if sl.flight.CompareAndSwap(nil, f) {
			return f, true
		}
		// Another flight holds the ticket, unless it completed between the
		// CAS and this load; in that case try to acquire again.
		if cur := sl.flight.Load(); cur != nil {
			return cur, false
		}
	}
}

// Complete releases the ticket and publishes the outcome to joiners. A failed
// refresh leaves the entry untouched: fetchedAt never advances on failure, so
// reported staleness stays honest.
func (s *Store) Complete(kind Kind, f *Flight, err error) {
	f.err = err
	s.slots[kind].flight.CompareAndSwap(f, nil)
	close(f.done)
}

// Refreshing reports whether a refresh ticket is currently held for a kind.
func (s *Store) Refreshing(kind Kind) bool {
	return s.slots[kind].flight.Load() != nil
}

// KindHealth is the externally visible state of one slot.
type KindHealth struct {
	Status     Status    `json:"status"`
	Refreshing bool      `json:"refreshing"`
	FetchedAt  time.Time `json:"fetched_at,omitzero"`
	AgeSeconds float64   `json:"age_seconds"`
}

// Health reports the staleness, refresh activity, and age of a slot, for the
// status and readiness endpoints.
func (s *Store) Health(kind Kind) KindHealth {
	h := KindHealth{Refreshing: s.Refreshing(kind)}
	e, status := s.Get(kind)
	h.Status = status
	if e != nil {
		h.FetchedAt = e.FetchedAt
		h.AgeSeconds = s.clock.Since(e.FetchedAt).Seconds()
	}
	return h
}
