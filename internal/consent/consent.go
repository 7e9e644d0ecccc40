// Package consent stores the visitor's cookie consent decision and expires it
// after a fixed retention window.
package consent

import (
	"encoding/json"
	"sync"
	"time"

	"blockhost-portal/internal/common/logger"
	"blockhost-portal/internal/storage"
)

const (
	StorageKey   = "cookie-consent"
	TimestampKey = "cookie-consent-timestamp"

	// RetentionMonths is how long a decision stays valid, in calendar months.
	RetentionMonths = 12
)

// Record is the three-way permission set. Necessary is always true.
type Record struct {
	Necessary bool `json:"necessary"`
	Analytics bool `json:"analytics"`
	Marketing bool `json:"marketing"`
}

var (
	All           = Record{Necessary: true, Analytics: true, Marketing: true}
	NecessaryOnly = Record{Necessary: true}
)

type State struct {
	Consent    Record
	HasDecided bool
	DecidedAt  time.Time
}

type Listener func(Record)

type Store struct {
	mu        sync.Mutex
	storage   storage.Storage
	logger    logger.Logger
	now       func() time.Time
	state     State
	listeners map[int]Listener
	nextID    int
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(st storage.Storage, log logger.Logger, opts ...Option) *Store {
	s := &Store{
		storage:   st,
		logger:    log,
		now:       time.Now,
		state:     State{Consent: NecessaryOnly},
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the persisted decision. A missing, unreadable or expired decision
// yields the undecided default state; expired and corrupt entries are removed.
func (s *Store) Load() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = s.readLocked()
	return s.state
}

func (s *Store) readLocked() State {
	undecided := State{Consent: NecessaryOnly}

	raw, ok, err := s.storage.GetItem(StorageKey)
	if err != nil {
		s.logger.Debug("consent read failed", map[string]interface{}{"error": err})
		return undecided
	}
	rawTS, tsOK, err := s.storage.GetItem(TimestampKey)
	if err != nil {
		s.logger.Debug("consent timestamp read failed", map[string]interface{}{"error": err})
		return undecided
	}
	if !ok || !tsOK {
		return undecided
	}

	decidedAt, err := time.Parse(time.RFC3339Nano, rawTS)
	if err != nil || !s.now().Before(decidedAt.AddDate(0, RetentionMonths, 0)) {
		s.discardLocked()
		return undecided
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.discardLocked()
		return undecided
	}
	rec.Necessary = true

	return State{Consent: rec, HasDecided: true, DecidedAt: decidedAt}
}

func (s *Store) discardLocked() {
	for _, key := range []string{StorageKey, TimestampKey} {
		if err := s.storage.RemoveItem(key); err != nil {
			s.logger.Debug("consent cleanup failed", map[string]interface{}{"key": key, "error": err})
		}
	}
}

// State returns the in-memory state without touching storage.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Decide records a decision. Storage failures are logged; the in-memory
// state still reflects the decision for this process.
func (s *Store) Decide(rec Record) {
	rec.Necessary = true
	now := s.now()

	s.mu.Lock()
	data, _ := json.Marshal(rec)
	if err := s.storage.SetItem(StorageKey, string(data)); err != nil {
		s.logger.Debug("consent write failed", map[string]interface{}{"error": err})
	}
	if err := s.storage.SetItem(TimestampKey, now.UTC().Format(time.RFC3339Nano)); err != nil {
		s.logger.Debug("consent timestamp write failed", map[string]interface{}{"error": err})
	}
	s.state = State{Consent: rec, HasDecided: true, DecidedAt: now}
	listeners := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, rec)
}

func (s *Store) AcceptAll() {
	s.Decide(All)
}

func (s *Store) AcceptNecessaryOnly() {
	s.Decide(NecessaryOnly)
}

// Reset forgets the decision. Intended for debugging, not the normal flow.
func (s *Store) Reset() {
	s.mu.Lock()
	s.discardLocked()
	s.state = State{Consent: NecessaryOnly}
	listeners := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, NecessaryOnly)
}

// Subscribe registers fn for every future decision or reset and returns a
// function that removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) snapshotLocked() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for i := 0; i < s.nextID; i++ {
		if fn, ok := s.listeners[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func notify(listeners []Listener, rec Record) {
	for _, fn := range listeners {
		fn(rec)
	}
}
