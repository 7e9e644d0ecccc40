// Package drafts autosaves in-progress form values to storage after a quiet
// period and restores them when the form is opened again.
package drafts

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"blockhost-portal/internal/common/logger"
	"blockhost-portal/internal/common/validation"
	"blockhost-portal/internal/storage"
)

const DefaultDebounce = 500 * time.Millisecond

type Options struct {
	// Values reads the current form state. It is called from the timer
	// goroutine, so it must be safe for concurrent use.
	Values func() map[string]interface{}
	// Reset replaces the whole form state.
	Reset    func(map[string]interface{})
	Key      string
	Defaults map[string]interface{}
	Storage  storage.Storage
	Debounce time.Duration
	Clock    func() time.Time
	Logger   logger.Logger
}

type Store struct {
	opts Options

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	savedAt *time.Time
}

func New(opts Options) *Store {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	return &Store{opts: opts}
}

func (s *Store) timestampKey() string {
	return s.opts.Key + "_timestamp"
}

// Start restores a saved draft over the defaults. A draft that cannot be
// parsed is deleted and the form keeps its defaults.
func (s *Store) Start() {
	raw, ok, err := s.opts.Storage.GetItem(s.opts.Key)
	if err != nil {
		s.opts.Logger.Debug("draft read failed", map[string]interface{}{"key": s.opts.Key, "error": err})
		return
	}
	if !ok {
		return
	}

	var saved map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &saved); err != nil || saved == nil {
		s.opts.Logger.Warn("discarding corrupt draft", map[string]interface{}{"key": s.opts.Key})
		s.removeEntries()
		return
	}

	merged := make(map[string]interface{}, len(s.opts.Defaults)+len(saved))
	for k, v := range s.opts.Defaults {
		merged[k] = v
	}
	for k, v := range saved {
		merged[k] = v
	}
	s.opts.Reset(merged)

	if rawTS, ok, err := s.opts.Storage.GetItem(s.timestampKey()); err == nil && ok {
		if ms, err := strconv.ParseInt(rawTS, 10, 64); err == nil {
			t := time.UnixMilli(ms)
			s.mu.Lock()
			s.savedAt = &t
			s.mu.Unlock()
		}
	}
}

// OnChange starts or restarts the debounce timer.
func (s *Store) OnChange() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(s.opts.Debounce, func() { s.commit(gen) })
}

// Flush commits a pending change immediately instead of waiting for the timer.
func (s *Store) Flush() {
	s.mu.Lock()
	if s.timer == nil || !s.timer.Stop() {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	gen := s.gen
	s.mu.Unlock()

	s.commit(gen)
}

// Stop cancels a pending write without committing it.
func (s *Store) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

func (s *Store) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (s *Store) commit(gen uint64) {
	values := s.opts.Values()
	if !hasContent(values) {
		return
	}

	data, err := json.Marshal(values)
	if err != nil {
		s.opts.Logger.Warn("draft not serializable", map[string]interface{}{"key": s.opts.Key, "error": err})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A newer change, Stop or ClearSavedData superseded this write.
	if gen != s.gen {
		return
	}

	now := s.opts.Clock()
	if err := s.opts.Storage.SetItem(s.opts.Key, string(data)); err != nil {
		s.opts.Logger.Debug("draft write failed", map[string]interface{}{"key": s.opts.Key, "error": err})
		return
	}
	if err := s.opts.Storage.SetItem(s.timestampKey(), strconv.FormatInt(now.UnixMilli(), 10)); err != nil {
		s.opts.Logger.Debug("draft timestamp write failed", map[string]interface{}{"key": s.opts.Key, "error": err})
	}
	s.savedAt = &now
	s.timer = nil
}

// ClearSavedData deletes the draft and drops any pending write.
func (s *Store) ClearSavedData() {
	s.mu.Lock()
	s.cancelLocked()
	s.savedAt = nil
	s.mu.Unlock()

	s.removeEntries()
}

func (s *Store) removeEntries() {
	for _, key := range []string{s.opts.Key, s.timestampKey()} {
		if err := s.opts.Storage.RemoveItem(key); err != nil {
			s.opts.Logger.Debug("draft delete failed", map[string]interface{}{"key": key, "error": err})
		}
	}
}

// HasSavedData reports whether a draft exists. Storage errors read as false.
func (s *Store) HasSavedData() bool {
	_, ok, err := s.opts.Storage.GetItem(s.opts.Key)
	return err == nil && ok
}

func (s *Store) SavedAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.savedAt == nil {
		return nil
	}
	t := *s.savedAt
	return &t
}

func hasContent(values map[string]interface{}) bool {
	for _, v := range values {
		if !validation.IsEmptyValue(v) {
			return true
		}
	}
	return false
}
