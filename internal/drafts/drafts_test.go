package drafts

import (
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"blockhost-portal/internal/common/logger"
	"blockhost-portal/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "blockhost-application-draft"

// form stands in for the presentation layer's form state.
type form struct {
	mu     sync.Mutex
	values map[string]interface{}
}

func newForm(defaults map[string]interface{}) *form {
	f := &form{}
	f.Reset(defaults)
	return f
}

func (f *form) Values() map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]interface{}, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

func (f *form) Reset(v map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = make(map[string]interface{}, len(v))
	for k, val := range v {
		f.values[k] = val
	}
}

func (f *form) Set(name string, value interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[name] = value
}

type countingStorage struct {
	*storage.MemoryStorage
	mu     sync.Mutex
	writes int
}

func (c *countingStorage) SetItem(key, value string) error {
	c.mu.Lock()
	if key == testKey {
		c.writes++
	}
	c.mu.Unlock()
	return c.MemoryStorage.SetItem(key, value)
}

func (c *countingStorage) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

type failingStorage struct{}

func (failingStorage) GetItem(string) (string, bool, error) { return "", false, errors.New("denied") }
func (failingStorage) SetItem(string, string) error         { return errors.New("denied") }
func (failingStorage) RemoveItem(string) error              { return errors.New("denied") }

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"firstName":   "",
		"email":       "",
		"creatorType": "",
		"agree":       false,
	}
}

func newStore(t *testing.T, st storage.Storage, f *form, clock func() time.Time) *Store {
	return New(Options{
		Values:   f.Values,
		Reset:    f.Reset,
		Key:      testKey,
		Defaults: defaults(),
		Storage:  st,
		Debounce: 20 * time.Millisecond,
		Clock:    clock,
		Logger:   logger.NewTestLogger(t),
	})
}

func TestStore_RoundTrip(t *testing.T) {
	st := storage.NewMemoryStorage()
	now := time.Date(2025, 5, 4, 10, 30, 0, 0, time.UTC)
	f := newForm(defaults())
	s := newStore(t, st, f, func() time.Time { return now })
	s.Start()

	f.Set("firstName", "Al")
	s.OnChange()
	f.Set("firstName", "Alex")
	f.Set("creatorType", "twitch")
	s.OnChange()

	require.Eventually(t, s.HasSavedData, time.Second, 5*time.Millisecond)
	require.NotNil(t, s.SavedAt())
	assert.True(t, s.SavedAt().Equal(now))

	raw, ok, _ := st.GetItem(testKey)
	require.True(t, ok)
	var persisted map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	assert.Equal(t, f.Values(), persisted)

	ts, ok, _ := st.GetItem(testKey + "_timestamp")
	require.True(t, ok)
	assert.Equal(t, strconv.FormatInt(now.UnixMilli(), 10), ts)

	// Remount reproduces the state exactly.
	remounted := newForm(defaults())
	s2 := newStore(t, st, remounted, time.Now)
	s2.Start()
	assert.Equal(t, f.Values(), remounted.Values())
	require.NotNil(t, s2.SavedAt())
	assert.Equal(t, now.UnixMilli(), s2.SavedAt().UnixMilli())
}

func TestStore_DebounceCoalescesWrites(t *testing.T) {
	st := &countingStorage{MemoryStorage: storage.NewMemoryStorage()}
	f := newForm(defaults())
	s := newStore(t, st, f, time.Now)

	for _, v := range []string{"A", "Al", "Ale", "Alex"} {
		f.Set("firstName", v)
		s.OnChange()
	}

	require.Eventually(t, func() bool { return st.Writes() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, st.Writes())

	raw, _, _ := st.GetItem(testKey)
	assert.Contains(t, raw, `"firstName":"Alex"`)
}

func TestStore_MergesOverDefaults(t *testing.T) {
	st := storage.NewMemoryStorage()
	require.NoError(t, st.SetItem(testKey, `{"firstName":"Sam","retiredField":"x"}`))

	f := newForm(defaults())
	s := newStore(t, st, f, time.Now)
	s.Start()

	got := f.Values()
	assert.Equal(t, "Sam", got["firstName"])
	assert.Equal(t, "", got["email"], "fields added after the draft was saved fall back to defaults")
	assert.Equal(t, false, got["agree"])
	assert.Equal(t, "x", got["retiredField"])
	assert.Nil(t, s.SavedAt(), "no timestamp entry was stored")
}

func TestStore_NoEmptyDraft(t *testing.T) {
	t.Run("all empty values are never written", func(t *testing.T) {
		st := &countingStorage{MemoryStorage: storage.NewMemoryStorage()}
		f := newForm(defaults())
		s := newStore(t, st, f, time.Now)

		f.Set("firstName", "   ")
		s.OnChange()
		s.Flush()

		assert.Equal(t, 0, st.Writes())
		assert.False(t, s.HasSavedData())
		assert.Nil(t, s.SavedAt())
	})

	t.Run("clearing every field keeps the previous draft", func(t *testing.T) {
		st := storage.NewMemoryStorage()
		f := newForm(defaults())
		s := newStore(t, st, f, time.Now)

		f.Set("email", "a@b.co")
		s.OnChange()
		s.Flush()
		require.True(t, s.HasSavedData())
		before, _, _ := st.GetItem(testKey)

		f.Set("email", "")
		s.OnChange()
		s.Flush()

		assert.True(t, s.HasSavedData(), "only an explicit clear removes a draft")
		after, _, _ := st.GetItem(testKey)
		assert.Equal(t, before, after)
	})
}

func TestStore_CorruptDraftIsDiscarded(t *testing.T) {
	for _, raw := range []string{"{broken", "null", `"just a string"`} {
		t.Run(raw, func(t *testing.T) {
			st := storage.NewMemoryStorage()
			require.NoError(t, st.SetItem(testKey, raw))
			require.NoError(t, st.SetItem(testKey+"_timestamp", "1700000000000"))

			f := newForm(defaults())
			s := newStore(t, st, f, time.Now)
			s.Start()

			assert.Equal(t, defaults(), f.Values())
			assert.Equal(t, 0, st.Len())
			assert.Nil(t, s.SavedAt())
		})
	}
}

func TestStore_ClearSavedData(t *testing.T) {
	st := storage.NewMemoryStorage()
	f := newForm(defaults())
	s := newStore(t, st, f, time.Now)

	f.Set("firstName", "Alex")
	s.OnChange()
	s.Flush()
	require.True(t, s.HasSavedData())

	// A change still pending when the draft is cleared must not resurrect it.
	f.Set("firstName", "Alexa")
	s.OnChange()
	s.ClearSavedData()
	time.Sleep(60 * time.Millisecond)

	assert.False(t, s.HasSavedData())
	assert.Nil(t, s.SavedAt())
	assert.Equal(t, 0, st.Len())
}

func TestStore_StopCancelsPendingWrite(t *testing.T) {
	st := &countingStorage{MemoryStorage: storage.NewMemoryStorage()}
	f := newForm(defaults())
	s := newStore(t, st, f, time.Now)

	f.Set("firstName", "Alex")
	s.OnChange()
	s.Stop()
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, 0, st.Writes())
}

func TestStore_StorageFailuresAreSilent(t *testing.T) {
	f := newForm(defaults())
	s := newStore(t, failingStorage{}, f, time.Now)

	assert.NotPanics(t, func() {
		s.Start()
		f.Set("firstName", "Alex")
		s.OnChange()
		s.Flush()
		s.ClearSavedData()
	})
	assert.False(t, s.HasSavedData())
	assert.Nil(t, s.SavedAt())
	assert.Equal(t, "Alex", f.Values()["firstName"])
}
