package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"blockhost-portal/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStorage(t *testing.T, s Storage) {
	t.Helper()

	_, ok, err := s.GetItem("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetItem("draft", `{"firstName":"Alex"}`))
	v, ok, err := s.GetItem("draft")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"firstName":"Alex"}`, v)

	require.NoError(t, s.SetItem("draft", "replaced"))
	v, _, _ = s.GetItem("draft")
	assert.Equal(t, "replaced", v)

	require.NoError(t, s.RemoveItem("draft"))
	_, ok, err = s.GetItem("draft")
	require.NoError(t, err)
	assert.False(t, ok)

	// Removing a missing key is not an error.
	assert.NoError(t, s.RemoveItem("draft"))
}

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()
	exerciseStorage(t, s)
	assert.Equal(t, 0, s.Len())
}

func TestFileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s, err := NewFileStorage(path, logger.NewTestLogger(t))
	require.NoError(t, err)
	exerciseStorage(t, s)

	t.Run("persists across instances", func(t *testing.T) {
		require.NoError(t, s.SetItem("k", "v"))
		reopened, err := NewFileStorage(path, logger.NewTestLogger(t))
		require.NoError(t, err)
		v, ok, err := reopened.GetItem("k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "v", v)
	})

	t.Run("corrupt file is discarded and rewritten", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

		_, ok, err := s.GetItem("k")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.SetItem("blockhost-application-draft", `{"firstName":"Alex"}`))
		require.NoError(t, s.RemoveItem("missing"))
		v, ok, err := s.GetItem("blockhost-application-draft")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, `{"firstName":"Alex"}`, v)

		saved, err := os.ReadFile(path + ".corrupt")
		require.NoError(t, err)
		assert.Equal(t, "{not json", string(saved))
	})

	t.Run("unreadable path reports unavailable", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "store")
		require.NoError(t, os.MkdirAll(dir, 0o700))
		s, err := NewFileStorage(dir, logger.NewTestLogger(t))
		require.NoError(t, err)
		_, _, err = s.GetItem("k")
		assert.True(t, errors.Is(err, ErrUnavailable))
	})
}

func TestRedisStorage_Miniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisStorage(client, "device-42")
	exerciseStorage(t, s)

	require.NoError(t, s.SetItem("cookie-consent", "{}"))
	assert.True(t, mr.Exists("device-42:cookie-consent"))
}

func TestRedisStorage_Errors(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := NewRedisStorage(client, "")

	mock.ExpectGet("draft").SetErr(errors.New("connection refused"))
	_, ok, err := s.GetItem("draft")
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrUnavailable))

	mock.ExpectSet("draft", "v", 0).SetErr(errors.New("READONLY"))
	assert.True(t, errors.Is(s.SetItem("draft", "v"), ErrUnavailable))

	mock.ExpectDel("draft").SetErr(errors.New("connection reset"))
	assert.True(t, errors.Is(s.RemoveItem("draft"), ErrUnavailable))

	assert.NoError(t, mock.ExpectationsWereMet())
}
