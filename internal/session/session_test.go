package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-chat/config"
	"storefront-chat/internal/domain"
	chatredis "storefront-chat/internal/redis"
	chat_errors "storefront-chat/pkg/errors"
	"storefront-chat/pkg/logger"
)

var testSession = domain.Session{
	User:  domain.User{ID: "u1", Name: "Ann", Role: domain.RoleCustomer},
	Token: "tok",
}

func storeTests(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("set get delete", func(t *testing.T) {
		s := newStore(t)
		_, ok, err := s.Get(ctx, "user")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.Set(ctx, "user", "v1"))
		v, ok, err := s.Get(ctx, "user")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "v1", v)

		require.NoError(t, s.Delete(ctx, "user"))
		_, ok, err = s.Get(ctx, "user")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("clear", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "user", "v1"))
		require.NoError(t, s.Set(ctx, "token", "v2"))
		require.NoError(t, s.Clear(ctx))
		_, ok, err := s.Get(ctx, "token")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("manager round trip", func(t *testing.T) {
		m := NewManager(newStore(t), logger.NewNop())
		_, err := m.Load(ctx)
		assert.ErrorIs(t, err, chat_errors.ErrNoSession)

		require.NoError(t, m.Save(ctx, testSession))
		got, err := m.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, testSession, got)

		require.NoError(t, m.Clear(ctx))
		_, err = m.Load(ctx)
		assert.ErrorIs(t, err, chat_errors.ErrNoSession)
	})
}

func TestMemoryStore(t *testing.T) {
	storeTests(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func TestFileStore(t *testing.T) {
	storeTests(t, func(t *testing.T) Store { return NewFileStore(t.TempDir(), "default") })
}

func TestRedisStore(t *testing.T) {
	storeTests(t, func(t *testing.T) Store {
		mr := miniredis.RunT(t)
		client := chatredis.NewClient(chatredis.Config{Host: mr.Host(), Port: mr.Port()})
		t.Cleanup(func() { client.Close() })
		return NewRedisStore(chatredis.NewCacheStore(client, time.Hour), "default")
	})
}

func TestRedisStoreKeysAreProfileScoped(t *testing.T) {
	mr := miniredis.RunT(t)
	client := chatredis.NewClient(chatredis.Config{Host: mr.Host(), Port: mr.Port()})
	defer client.Close()
	cache := chatredis.NewCacheStore(client, time.Hour)
	ctx := context.Background()

	a := NewRedisStore(cache, "a")
	b := NewRedisStore(cache, "b")
	require.NoError(t, a.Set(ctx, "token", "ta"))
	require.NoError(t, b.Set(ctx, "token", "tb"))
	assert.True(t, mr.Exists("session:a:token"))

	require.NoError(t, a.Clear(ctx))
	_, ok, err := b.Get(ctx, "token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, mr.Exists("session:a:token"))
}

func TestFileStorePermissions(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "nested"), "default")
	require.NoError(t, s.Set(context.Background(), "token", "secret"))

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadDiscardsCorruptRecords(t *testing.T) {
	cases := map[string]string{
		"undefined":    "undefined",
		"empty":        "",
		"null":         "null",
		"not json":     "{oops",
		"missing id":   `{"name":"Ann","role":"customer"}`,
		"unknown role": `{"_id":"u1","role":"guest"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := NewMemoryStore()
			require.NoError(t, store.Set(ctx, "user", raw))
			require.NoError(t, store.Set(ctx, "token", "tok"))

			_, err := NewManager(store, logger.NewNop()).Load(ctx)
			assert.ErrorIs(t, err, chat_errors.ErrNoSession)

			_, ok, _ := store.Get(ctx, "user")
			assert.False(t, ok)
		})
	}
}

func TestLoadIgnoresCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.json"), []byte("not json"), 0o600))

	m := NewManager(NewFallbackStore(NewFileStore(dir, "default"), logger.NewNop()), logger.NewNop())
	_, err := m.Load(context.Background())
	assert.ErrorIs(t, err, chat_errors.ErrNoSession)
}

func TestSaveRejectsInvalidSession(t *testing.T) {
	m := NewManager(NewMemoryStore(), logger.NewNop())
	err := m.Save(context.Background(), domain.Session{User: domain.User{ID: "u1"}})
	assert.ErrorIs(t, err, chat_errors.ErrInvalidInput)
}

type brokenStore struct{}

var errBroken = errors.New("disk gone")

func (brokenStore) Get(context.Context, string) (string, bool, error) { return "", false, errBroken }
func (brokenStore) Set(context.Context, string, string) error         { return errBroken }
func (brokenStore) Delete(context.Context, string) error              { return errBroken }
func (brokenStore) Clear(context.Context) error                       { return errBroken }

func TestFallbackStoreDegradesToMemory(t *testing.T) {
	ctx := context.Background()
	s := NewFallbackStore(brokenStore{}, logger.NewNop())
	assert.False(t, s.Degraded())

	require.NoError(t, s.Set(ctx, "token", "tok"))
	assert.True(t, s.Degraded())

	v, ok, err := s.Get(ctx, "token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cfg := &config.Config{SessionBackend: BackendRedis, RedisHost: mr.Host(), RedisPort: mr.Port(),
		SessionProfile: "p", SessionTTL: time.Hour}
	store, closeFn, err := OpenStore(ctx, cfg, logger.NewNop())
	require.NoError(t, err)
	defer closeFn()
	require.NoError(t, store.Set(ctx, "token", "tok"))
	assert.True(t, mr.Exists("session:p:token"))

	cfg = &config.Config{SessionBackend: BackendFile, SessionDir: t.TempDir(), SessionProfile: "p"}
	store, _, err = OpenStore(ctx, cfg, logger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &FallbackStore{}, store)

	_, _, err = OpenStore(ctx, &config.Config{SessionBackend: "etcd"}, logger.NewNop())
	assert.Error(t, err)
}
