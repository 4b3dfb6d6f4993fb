package auth_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/aebaduq/arabsocial-chat/internal/auth"
)

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.yaml")
	s := auth.NewFileStore(path)

	tok, err := s.Load()
	require.NoError(t, err)
	require.Empty(t, tok)

	require.NoError(t, s.Save("abc"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	tok, err = s.Load()
	require.NoError(t, err)
	require.Equal(t, "abc", tok)

	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())
	tok, err = s.Load()
	require.NoError(t, err)
	require.Empty(t, tok)
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte("token: [oops"), 0600))

	_, err := auth.NewFileStore(path).Load()
	require.Error(t, err)
}

func TestHolder_SetPersistsAndNotifies(t *testing.T) {
	store := auth.NewFileStore(filepath.Join(t.TempDir(), "session.yaml"))
	h := auth.NewHolder("", store, zaptest.NewLogger(t))
	var seen []string
	sub := h.Watch(func(tok string) { seen = append(seen, tok) })

	require.NoError(t, h.Set("  t1 \n"))
	require.NoError(t, h.Set("t1"))
	require.NoError(t, h.Set("t2"))
	require.Equal(t, "t2", h.Token())

	stored, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, "t2", stored)

	require.NoError(t, h.Clear())
	require.Empty(t, h.Token())
	stored, err = store.Load()
	require.NoError(t, err)
	require.Empty(t, stored)

	sub.Release()
	require.NoError(t, h.Set("t3"))

	require.Equal(t, []string{"t1", "t2", ""}, seen)
}

func TestHolder_SetEmptyClears(t *testing.T) {
	h := auth.NewHolder("start", nil, zaptest.NewLogger(t))

	require.NoError(t, h.Set("   "))

	require.Empty(t, h.Token())
}

type failingStore struct{}

func (failingStore) Save(string) error { return errors.New("disk full") }
func (failingStore) Clear() error      { return nil }

func TestHolder_PersistErrorStillUpdates(t *testing.T) {
	h := auth.NewHolder("", failingStore{}, zaptest.NewLogger(t))

	err := h.Set("tok")

	require.ErrorContains(t, err, "disk full")
	require.Equal(t, "tok", h.Token())
}

type fakeConn struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeConn) Connect(_ context.Context, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "connect:"+token)
}

func (f *fakeConn) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "disconnect")
}

func (f *fakeConn) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

func TestBind_FollowsToken(t *testing.T) {
	h := auth.NewHolder("t1", nil, zap.NewNop())
	conn := &fakeConn{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- auth.Bind(ctx, h, conn, zap.NewNop()) }()

	require.Eventually(t, func() bool { return conn.last() == "connect:t1" }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, h.Set("t2"))
	require.Eventually(t, func() bool { return conn.last() == "connect:t2" }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, h.Clear())
	require.Eventually(t, func() bool { return conn.last() == "disconnect" }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.Equal(t, "disconnect", conn.last())
}
