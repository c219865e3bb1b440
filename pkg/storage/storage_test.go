package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-chat/config"
	"github.com/feichai0017/document-chat/pkg/logger"
	"github.com/feichai0017/document-chat/pkg/storage/local"
)

// memStore is a remote-style backend without local paths.
type memStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	thresholds []time.Time
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) Store(ctx context.Context, r io.Reader, key string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return key, nil
}

func (m *memStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *memStore) CleanupBefore(ctx context.Context, threshold time.Time) error {
	m.mu.Lock()
	m.thresholds = append(m.thresholds, threshold)
	m.mu.Unlock()
	return nil
}

func TestMaterialize_LocalBackendUsesPathDirectly(t *testing.T) {
	store, err := local.NewLocalStorage(t.TempDir(), logger.NewTestLogger())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Store(ctx, strings.NewReader("abc"), "uploads/a.txt")
	require.NoError(t, err)

	p, cleanup, err := Materialize(ctx, store, "uploads/a.txt")
	require.NoError(t, err)
	require.NoError(t, cleanup())

	// cleanup must not remove the stored object
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}

func TestMaterialize_RemoteBackendDownloadsCopy(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	_, err := store.Store(ctx, strings.NewReader("remote"), "uploads/b.csv")
	require.NoError(t, err)

	p, cleanup, err := Materialize(ctx, store, "uploads/b.csv")
	require.NoError(t, err)
	assert.Equal(t, ".csv", filepath.Ext(p))

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "remote", string(data))

	require.NoError(t, cleanup())
	_, err = os.Stat(p)
	assert.True(t, os.IsNotExist(err))
	assert.Contains(t, store.objects, "uploads/b.csv")
}

func TestMaterialize_MissingObject(t *testing.T) {
	_, cleanup, err := Materialize(context.Background(), newMemStore(), "uploads/none.txt")
	assert.Error(t, err)
	assert.NoError(t, cleanup())
}

func TestNewStorage_Local(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Backend: config.StorageLocal, TempDir: t.TempDir()}}
	store, err := NewStorage(context.Background(), cfg, logger.NewTestLogger())
	require.NoError(t, err)
	_, ok := store.(LocalPather)
	assert.True(t, ok)
}

func TestNewStorage_Unknown(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Backend: "ftp"}}
	_, err := NewStorage(context.Background(), cfg, logger.NewTestLogger())
	assert.Error(t, err)
}

func TestSweeper_Sweep(t *testing.T) {
	store := newMemStore()
	s := NewSweeper(store, time.Hour, time.Minute, logger.NewTestLogger())
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	s.Sweep(context.Background())

	require.Len(t, store.thresholds, 1)
	assert.Equal(t, fixed.Add(-time.Hour), store.thresholds[0])
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	store := newMemStore()
	s := NewSweeper(store, time.Hour, 10*time.Millisecond, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.thresholds) >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeper_Disabled(t *testing.T) {
	store := newMemStore()
	log := logger.NewTestLogger()
	NewSweeper(store, 0, time.Minute, log).Run(context.Background())
	assert.Empty(t, store.thresholds)
	assert.True(t, log.Has("INFO", "disabled"))
}
