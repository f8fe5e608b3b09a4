//go:build unix

package xregistry

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_WatchSignals(t *testing.T) {
	r, _ := newTestRegistry(t)
	w := &fakeWriter{}
	_, err := r.Register(filepath.Join(t.TempDir(), "a.log"), w)
	require.NoError(t, err)

	// 先接管 SIGUSR1，避免 Notify 生效前信号终止进程
	guardCh := make(chan os.Signal, 1)
	signal.Notify(guardCh, syscall.SIGUSR1)
	defer signal.Stop(guardCh)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.WatchSignals(ctx, syscall.SIGUSR1) }()

	require.Eventually(t, func() bool {
		_ = syscall.Kill(syscall.Getpid(), syscall.SIGUSR1)
		return w.reopens.Load() >= 1
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestDefaultReopenSignals(t *testing.T) {
	assert.Equal(t, []os.Signal{syscall.SIGHUP}, defaultReopenSignals())
}
