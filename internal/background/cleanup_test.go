package background

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type mockOTPStore struct {
	calls atomic.Int64
}

func (m *mockOTPStore) ClearExpiredOTPs(ctx context.Context) (int64, error) {
	m.calls.Add(1)
	return 2, nil
}

func TestCleanupManager_RunsImmediatelyAndStops(t *testing.T) {
	store := &mockOTPStore{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cm := NewCleanupManager(store, logger, time.Hour)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return store.calls.Load() >= 1
	}, time.Second, 10*time.Millisecond, "cleanup should run on startup")

	cm.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop")
	}
}

func TestCleanupManager_StopsOnContextCancel(t *testing.T) {
	store := &mockOTPStore{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cm := NewCleanupManager(store, logger, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not honor context cancellation")
	}
}
