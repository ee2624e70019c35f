package database

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/storymine-hq/storymine-engine/pkg/config"
)

func newTestManager(connect connectFunc) *Manager {
	m := NewManager(&config.DatabaseConfig{}, zap.NewNop())
	m.connect = connect
	return m
}

func TestManager_Connect_Success(t *testing.T) {
	m := newTestManager(func(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
		return &DB{}, nil
	})

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Connected() {
		t.Error("expected connected state")
	}
	if m.Attempts() != 1 {
		t.Errorf("expected 1 attempt, got %d", m.Attempts())
	}
}

func TestManager_Connect_ExhaustsThreeAttempts(t *testing.T) {
	m := newTestManager(func(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
		return nil, errors.New("connection refused")
	})

	start := time.Now()
	err := m.Connect(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if m.Connected() {
		t.Error("expected degraded state")
	}
	if m.Attempts() != 3 {
		t.Errorf("expected 3 attempts, got %d", m.Attempts())
	}
	// Two 2s pauses between the three attempts.
	if elapsed := time.Since(start); elapsed < 3*time.Second {
		t.Errorf("expected backoff between attempts, elapsed %v", elapsed)
	}
}

func TestManager_Connect_PermanentErrorFailsFast(t *testing.T) {
	m := newTestManager(func(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
		return nil, errors.New("password authentication failed for user")
	})

	start := time.Now()
	if err := m.Connect(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if m.Attempts() != 1 {
		t.Errorf("expected a single attempt for a permanent error, got %d", m.Attempts())
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("permanent errors should not wait out the backoff, elapsed %v", elapsed)
	}
}

func TestManager_Connect_SucceedsOnSecondAttempt(t *testing.T) {
	calls := 0
	m := newTestManager(func(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("connection refused")
		}
		return &DB{}, nil
	})

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Connected() {
		t.Error("expected connected state")
	}
	if m.Attempts() != 2 {
		t.Errorf("expected 2 attempts, got %d", m.Attempts())
	}
}

func TestManager_ReconnectLoop_StopsOnceConnected(t *testing.T) {
	// The connect func runs on the reconnect goroutine, so the counter must
	// be atomic.
	var count atomic.Int32
	m := newTestManager(func(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
		if count.Add(1) < 2 {
			return nil, errors.New("connection refused")
		}
		return &DB{}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.StartReconnectLoop(ctx, 10*time.Millisecond)

	deadline := time.After(2 * time.Second)
	for !m.Connected() {
		select {
		case <-deadline:
			t.Fatal("reconnect loop never connected")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// Wait out a few more ticks and ensure no further attempts happen.
	time.Sleep(50 * time.Millisecond)
	if got := count.Load(); got != 2 {
		t.Errorf("expected loop to stop after connecting, got %d attempts", got)
	}
}

func TestManager_ReconnectLoop_StopsOnContextCancel(t *testing.T) {
	var count atomic.Int32
	m := newTestManager(func(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
		count.Add(1)
		return nil, errors.New("connection refused")
	})

	ctx, cancel := context.WithCancel(context.Background())
	m.StartReconnectLoop(ctx, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)
	after := count.Load()
	time.Sleep(30 * time.Millisecond)
	if got := count.Load(); got != after {
		t.Error("expected no attempts after cancellation")
	}
}

func TestManager_Get_NilWhenDegraded(t *testing.T) {
	m := newTestManager(func(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
		return nil, errors.New("down")
	})
	if m.Get() != nil {
		t.Error("expected nil handle before any connection")
	}
}
