package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bluehorizon/skydesk/pkg/config"
)

func TestTryLockAndUnlock(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	ok, err := client.TryLock(ctx, "k", "owner-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first TryLock to win, ok=%v err=%v", ok, err)
	}
	ok, err = client.TryLock(ctx, "k", "owner-2", time.Minute)
	if err != nil || ok {
		t.Fatalf("expected second TryLock to lose, ok=%v err=%v", ok, err)
	}

	released, err := client.Unlock(ctx, "k", "owner-2")
	if err != nil || released {
		t.Fatalf("foreign owner must not unlock, released=%v err=%v", released, err)
	}
	released, err = client.Unlock(ctx, "k", "owner-1")
	if err != nil || !released {
		t.Fatalf("owner should unlock, released=%v err=%v", released, err)
	}
	if _, ok := mock.data["k"]; ok {
		t.Fatalf("key should be gone after unlock")
	}
	if mock.scripts[0] != unlockScript {
		t.Fatalf("unexpected script %q", mock.scripts[0])
	}
}

func TestUnlockPropagatesErrors(t *testing.T) {
	mock := newMockCmdable()
	mock.evalErr = errors.New("NOSCRIPT")
	client := &Client{store: mock}
	if _, err := client.Unlock(context.Background(), "k", "o"); err == nil {
		t.Fatalf("expected eval error")
	}
}

func TestPublishRecordsChannel(t *testing.T) {
	mock := newMockCmdable()
	client := &Client{store: mock}

	if _, err := client.Publish(context.Background(), "skydesk:events:x", `{"name":"mutation-sent"}`); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if len(mock.published) != 1 || mock.published[0] != "skydesk:events:x" {
		t.Fatalf("unexpected publish calls %+v", mock.published)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.LockKey("prod", "outbox-sweep"); got != "skydesk:lock:prod:outbox-sweep" {
		t.Fatalf("unexpected lock key %s", got)
	}
	if got := client.EventChannel("desktop", " "); got != "skydesk:events:desktop" {
		t.Fatalf("blank scope should be skipped, got %s", got)
	}
}

func TestDisconnectedClient(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); !errors.Is(err, errNotConnected) {
		t.Fatalf("expected errNotConnected, got %v", err)
	}
	if _, err := client.TryLock(context.Background(), "k", "o", time.Second); !errors.Is(err, errNotConnected) {
		t.Fatalf("expected errNotConnected, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on nil raw should be a no-op: %v", err)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatalf("expected error when redis is not configured")
	}
	opts, err := optionsFromConfig(config.RedisConfig{Address: "localhost:6380", PoolSize: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "localhost:6380" || opts.PoolSize != 3 {
		t.Fatalf("unexpected options %+v", opts)
	}

	opts, err = optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/4", DB: 2, ReadTimeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 4 || opts.ReadTimeout != time.Second {
		t.Fatalf("url db should win and timeouts fill in, got db=%d read=%s", opts.DB, opts.ReadTimeout)
	}
}

type mockCmdable struct {
	data      map[string]string
	published []string
	scripts   []string
	evalErr   error
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string)}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	m.scripts = append(m.scripts, script)
	if m.evalErr != nil {
		return redis.NewCmdResult(nil, m.evalErr)
	}
	if m.data[keys[0]] == fmt.Sprint(args[0]) {
		delete(m.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (m *mockCmdable) Publish(_ context.Context, channel string, _ any) *redis.IntCmd {
	m.published = append(m.published, channel)
	return redis.NewIntResult(1, nil)
}
