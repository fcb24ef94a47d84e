package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestSetNXFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	set, err := client.SetNX(ctx, "zv:idempotency:evt:processed:razorpay-webhook:evt_1", "1", time.Hour)
	if err != nil {
		t.Fatalf("first SetNX: %v", err)
	}
	if !set {
		t.Fatal("first SetNX must claim the key")
	}

	set, err = client.SetNX(ctx, "zv:idempotency:evt:processed:razorpay-webhook:evt_1", "1", time.Hour)
	if err != nil {
		t.Fatalf("second SetNX: %v", err)
	}
	if set {
		t.Fatal("second SetNX must observe the existing key")
	}
}

func TestGetAfterDelReturnsNil(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	if err := client.Set(ctx, "zv:test:key", "cached-response", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, err := client.Get(ctx, "zv:test:key")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if value != "cached-response" {
		t.Fatalf("unexpected value %q", value)
	}

	if err := client.Del(ctx, "zv:test:key"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := client.Get(ctx, "zv:test:key"); err != redis.Nil {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
}

func TestIncrWithTTLSetsExpiryOnce(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	count, err := client.IncrWithTTL(ctx, "zv:counter:webhooks", time.Minute)
	if err != nil {
		t.Fatalf("first incr: %v", err)
	}
	if count != 1 || len(mock.expireCalls) != 1 {
		t.Fatalf("first increment should arm the TTL: count=%d expires=%d", count, len(mock.expireCalls))
	}

	count, err = client.IncrWithTTL(ctx, "zv:counter:webhooks", time.Minute)
	if err != nil {
		t.Fatalf("second incr: %v", err)
	}
	if count != 2 || len(mock.expireCalls) != 1 {
		t.Fatalf("TTL must not be re-armed: count=%d expires=%d", count, len(mock.expireCalls))
	}
}

func TestKeyBuildersUseNamespace(t *testing.T) {
	client := &Client{}
	cases := []struct {
		got  string
		want string
	}{
		{client.IdempotencyKey("http:POST:/orders/create", "key-1"), "zv:idempotency:http:POST:/orders/create:key-1"},
		{client.IdempotencyKey("scope", ""), "zv:idempotency:scope"},
		{client.CounterKey("webhook_hits"), "zv:counter:webhook_hits"},
		{client.LockKey("cron-worker"), "zv:lock:cron-worker"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("key %q, want %q", tc.got, tc.want)
		}
	}
}

type mockCmdable struct {
	data        map[string]string
	counters    map[string]int64
	expireCalls []expireCall
}

type expireCall struct {
	key string
	ttl time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data:     make(map[string]string),
		counters: make(map[string]int64),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	value, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.counters[key]++
	return redis.NewIntResult(m.counters[key], nil)
}

func (m *mockCmdable) Expire(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: ttl})
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
