package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newMiniredisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client), mr
}

func TestTracker_DefaultsToMemoryStore(t *testing.T) {
	tracker := NewTracker(nil, zerolog.Nop())
	if _, ok := tracker.store.(*MemoryStore); !ok {
		t.Fatalf("store = %T, want *MemoryStore", tracker.store)
	}
}

func TestTracker_RecordThrottle(t *testing.T) {
	redisStore, _ := newMiniredisStore(t)

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  redisStore,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			tracker := NewTracker(store, zerolog.Nop())
			ctx := context.Background()

			state, err := tracker.GetState(ctx)
			if err != nil {
				t.Fatalf("GetState() error = %v", err)
			}
			if state.Rejections != 0 {
				t.Errorf("initial Rejections = %d, want 0", state.Rejections)
			}
			if state.Recent(time.Minute) {
				t.Error("initial state should have no recent rejection")
			}

			if err := tracker.RecordThrottle(ctx, 503); err != nil {
				t.Fatalf("RecordThrottle() error = %v", err)
			}
			if err := tracker.RecordThrottle(ctx, 429); err != nil {
				t.Fatalf("RecordThrottle() error = %v", err)
			}

			state, err = tracker.GetState(ctx)
			if err != nil {
				t.Fatalf("GetState() error = %v", err)
			}
			if state.Rejections != 2 {
				t.Errorf("Rejections = %d, want 2", state.Rejections)
			}
			if state.LastStatus != 429 {
				t.Errorf("LastStatus = %d, want 429", state.LastStatus)
			}
			if !state.Recent(time.Minute) {
				t.Error("state should report a recent rejection")
			}
			if state.IsStale(time.Minute) {
				t.Error("state should not be stale right after an update")
			}
		})
	}
}

func TestRedisStore_SharedBetweenTrackers(t *testing.T) {
	store, mr := newMiniredisStore(t)
	ctx := context.Background()

	first := NewTracker(store, zerolog.Nop())
	if err := first.RecordThrottle(ctx, 503); err != nil {
		t.Fatalf("RecordThrottle() error = %v", err)
	}

	otherClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer otherClient.Close()
	second := NewTracker(NewRedisStore(otherClient), zerolog.Nop())

	state, err := second.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Rejections != 1 || state.LastStatus != 503 {
		t.Errorf("state = %+v, want one 503 rejection", state)
	}
}

func TestRedisStore_CorruptTimestamp(t *testing.T) {
	store, mr := newMiniredisStore(t)

	if err := mr.Set(RedisKeyRejections, "1"); err != nil {
		t.Fatalf("seed rejections: %v", err)
	}
	if err := mr.Set(RedisKeyLastRejectedAt, "not-json"); err != nil {
		t.Fatalf("seed timestamp: %v", err)
	}

	if _, err := store.Load(context.Background()); err == nil {
		t.Error("Load() should fail on a corrupt timestamp")
	}
}

func TestRedisStore_Unavailable(t *testing.T) {
	store, mr := newMiniredisStore(t)
	mr.Close()

	tracker := NewTracker(store, zerolog.Nop())
	if err := tracker.RecordThrottle(context.Background(), 503); err == nil {
		t.Error("RecordThrottle() should fail when redis is down")
	}
	if _, err := tracker.GetState(context.Background()); err == nil {
		t.Error("GetState() should fail when redis is down")
	}
}
