package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

type entry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func openTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache", "meetlens.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })
	return s, &now
}

func TestSetGet(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", entry{Name: "réunion", Count: 3}, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	var got entry
	ok, err := s.Get(ctx, "k", &got)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v; want hit", ok, err)
	}
	if got != (entry{Name: "réunion", Count: 3}) {
		t.Errorf("Get = %+v", got)
	}

	ok, err = s.Get(ctx, "missing", &got)
	if err != nil || ok {
		t.Errorf("Get(missing) = %v, %v; want miss", ok, err)
	}
}

func TestSetOverwrites(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	_ = s.Set(ctx, "k", entry{Count: 1}, time.Minute)
	_ = s.Set(ctx, "k", entry{Count: 2}, time.Minute)

	var got entry
	if ok, _ := s.Get(ctx, "k", &got); !ok || got.Count != 2 {
		t.Errorf("Get = %+v (hit %v), want Count 2", got, ok)
	}
}

func TestExpiry(t *testing.T) {
	s, now := openTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "short", entry{Count: 1}, time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "default", entry{Count: 2}, 0); err != nil {
		t.Fatal(err)
	}

	*now = now.Add(2 * time.Minute)

	var got entry
	if ok, err := s.Get(ctx, "short", &got); err != nil || ok {
		t.Errorf("expired entry: hit=%v err=%v", ok, err)
	}
	// Zero ttl falls back to DefaultTTL.
	if ok, err := s.Get(ctx, "default", &got); err != nil || !ok {
		t.Errorf("default ttl entry: hit=%v err=%v", ok, err)
	}

	*now = now.Add(DefaultTTL)
	n, err := s.ClearExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("ClearExpired removed %d, want 1", n)
	}
}

func TestRemoveAndClear(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	_ = s.Set(ctx, "a", entry{}, time.Minute)
	_ = s.Set(ctx, "b", entry{}, time.Minute)

	if err := s.Remove(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	var got entry
	if ok, _ := s.Get(ctx, "a", &got); ok {
		t.Error("removed key still present")
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Get(ctx, "b", &got); ok {
		t.Error("cleared key still present")
	}
}

func TestClosedStore(t *testing.T) {
	s, _ := openTestStore(t)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	var got entry
	if _, err := s.Get(context.Background(), "k", &got); !errors.Is(err, ErrClosed) {
		t.Errorf("Get after Close = %v, want ErrClosed", err)
	}
	if err := s.Set(context.Background(), "k", got, time.Minute); !errors.Is(err, ErrClosed) {
		t.Errorf("Set after Close = %v, want ErrClosed", err)
	}
}

func TestGenerateKey(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 1, 0, 0, 0, time.FixedZone("CET", 3600))
	got := GenerateKey("meetings", start, end)
	want := "meetings-2024-01-01T00:00:00.000Z-2024-01-31T00:00:00.000Z"
	if got != want {
		t.Errorf("GenerateKey = %s, want %s", got, want)
	}
}
