package cache

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestCache(ttl time.Duration) (*TTL[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)}
	c := New[string](ttl)
	c.now = clock.now
	return c, clock
}

func TestTTLExpiry(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	c.Set("k", "v")

	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("Get = %q, %v; want v, true", v, ok)
	}

	clock.t = clock.t.Add(time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Error("expected entry to expire after ttl")
	}
	if c.Size() != 0 {
		t.Errorf("Size = %d, want 0", c.Size())
	}
}

func TestDisabledNeverStores(t *testing.T) {
	c := Disabled[string]()
	c.Set("k", "v")
	if _, ok := c.Get("k"); ok {
		t.Error("disabled cache returned a value")
	}
}

func TestSetEnabledClears(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Set("k", "v")
	c.SetEnabled(false)
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss while disabled")
	}
	c.SetEnabled(true)
	if _, ok := c.Get("k"); ok {
		t.Error("entries should not survive a disable")
	}
}

func TestClearAndDelete(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("expected a deleted")
	}
	c.Clear()
	if c.Size() != 0 {
		t.Errorf("Size = %d after Clear, want 0", c.Size())
	}
}

func TestCleanExpired(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	c.Set("old", "1")
	clock.t = clock.t.Add(30 * time.Second)
	c.Set("new", "2")
	clock.t = clock.t.Add(45 * time.Second)

	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired = %d, want 1", n)
	}
	if _, ok := c.Get("new"); !ok {
		t.Error("unexpired entry should remain")
	}
}

func TestGetOrLoad(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	calls := 0
	load := func() (string, error) {
		calls++
		return "loaded", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad("k", load)
		if err != nil || v != "loaded" {
			t.Fatalf("GetOrLoad = %q, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("load called %d times, want 1", calls)
	}

	boom := errors.New("boom")
	if _, err := c.GetOrLoad("fail", func() (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if _, ok := c.Get("fail"); ok {
		t.Error("failed loads must not be cached")
	}
}
