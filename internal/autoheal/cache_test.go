package autoheal

import (
	"testing"
	"time"
)

func TestCachePutGetDelete(t *testing.T) {
	c := NewCache()
	if _, ok := c.Get("HighCpu"); ok {
		t.Fatal("want empty cache to miss")
	}

	c.Put("HighCpu", Entry{Namespace: "default", Name: "high-cpu-rule", Cooldown: 5 * time.Minute})
	e, ok := c.Get("HighCpu")
	if !ok || e.Name != "high-cpu-rule" {
		t.Fatalf("want cached entry, got %+v ok=%v", e, ok)
	}

	c.Delete("HighCpu")
	if _, ok := c.Get("HighCpu"); ok {
		t.Fatal("want deleted entry to miss")
	}
}

func TestCacheTouchUpdatesLastExecutionTime(t *testing.T) {
	c := NewCache()
	c.Put("HighCpu", Entry{Name: "high-cpu-rule"})

	now := time.Now()
	c.Touch("HighCpu", now)

	e, ok := c.Get("HighCpu")
	if !ok || !e.LastExecutionTime.Equal(now) {
		t.Fatalf("want LastExecutionTime=%v, got %+v", now, e)
	}
}

func TestCacheTouchOnMissingEntryIsNoop(t *testing.T) {
	c := NewCache()
	c.Touch("Nonexistent", time.Now())
	if _, ok := c.Get("Nonexistent"); ok {
		t.Fatal("want Touch to never create an entry")
	}
}
