package cmap

import "testing"

func TestInsertIfAbsent(t *testing.T) {
	m := New[string, int]()

	if !m.InsertIfAbsent("a", 1) {
		t.Fatal("expected first insert to succeed")
	}
	if m.InsertIfAbsent("a", 2) {
		t.Fatal("expected second insert to fail")
	}
	v, _ := m.Get("a")
	if v != 1 {
		t.Errorf("expected value 1, got %d", v)
	}
}

func TestCallAndErase(t *testing.T) {
	m := New[string, int]()
	m.Set("a", 42)

	var seen int
	var existed bool
	m.CallAndErase("a", func(value int, exists bool) {
		seen = value
		existed = exists
	})

	if !existed || seen != 42 {
		t.Errorf("expected existed=true seen=42, got existed=%v seen=%d", existed, seen)
	}
	if m.Has("a") {
		t.Error("expected key to be erased")
	}

	// Erasing an absent key still invokes fn, with exists=false.
	called := false
	m.CallAndErase("missing", func(value int, exists bool) {
		called = true
		if exists {
			t.Error("expected exists=false for missing key")
		}
	})
	if !called {
		t.Error("expected fn to be called for missing key")
	}
}

func TestInitIfAbsentElseUpdate(t *testing.T) {
	m := New[string, int]()

	got := m.InitIfAbsentElseUpdate("counter",
		func() int { return 1 },
		func(v int) int { return v + 1 },
	)
	if got != 1 {
		t.Errorf("expected init value 1, got %d", got)
	}

	got = m.InitIfAbsentElseUpdate("counter",
		func() int { return 1 },
		func(v int) int { return v + 1 },
	)
	if got != 2 {
		t.Errorf("expected updated value 2, got %d", got)
	}
}

func TestTraverseCopyAllowsReentrancy(t *testing.T) {
	m := New[int, int]()
	for i := 0; i < 10; i++ {
		m.Set(i, i*10)
	}

	count := 0
	m.TraverseCopy(func(key, value int) bool {
		count++
		// Re-entrant read is safe because TraverseCopy already
		// snapshotted the data before invoking fn.
		m.Get(key)
		return true
	})

	if count != 10 {
		t.Errorf("expected 10 items, got %d", count)
	}
}
