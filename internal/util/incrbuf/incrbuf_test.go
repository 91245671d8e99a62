package incrbuf

import "testing"

func TestAppendAndSinceWithinGeneration(t *testing.T) {
	b := New[string](100)
	b.Append(1, "a")
	b.Append(2, "b")
	b.Append(3, "c")

	var got []string
	resync := b.Since(1, func(c Change[string]) { got = append(got, c.Value) })

	if resync {
		t.Fatal("expected no resync needed")
	}
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("expected [b c], got %v", got)
	}
}

func TestRollsToNewGeneration(t *testing.T) {
	b := New[int](2)
	b.Append(1, 10)
	b.Append(2, 20)
	b.Append(3, 30) // rolls: gen0={1,2}, gen1={3}

	var got []int
	resync := b.Since(1, func(c Change[int]) { got = append(got, c.Value) })

	if resync {
		t.Fatal("expected no resync needed across generation roll")
	}
	if len(got) != 2 || got[0] != 20 || got[1] != 30 {
		t.Fatalf("expected [20 30], got %v", got)
	}
}

func TestFullResyncWhenGapExceedsRetention(t *testing.T) {
	b := New[int](2)
	b.Append(1, 10)
	b.Append(2, 20)
	b.Append(3, 30) // rolls, previous={1,2} dropped eventually
	b.Append(4, 40)
	b.Append(5, 50) // rolls again: previous={3,4}, current={5}; gen{1,2} gone

	resync := b.Since(1, func(c Change[int]) {})
	if !resync {
		t.Fatal("expected full resync required once the gap exceeds retained generations")
	}
}

func TestTrimDropsPreviousGeneration(t *testing.T) {
	b := New[int](2)
	b.Append(1, 10)
	b.Append(2, 20)
	b.Append(3, 30) // previous={1,2}, current={3}

	b.Trim()

	resync := b.Since(1, func(c Change[int]) {})
	if !resync {
		t.Fatal("expected resync required after trimming the generation covering lastSeen")
	}
}

func TestLatest(t *testing.T) {
	b := New[int](10)
	b.Append(5, 1)
	b.Append(9, 2)
	if b.Latest() != 9 {
		t.Fatalf("expected latest 9, got %d", b.Latest())
	}
}
