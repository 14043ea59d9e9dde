package budget

import "testing"

func TestNewRemainingEqualsWindow(t *testing.T) {
	tr := New(1000)
	if got := tr.Remaining(); got != 1000 {
		t.Errorf("Remaining() = %d, want 1000", got)
	}
}

func TestAddReducesRemaining(t *testing.T) {
	tr := New(1000)
	tr.Add(100, 50)
	if got := tr.Remaining(); got != 850 {
		t.Errorf("Remaining() = %d, want 850", got)
	}
	if got := tr.Used(); got != 150 {
		t.Errorf("Used() = %d, want 150", got)
	}
}

func TestRemainingNeverNegative(t *testing.T) {
	tr := New(100)
	tr.Add(200, 0)
	if got := tr.Remaining(); got != 0 {
		t.Errorf("Remaining() = %d, want 0", got)
	}
	if !tr.Exhausted() {
		t.Error("Exhausted() = false, want true")
	}
}

func TestShouldCompactCrossesHeadroom(t *testing.T) {
	tr := New(1000)
	if tr.ShouldCompact() {
		t.Fatal("ShouldCompact() = true before any usage")
	}
	tr.Add(800, 0) // remaining = 200 = 20% < 25% headroom
	if !tr.ShouldCompact() {
		t.Error("ShouldCompact() = false, want true once remaining < headroom fraction")
	}
}

func TestShouldCompactZeroWindow(t *testing.T) {
	tr := New(0)
	if tr.ShouldCompact() {
		t.Error("ShouldCompact() = true with zero-size window, want false (no budget tracking)")
	}
}
