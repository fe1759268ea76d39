package models

import "testing"

func TestCanAdvance(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, to string
		want     bool
	}{
		{StatusBacklog, StatusPlanned, true},
		{StatusPending, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusInProgress, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusInReview, StatusPending, false},
		{StatusBlocked, StatusInProgress, false},
		{StatusDeferred, StatusCompleted, false},
		{StatusPending, StatusBlocked, false},
		{"bogus", StatusCompleted, false},
	}
	for _, c := range cases {
		if got := CanAdvance(c.from, c.to); got != c.want {
			t.Errorf("CanAdvance(%q, %q) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestStatusRank(t *testing.T) {
	t.Parallel()

	if _, ok := StatusRank(StatusBlocked); ok {
		t.Error("blocked should not have an ordered rank")
	}
	if _, ok := StatusRank(StatusDeferred); ok {
		t.Error("deferred should not have an ordered rank")
	}
	prev := -1
	for _, s := range []string{StatusBacklog, StatusPlanned, StatusPending, StatusInProgress, StatusInReview, StatusCompleted} {
		r, ok := StatusRank(s)
		if !ok {
			t.Fatalf("StatusRank(%q): not ordered", s)
		}
		if r <= prev {
			t.Fatalf("StatusRank(%q) = %d, not increasing", s, r)
		}
		prev = r
	}
}

func TestValidStatus(t *testing.T) {
	t.Parallel()

	for _, s := range []string{StatusBacklog, StatusBlocked, StatusDeferred, StatusCompleted} {
		if !ValidStatus(s) {
			t.Errorf("ValidStatus(%q) = false", s)
		}
	}
	if ValidStatus("done") {
		t.Error(`ValidStatus("done") = true`)
	}
}
