package stoplist

import (
	"testing"
)

func TestSetBasic(t *testing.T) {
	s := New([]string{"the", "a"}, []string{"and"})
	if !s.IsStop("the") || !s.IsStop("and") {
		t.Error("expected list words to be stopwords")
	}
	if s.IsStop("printer") {
		t.Error("'printer' should not be a stopword")
	}
	if s.Len() != 3 {
		t.Errorf("Len = %d, want 3", s.Len())
	}
}

func TestNilSet(t *testing.T) {
	var s *Set
	if s.IsStop("the") {
		t.Error("nil set should stop nothing")
	}
	if s.Len() != 0 || s.All() != nil {
		t.Error("nil set should be empty")
	}
	if !s.With("x").IsStop("x") {
		t.Error("With on nil set should still add words")
	}
}

func TestWithDoesNotMutate(t *testing.T) {
	base := New([]string{"the"})
	ext := base.With("ticket")
	if base.IsStop("ticket") {
		t.Error("With mutated the receiver")
	}
	if !ext.IsStop("ticket") || !ext.IsStop("the") {
		t.Error("extended set missing words")
	}
}

func TestDomain(t *testing.T) {
	d := Domain()
	for _, w := range []string{"the", "please", "ticket", "attachment", "x000d"} {
		if !d.IsStop(w) {
			t.Errorf("%q should be a domain stopword", w)
		}
	}
	for _, w := range []string{"vpn", "printer", "password"} {
		if d.IsStop(w) {
			t.Errorf("%q should not be a domain stopword", w)
		}
	}
	all := d.All()
	for i := 1; i < len(all); i++ {
		if all[i-1] >= all[i] {
			t.Fatalf("All not sorted at %d: %q >= %q", i, all[i-1], all[i])
		}
	}
}
