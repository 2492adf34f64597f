package phase

import "testing"

func TestChainOrder(t *testing.T) {
	want := []Phase{Prep, Staffing, PreShow, Active, PostShow, Complete, Archived}
	if len(Chain) != len(want) {
		t.Fatalf("chain has %d phases, want %d", len(Chain), len(want))
	}
	for i, p := range want {
		if Chain[i] != p {
			t.Fatalf("chain[%d] = %s, want %s", i, Chain[i], p)
		}
	}
}

func TestSuccessorWalksTheChain(t *testing.T) {
	cur := Prep
	for i := 0; i < len(Chain)-1; i++ {
		next, ok := Successor(cur)
		if !ok {
			t.Fatalf("%s has no successor", cur)
		}
		if next != Chain[i+1] {
			t.Fatalf("successor of %s = %s, want %s", cur, next, Chain[i+1])
		}
		cur = next
	}
	if _, ok := Successor(Archived); ok {
		t.Fatal("archived must be terminal")
	}
	if _, ok := Successor(Phase("bogus")); ok {
		t.Fatal("unknown phase must have no successor")
	}
}

func TestParse(t *testing.T) {
	for _, p := range Chain {
		got, err := Parse(string(p))
		if err != nil || got != p {
			t.Fatalf("Parse(%q) = %s, %v", p, got, err)
		}
	}
	for _, s := range []string{"", "preshow", "PREP", "done"} {
		if _, err := Parse(s); err == nil {
			t.Fatalf("Parse(%q) should fail", s)
		}
	}
}

func TestBefore(t *testing.T) {
	if !Before(Prep, Archived) {
		t.Fatal("prep is before archived")
	}
	if Before(Active, Active) {
		t.Fatal("a phase is not before itself")
	}
	if Before(Complete, Staffing) {
		t.Fatal("complete is not before staffing")
	}
	if Before(Phase("bogus"), Active) || Before(Active, Phase("bogus")) {
		t.Fatal("unknown phases compare as not-before")
	}
}
