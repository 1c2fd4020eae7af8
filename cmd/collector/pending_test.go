package main

import "testing"

func TestPendingSet(t *testing.T) {
	p := newPendingSet()

	if !p.Add("metro") {
		t.Fatal("first add should report new")
	}
	if p.Add("metro") {
		t.Fatal("second add should report already pending")
	}
	if !p.Has("metro") || p.Has("tram") {
		t.Fatal("membership wrong")
	}
	if p.Len() != 1 {
		t.Fatalf("len %d, want 1", p.Len())
	}

	p.Remove("metro")
	if p.Has("metro") || p.Len() != 0 {
		t.Fatal("remove did not clear the keyword")
	}
	// Removing an absent keyword is a no-op.
	p.Remove("ghost")
}
