package utils_test

import (
	"testing"

	"occ.dev/compiler/pkg/utils"
)

func TestOrderedMapPreservesInsertionOrder(t *testing.T) {
	m := utils.NewOrderedMap[string, int]()
	m.Set("b", 2)
	m.Set("a", 1)
	m.Set("c", 3)

	want := []string{"b", "a", "c"}
	got := m.Keys()
	if len(got) != len(want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	for i, k := range want {
		if got[i] != k {
			t.Errorf("Keys()[%d] = %q, want %q", i, got[i], k)
		}
	}
}

func TestOrderedMapOverwritePreservesPosition(t *testing.T) {
	m := utils.NewOrderedMap[string, int]()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("a", 99)

	if got := m.Keys(); got[0] != "a" || got[1] != "b" {
		t.Errorf("Keys() = %v, want [a b] with a's original position kept", got)
	}
	v, ok := m.Get("a")
	if !ok || v != 99 {
		t.Errorf("Get(a) = %d, %v, want 99, true", v, ok)
	}
}

func TestOrderedMapAddRejectsDuplicates(t *testing.T) {
	m := utils.NewOrderedMap[string, int]()
	if err := m.Add("x", 1); err != nil {
		t.Fatalf("first Add: %s", err)
	}
	if err := m.Add("x", 2); err == nil {
		t.Fatal("expected an error adding a duplicate key")
	}
}

func TestOrderedMapGetMissingKey(t *testing.T) {
	m := utils.NewOrderedMap[string, int]()
	if _, ok := m.Get("missing"); ok {
		t.Fatal("expected Get on a missing key to return ok=false")
	}
}

func TestStackPushTopPop(t *testing.T) {
	s := utils.NewStack[int]()
	if _, err := s.Top(); err == nil {
		t.Fatal("expected Top() on an empty stack to fail")
	}
	s.Push(1)
	s.Push(2)
	top, err := s.Top()
	if err != nil || top != 2 {
		t.Fatalf("Top() = %d, %v, want 2, nil", top, err)
	}
	popped, err := s.Pop()
	if err != nil || popped != 2 {
		t.Fatalf("Pop() = %d, %v, want 2, nil", popped, err)
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1 after one push and one pop", s.Count())
	}
}
