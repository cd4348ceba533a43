package fn

import (
	"strconv"
	"testing"
)

func TestMap(t *testing.T) {
	got := Map([]int{1, 2, 3}, strconv.Itoa)
	want := []string{"1", "2", "3"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Map[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFilter(t *testing.T) {
	got := Filter([]int{1, 2, 3, 4}, func(n int) bool { return n%2 == 0 })
	if len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Errorf("Filter = %v, want [2 4]", got)
	}
}

func TestChunk(t *testing.T) {
	got := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}
	if len(got[2]) != 1 || got[2][0] != 5 {
		t.Errorf("last chunk = %v, want [5]", got[2])
	}
	if Chunk([]int{1}, 0) != nil {
		t.Error("Chunk with n<=0 should be nil")
	}
}

func TestUnique(t *testing.T) {
	got := Unique([]string{"a", "b", "a", "c", "b"})
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("Unique = %v", got)
	}
}

func TestParMap_PreservesOrder(t *testing.T) {
	in := make([]int, 100)
	for i := range in {
		in[i] = i
	}
	out := ParMap(in, 8, func(n int) int { return n * n })
	for i, v := range out {
		if v != i*i {
			t.Fatalf("out[%d] = %d, want %d", i, v, i*i)
		}
	}
}

func TestParMap_Empty(t *testing.T) {
	out := ParMap(nil, 4, func(n int) int { return n })
	if len(out) != 0 {
		t.Errorf("expected empty output, got %v", out)
	}
}
