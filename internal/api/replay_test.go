package api

import (
	"strconv"
	"testing"
)

func TestReplayBuffer_Range(t *testing.T) {
	rb := NewReplayBuffer(100)
	for i := int64(1); i <= 10; i++ {
		rb.Push(i, []byte(strconv.FormatInt(i, 10)))
	}

	got := rb.Range(3, 7)
	if len(got) != 5 {
		t.Fatalf("Range(3,7): expected 5, got %d", len(got))
	}
	for i, e := range got {
		if want := strconv.Itoa(i + 3); string(e) != want {
			t.Errorf("entry[%d] = %s, want %s", i, e, want)
		}
	}
}

func TestReplayBuffer_Wraparound(t *testing.T) {
	rb := NewReplayBuffer(5)
	for i := int64(1); i <= 8; i++ {
		rb.Push(i, []byte(strconv.FormatInt(i, 10)))
	}

	if rb.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", rb.Len())
	}
	got := rb.Range(1, 10)
	if len(got) != 5 {
		t.Fatalf("Range(1,10): expected 5, got %d", len(got))
	}
	if string(got[0]) != "4" || string(got[4]) != "8" {
		t.Errorf("range = %s..%s, want 4..8", got[0], got[4])
	}
}

func TestReplayBuffer_CopiesInput(t *testing.T) {
	rb := NewReplayBuffer(2)
	buf := []byte("a")
	rb.Push(1, buf)
	buf[0] = 'b'
	if got := rb.Range(1, 1); string(got[0]) != "a" {
		t.Errorf("stored %q, want a", got[0])
	}
}

func TestReplayBuffer_Empty(t *testing.T) {
	if got := NewReplayBuffer(10).Range(1, 100); len(got) != 0 {
		t.Fatalf("empty buffer Range should return 0, got %d", len(got))
	}
}
