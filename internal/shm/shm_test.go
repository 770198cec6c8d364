//go:build linux

package shm

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"
)

func TestCreateMapsSharedFile(t *testing.T) {
	r, err := Create("wlrsrc-test", 4096)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer r.Close()

	if r.Size() != 4096 {
		t.Fatalf("Size = %d, want 4096", r.Size())
	}

	// Writes through the descriptor must be visible in the mapping.
	if _, err := unix.Pwrite(r.Fd(), []byte{0xde, 0xad}, 10); err != nil {
		t.Fatalf("pwrite: %v", err)
	}
	if got := r.Bytes()[10:12]; got[0] != 0xde || got[1] != 0xad {
		t.Fatalf("mapping not shared: %x", got)
	}
}

func TestCreateRejectsInvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := Create("bad", size); !errors.Is(err, ErrInvalidSize) {
			t.Errorf("Create(%d) err = %v, want ErrInvalidSize", size, err)
		}
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	r, err := Create("wlrsrc-test", 64)
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if r.Bytes() != nil || r.Fd() != -1 {
		t.Fatal("region still references released resources")
	}
}
