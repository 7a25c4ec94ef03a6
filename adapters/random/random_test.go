package random_test

import (
	"testing"

	"github.com/scality/utapi/adapters/random"
)

func TestReal_Bytes_Length(t *testing.T) {
	r := random.Real{}
	b, err := r.Bytes(16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b) != 16 {
		t.Errorf("len(b) = %d, want 16", len(b))
	}
}

func TestFake_Bytes_Deterministic(t *testing.T) {
	r := random.NewFake([]byte{1, 2, 3, 4})
	b1, _ := r.Bytes(4)
	if b1[0] != 1 || b1[1] != 2 {
		t.Errorf("unexpected fake bytes: %v", b1)
	}
}

func TestFake_Bytes_Empty(t *testing.T) {
	r := random.NewFake()
	b, err := r.Bytes(8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b) != 8 {
		t.Errorf("len(b) = %d, want 8", len(b))
	}
}
