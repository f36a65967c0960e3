package rag_service

import "testing"

func TestComputeFileHash(t *testing.T) {
	a := ComputeFileHash([]byte("the same bytes"))
	b := ComputeFileHash([]byte("the same bytes"))
	c := ComputeFileHash([]byte("different bytes"))

	if a != b {
		t.Error("identical content must hash identically")
	}
	if a == c {
		t.Error("different content must hash differently")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex characters", len(a))
	}

	// Known digest of the empty input.
	if got := ComputeFileHash(nil); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("empty input digest = %s", got)
	}
}
