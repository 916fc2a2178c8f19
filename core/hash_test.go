package core

import (
	"testing"

	"github.com/peterldowns/testy/check"
)

func TestComputeReceiptHash_Deterministic(t *testing.T) {
	h1 := ComputeReceiptHash(42, "winner", 10000, "nonce-1")
	h2 := ComputeReceiptHash(42, "winner", 10000, "nonce-1")
	check.Equal(t, h1, h2)
	check.Equal(t, 64, len(h1)) // hex-encoded SHA-256
}

func TestComputeReceiptHash_InputSensitivity(t *testing.T) {
	base := ComputeReceiptHash(42, "winner", 10000, "nonce-1")

	check.NotEqual(t, base, ComputeReceiptHash(43, "winner", 10000, "nonce-1"))
	check.NotEqual(t, base, ComputeReceiptHash(42, "other", 10000, "nonce-1"))
	check.NotEqual(t, base, ComputeReceiptHash(42, "winner", 10001, "nonce-1"))
	check.NotEqual(t, base, ComputeReceiptHash(42, "winner", 10000, "nonce-2"))
}

func TestComputeEventHash(t *testing.T) {
	ev := &SecurityEvent{ID: 1, Type: "emergency-stop", Actor: "owner", Tick: 100, Detail: "set"}
	h1 := ComputeEventHash(ev)
	check.Equal(t, 64, len(h1))

	tampered := *ev
	tampered.Actor = "mallory"
	check.NotEqual(t, h1, ComputeEventHash(&tampered))
}
