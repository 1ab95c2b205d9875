package service

import (
	"strings"
	"testing"
)

func TestCodeFingerprintHidesPlaintext(t *testing.T) {
	fp := codeFingerprint("STEAM-ABCD-1234")
	if len(fp) != 12 {
		t.Fatalf("fingerprint length want 12 got %d (%s)", len(fp), fp)
	}
	if strings.Contains(fp, "ABCD") {
		t.Fatalf("fingerprint leaks plaintext: %s", fp)
	}
	if fp != codeFingerprint("STEAM-ABCD-1234") {
		t.Fatalf("fingerprint must be stable")
	}
	if fp == codeFingerprint("STEAM-ABCD-1235") {
		t.Fatalf("different codes should not share a fingerprint")
	}
	if got := codeFingerprints([]string{"a", "b"}); len(got) != 2 || got[0] == got[1] {
		t.Fatalf("unexpected fingerprints: %v", got)
	}
}
