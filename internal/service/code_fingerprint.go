package service

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// codeFingerprint 卡码指纹，日志中只记录指纹不落明文
func codeFingerprint(code string) string {
	sum := blake2b.Sum256([]byte(code))
	return hex.EncodeToString(sum[:6])
}

func codeFingerprints(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		out = append(out, codeFingerprint(code))
	}
	return out
}
