package service

import (
	crand "crypto/rand"
	"math/big"
	"strings"
)

const (
	syntheticCodeAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	syntheticCodeLength    = 16
	syntheticCodeGroupSize = 4
)

var syntheticAlphabetSize = big.NewInt(int64(len(syntheticCodeAlphabet)))

// GenerateSyntheticCode 生成 XXXX-XXXX-XXXX-XXXX 格式的兜底卡码，随机源不可用时返回空串
func GenerateSyntheticCode() string {
	var builder strings.Builder
	builder.Grow(syntheticCodeLength + syntheticCodeLength/syntheticCodeGroupSize)
	for i := 0; i < syntheticCodeLength; i++ {
		if i > 0 && i%syntheticCodeGroupSize == 0 {
			builder.WriteByte('-')
		}
		n, err := crand.Int(crand.Reader, syntheticAlphabetSize)
		if err != nil {
			return ""
		}
		builder.WriteByte(syntheticCodeAlphabet[n.Int64()])
	}
	return builder.String()
}
