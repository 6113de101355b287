package common

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// MakeRandHexString generates a random hexadecimal string of the given size.
// The final string length is twice the size.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// WipeByteArray overwrites the contents of b with zeros. Nil is a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// NowMillis returns the current wall clock as milliseconds since the epoch,
// the unit used for every lastModifiedAt and serverTime value.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
