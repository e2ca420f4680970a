package domain

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// HashID derives the canonical 16-character transaction ID from the string
// form of any value. SHAKE-256 has no seeding, so the same logical input
// yields the same ID across runs and platforms — the property that makes
// loading idempotent (upsert by primary key).
func HashID(v any) string {
	var digest [8]byte
	sha3.ShakeSum256(digest[:], []byte(fmt.Sprint(v)))
	return hex.EncodeToString(digest[:])
}
