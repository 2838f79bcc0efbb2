// Package similarity holds the two pure comparison functions the matching
// pipeline is built on: bit-level distance between image fingerprints and
// cosine similarity between text embeddings. Neither has state or side
// effects.
package similarity

import (
	"errors"
	"math"
	"math/big"
	"math/bits"
)

// ErrMalformedFingerprint is returned when a fingerprint is not parseable as
// hexadecimal or two fingerprints have different bit lengths.
var ErrMalformedFingerprint = errors.New("malformed fingerprint")

// HammingDistance interprets two equal-length hexadecimal strings as
// equal-bit-length integers and returns the count of differing bits.
//
// Malformed or unequal-length inputs must not look like a perfect match, so
// the maximum possible distance is returned alongside
// ErrMalformedFingerprint; callers log the incident and treat the pair as a
// non-match.
func HammingDistance(a, b string) (int, error) {
	if a == "" || b == "" || len(a) != len(b) {
		return maxDistance(a, b), ErrMalformedFingerprint
	}

	ai, ok := new(big.Int).SetString(a, 16)
	if !ok {
		return maxDistance(a, b), ErrMalformedFingerprint
	}
	bi, ok := new(big.Int).SetString(b, 16)
	if !ok {
		return maxDistance(a, b), ErrMalformedFingerprint
	}

	xor := new(big.Int).Xor(ai, bi)
	distance := 0
	for _, word := range xor.Bits() {
		distance += bits.OnesCount(uint(word))
	}
	return distance, nil
}

// maxDistance is the bit length of the longer input, i.e. the worst case.
func maxDistance(a, b string) int {
	n := max(len(a), len(b))
	return n * 4
}

// Cosine returns the normalized dot product of two vectors, in [-1, 1].
// Vectors of unequal length are non-comparable and score 0, as does any
// zero-magnitude vector; callers routinely hold records whose embeddings are
// absent or malformed, so this never fails.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
