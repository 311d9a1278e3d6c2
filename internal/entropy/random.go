// Package entropy supplies seeds and seeded random sources for the engines.
// Every simulation draws from an owned *rand.Rand so that a run is fully
// reproducible from its seed; crypto/rand is only used to pick a seed when
// the caller did not supply one.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	mrand "math/rand"
	"time"
)

// NewSeed returns a fresh non-negative seed from crypto/rand. It falls back
// to the wall clock if the system source fails.
func NewSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		slog.Warn("crypto seed failed, using clock", "error", err)
		return time.Now().UnixNano() & (1<<63 - 1)
	}
	return int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
}

// NewRand returns a source seeded with seed.
func NewRand(seed int64) *mrand.Rand {
	return mrand.New(mrand.NewSource(seed))
}

// Derive returns the k-th child seed of seed. Children of one parent are
// well separated even for adjacent k, so replicate runs do not share
// streams.
func Derive(seed int64, k int) int64 {
	z := uint64(seed) + uint64(k+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	return int64(z >> 1)
}

// CryptoFloat returns a uniform float64 in [0, 1) from crypto/rand.
func CryptoFloat() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0.5
	}
	// 53 bits for a uniform float64.
	n := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(1<<53)
}
