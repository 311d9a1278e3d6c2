package engine

import "math/rand"

// sample draws k distinct elements uniformly from xs without replacement,
// using a partial Fisher-Yates shuffle on a copy. xs is not modified.
// k is clamped to [0, len(xs)].
func sample[T any](rng *rand.Rand, xs []T, k int) []T {
	if k <= 0 {
		return nil
	}
	if k > len(xs) {
		k = len(xs)
	}
	pool := append([]T(nil), xs...)
	for i := 0; i < k; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}
