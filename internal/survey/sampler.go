package survey

import (
	"math/rand/v2"
	"time"

	"github.com/pavelanni/eqarena/internal/model"
)

// NewSeededRand returns a generator seeded from the given wall-clock time.
// A session seeds exactly one generator when it starts.
func NewSeededRand(t time.Time) *rand.Rand {
	seed := uint64(t.UnixNano())
	return rand.New(rand.NewPCG(seed, seed>>32|1))
}

// Sample draws min(len(pool), k) distinct questions from pool. Negative k draws none.
// When the pool already fits, it is returned in loaded order. The input is never mutated.
func Sample(pool []model.Question, k int, rng *rand.Rand) []model.Question {
	k = max(k, 0)
	if len(pool) <= k {
		out := make([]model.Question, len(pool))
		copy(out, pool)
		return out
	}

	remaining := make([]model.Question, len(pool))
	copy(remaining, pool)

	out := make([]model.Question, 0, k)
	for len(out) < k && len(remaining) > 0 {
		i := rng.IntN(len(remaining))
		out = append(out, remaining[i])
		remaining = append(remaining[:i], remaining[i+1:]...)
	}
	return out
}
