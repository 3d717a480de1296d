// Package curation implements the photo story curation pipeline: candidate
// sampling, the curation service round trip, reference resolution, and the
// four-photo cardinality guarantee.
package curation

import (
	"fmt"
	"math/rand"
)

// MaxExtraCandidates is the cap on non-seed candidates per run, keeping the
// curation request small and fast (25 candidates total with the seed).
const MaxExtraCandidates = 24

// SetSize is the number of photos in a finalized set.
const SetSize = 4

// SampleCandidates returns an ordered candidate list whose first element is
// the seed, followed by a uniform no-replacement sample of the other assets
// capped at max. With fewer than max others, all are included.
//
// names is the full batch in upload order; the order of the sampled tail is
// the shuffle order. Deterministic given a fixed rng.
func SampleCandidates(names []string, seed string, max int, rng *rand.Rand) ([]string, error) {
	found := false
	others := make([]string, 0, len(names))
	for _, n := range names {
		if n == seed {
			found = true
			continue
		}
		others = append(others, n)
	}
	if !found {
		return nil, fmt.Errorf("seed %q not in batch", seed)
	}

	rng.Shuffle(len(others), func(i, j int) {
		others[i], others[j] = others[j], others[i]
	})
	if len(others) > max {
		others = others[:max]
	}

	return append([]string{seed}, others...), nil
}
