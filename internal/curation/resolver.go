package curation

import (
	"math/rand"
	"strings"
)

// ResolveReferences maps the model's file tokens back to candidate names.
//
// A token matches a candidate when either contains the other,
// case-insensitively — this tolerates truncated extensions, added prefixes,
// and minor formatting drift. First match wins per token; a matched candidate
// is removed from further consideration, so the output has no duplicates.
// Output order follows the token order, not the candidate order.
//
// The seed is never matched here; it is inserted separately by
// FinalizeSelection. Tokens that match nothing are silently skipped —
// under-resolution is expected and repaired by the cardinality guarantee.
func ResolveReferences(tokens, candidates []string, seed string) []string {
	remaining := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c != seed {
			remaining = append(remaining, c)
		}
	}

	var resolved []string
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		lowTok := strings.ToLower(token)

		for i, cand := range remaining {
			lowCand := strings.ToLower(cand)
			if strings.Contains(lowCand, lowTok) || strings.Contains(lowTok, lowCand) {
				resolved = append(resolved, cand)
				remaining = append(remaining[:i], remaining[i+1:]...)
				break
			}
		}
	}

	return resolved
}

// FinalizeSelection produces the final ordered photo set: the seed first,
// then the resolved references, topped up to SetSize by uniform sampling of
// unused pool assets. The result has exactly SetSize distinct names unless
// the whole pool (plus seed) is smaller, in which case everything is used.
func FinalizeSelection(seed string, resolved, pool []string, rng *rand.Rand) []string {
	final := []string{seed}
	used := map[string]bool{seed: true}

	for _, name := range resolved {
		if len(final) == SetSize {
			break
		}
		if used[name] {
			continue
		}
		final = append(final, name)
		used[name] = true
	}

	if len(final) < SetSize {
		unused := make([]string, 0, len(pool))
		for _, name := range pool {
			if !used[name] {
				unused = append(unused, name)
			}
		}
		rng.Shuffle(len(unused), func(i, j int) {
			unused[i], unused[j] = unused[j], unused[i]
		})
		for _, name := range unused {
			if len(final) == SetSize {
				break
			}
			final = append(final, name)
		}
	}

	return final
}
