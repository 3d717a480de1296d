package curation

import (
	"math/rand"
	"testing"
)

func TestResolveReferencesSubstring(t *testing.T) {
	candidates := []string{"IMG_001.jpg", "IMG_002.jpg"}

	got := ResolveReferences([]string{"IMG_001"}, candidates, "")
	if len(got) != 1 || got[0] != "IMG_001.jpg" {
		t.Errorf("ResolveReferences = %v, want [IMG_001.jpg]", got)
	}
}

func TestResolveReferencesEitherDirection(t *testing.T) {
	// Token longer than the candidate name also matches.
	got := ResolveReferences([]string{"photos/IMG_001.jpg"}, []string{"IMG_001.jpg"}, "")
	if len(got) != 1 || got[0] != "IMG_001.jpg" {
		t.Errorf("ResolveReferences = %v, want [IMG_001.jpg]", got)
	}
}

func TestResolveReferencesCaseInsensitive(t *testing.T) {
	got := ResolveReferences([]string{"img_001"}, []string{"IMG_001.JPG"}, "")
	if len(got) != 1 || got[0] != "IMG_001.JPG" {
		t.Errorf("ResolveReferences = %v, want [IMG_001.JPG]", got)
	}
}

func TestResolveReferencesNoDuplicates(t *testing.T) {
	// Two tokens that both match the same candidate: first wins, second
	// falls through to the next candidate or nothing.
	candidates := []string{"IMG_001.jpg", "IMG_0012.jpg"}
	got := ResolveReferences([]string{"IMG_001", "IMG_001"}, candidates, "")
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 distinct matches", got)
	}
	if got[0] == got[1] {
		t.Errorf("duplicate in output: %v", got)
	}
}

func TestResolveReferencesTokenOrder(t *testing.T) {
	candidates := []string{"A.jpg", "B.jpg", "C.jpg"}
	got := ResolveReferences([]string{"C", "A"}, candidates, "")
	if len(got) != 2 || got[0] != "C.jpg" || got[1] != "A.jpg" {
		t.Errorf("ResolveReferences = %v, want [C.jpg A.jpg] (token order)", got)
	}
}

func TestResolveReferencesSkipsSeedAndMisses(t *testing.T) {
	candidates := []string{"A.jpg", "B.jpg"}
	got := ResolveReferences([]string{"A", "zzz-no-match", "B"}, candidates, "A.jpg")
	if len(got) != 1 || got[0] != "B.jpg" {
		t.Errorf("ResolveReferences = %v, want [B.jpg] (seed handled separately, miss skipped)", got)
	}
}

func TestResolveReferencesEmptyToken(t *testing.T) {
	got := ResolveReferences([]string{"", "  "}, []string{"A.jpg"}, "")
	if len(got) != 0 {
		t.Errorf("empty tokens should match nothing, got %v", got)
	}
}

func TestFinalizeSelectionPadsToFour(t *testing.T) {
	pool := []string{"A.jpg", "B.jpg", "C.jpg", "D.jpg", "E.jpg"}
	rng := rand.New(rand.NewSource(3))

	got := FinalizeSelection("A.jpg", []string{"C.jpg"}, pool, rng)
	if len(got) != SetSize {
		t.Fatalf("got %d assets, want %d", len(got), SetSize)
	}
	if got[0] != "A.jpg" {
		t.Errorf("first asset = %q, want seed A.jpg", got[0])
	}
	if got[1] != "C.jpg" {
		t.Errorf("second asset = %q, want resolved C.jpg", got[1])
	}

	seen := map[string]bool{}
	for _, n := range got {
		if seen[n] {
			t.Errorf("duplicate asset %q in %v", n, got)
		}
		seen[n] = true
	}
	for _, n := range got[2:] {
		if n != "B.jpg" && n != "D.jpg" && n != "E.jpg" {
			t.Errorf("pad asset %q not from unused pool", n)
		}
	}
}

func TestFinalizeSelectionTruncatesOverResolution(t *testing.T) {
	pool := []string{"A.jpg", "B.jpg", "C.jpg", "D.jpg", "E.jpg", "F.jpg"}
	resolved := []string{"B.jpg", "C.jpg", "D.jpg", "E.jpg", "F.jpg"}

	got := FinalizeSelection("A.jpg", resolved, pool, rand.New(rand.NewSource(1)))
	if len(got) != SetSize {
		t.Errorf("got %d assets, want %d", len(got), SetSize)
	}
}

func TestFinalizeSelectionSeedEchoedInResolved(t *testing.T) {
	pool := []string{"A.jpg", "B.jpg", "C.jpg", "D.jpg"}

	got := FinalizeSelection("A.jpg", []string{"A.jpg", "B.jpg"}, pool, rand.New(rand.NewSource(1)))
	if got[0] != "A.jpg" {
		t.Errorf("seed not first: %v", got)
	}
	count := 0
	for _, n := range got {
		if n == "A.jpg" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("seed appears %d times in %v, want 1", count, got)
	}
}

func TestFinalizeSelectionSmallBatch(t *testing.T) {
	pool := []string{"A.jpg", "B.jpg", "C.jpg"}

	got := FinalizeSelection("A.jpg", nil, pool, rand.New(rand.NewSource(1)))
	if len(got) != len(pool) {
		t.Errorf("got %d assets, want batch size %d", len(got), len(pool))
	}
	if got[0] != "A.jpg" {
		t.Errorf("seed not first: %v", got)
	}
}
