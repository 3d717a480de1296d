package curation

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"testing"

	"github.com/fpang/photo-story-curator/internal/batch"
	"github.com/fpang/photo-story-curator/internal/chat"
	"github.com/fpang/photo-story-curator/internal/state"
)

type stubService struct {
	proposals []chat.Proposal
	err       error

	gotSeed       string
	gotCandidates []string
}

func (s *stubService) ProposeSets(ctx context.Context, modelName, seedName string, candidates []chat.CandidateImage) ([]chat.Proposal, error) {
	s.gotSeed = seedName
	for _, c := range candidates {
		s.gotCandidates = append(s.gotCandidates, c.Name)
	}
	return s.proposals, s.err
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestPipeline(t *testing.T, svc Service) (*Pipeline, *batch.Store, *state.Store) {
	t.Helper()
	batches := batch.NewStore()
	runs := state.NewStore()
	p := New(batches, runs, svc, rand.New(rand.NewSource(11)))
	return p, batches, runs
}

func TestGenerateEndToEnd(t *testing.T) {
	svc := &stubService{
		proposals: []chat.Proposal{
			{Theme: "Visual Harmony", Story: "s", Reason: "r", Files: []string{"A", "C", "zzz-no-match"}},
		},
	}
	p, batches, runs := newTestPipeline(t, svc)

	img := pngBytes(t, 32, 32)
	for _, name := range []string{"A.png", "B.png", "C.png", "D.png", "E.png"} {
		batches.Put("sess", name, img)
	}

	run, err := p.Generate(context.Background(), "sess", "A.png", "test-model")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if svc.gotSeed != "A.png" {
		t.Errorf("service saw seed %q", svc.gotSeed)
	}
	if len(svc.gotCandidates) != 5 {
		t.Errorf("service saw %d candidates, want 5", len(svc.gotCandidates))
	}
	if svc.gotCandidates[0] != "A.png" {
		t.Errorf("first candidate sent = %q, want seed", svc.gotCandidates[0])
	}

	if len(run.Selections) != 1 {
		t.Fatalf("got %d selections, want 1", len(run.Selections))
	}
	sel := run.Selections[0]
	if len(sel.Assets) != SetSize {
		t.Fatalf("selection has %d assets, want %d: %v", len(sel.Assets), SetSize, sel.Assets)
	}
	if sel.Assets[0] != "A.png" {
		t.Errorf("seed not first: %v", sel.Assets)
	}
	if sel.Assets[1] != "C.png" {
		t.Errorf("resolved reference not second: %v", sel.Assets)
	}
	seen := map[string]bool{}
	for _, n := range sel.Assets {
		if seen[n] {
			t.Errorf("duplicate asset in %v", sel.Assets)
		}
		seen[n] = true
	}

	if run.GenerationID == "" {
		t.Error("run has no generation id")
	}
	if got := runs.Get("sess"); got == nil || got.GenerationID != run.GenerationID {
		t.Error("run not committed to state store")
	}
}

func TestGenerateSmallBatch(t *testing.T) {
	svc := &stubService{
		proposals: []chat.Proposal{{Theme: "t", Files: []string{"B"}}},
	}
	p, batches, _ := newTestPipeline(t, svc)

	img := pngBytes(t, 16, 16)
	batches.Put("sess", "A.png", img)
	batches.Put("sess", "B.png", img)
	batches.Put("sess", "C.png", img)

	run, err := p.Generate(context.Background(), "sess", "A.png", "m")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(run.Selections[0].Assets) != 3 {
		t.Errorf("selection = %v, want all 3 batch assets", run.Selections[0].Assets)
	}
}

func TestGenerateServiceFailurePreservesPriorRun(t *testing.T) {
	svc := &stubService{
		err: &chat.ServiceError{Type: chat.ErrTypeThrottled, Message: "rate limited"},
	}
	p, batches, runs := newTestPipeline(t, svc)

	batches.Put("sess", "A.png", pngBytes(t, 16, 16))
	prior := &state.Run{GenerationID: "gen-prior", SeedName: "A.png"}
	runs.Commit("sess", prior)

	_, err := p.Generate(context.Background(), "sess", "A.png", "m")
	if err == nil {
		t.Fatal("expected error from throttled service")
	}
	if !chat.IsThrottled(err) {
		t.Errorf("error not classified as throttled: %v", err)
	}

	if got := runs.Get("sess"); got == nil || got.GenerationID != "gen-prior" {
		t.Error("prior run was not preserved after failed run")
	}
}

func TestGenerateDropsUndecodableCandidates(t *testing.T) {
	svc := &stubService{
		proposals: []chat.Proposal{{Theme: "t", Files: nil}},
	}
	p, batches, _ := newTestPipeline(t, svc)

	img := pngBytes(t, 16, 16)
	batches.Put("sess", "A.png", img)
	batches.Put("sess", "broken.jpg", []byte("junk"))
	batches.Put("sess", "B.png", img)

	run, err := p.Generate(context.Background(), "sess", "A.png", "m")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	for _, name := range svc.gotCandidates {
		if name == "broken.jpg" {
			t.Error("undecodable candidate was sent to the service")
		}
	}
	if len(svc.gotCandidates) != 2 {
		t.Errorf("service saw %d candidates, want 2", len(svc.gotCandidates))
	}

	// The guarantor may still pad from the full batch, including the
	// undecodable asset: the original bytes exist, they just cannot be
	// re-encoded for the model.
	if len(run.Selections[0].Assets) != 3 {
		t.Errorf("selection = %v, want the 3 batch assets", run.Selections[0].Assets)
	}
}

func TestGenerateAllCandidatesUndecodable(t *testing.T) {
	p, batches, _ := newTestPipeline(t, &stubService{})
	batches.Put("sess", "a.jpg", []byte("junk"))

	_, err := p.Generate(context.Background(), "sess", "a.jpg", "m")
	if err == nil {
		t.Fatal("expected error when nothing can be encoded")
	}
}

func TestGenerateRandomSeed(t *testing.T) {
	svc := &stubService{proposals: []chat.Proposal{{Theme: "t"}}}
	p, batches, _ := newTestPipeline(t, svc)

	img := pngBytes(t, 16, 16)
	names := map[string]bool{"A.png": true, "B.png": true, "C.png": true, "D.png": true}
	for name := range names {
		batches.Put("sess", name, img)
	}

	run, err := p.Generate(context.Background(), "sess", "", "m")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if !names[run.SeedName] {
		t.Errorf("random seed %q not from batch", run.SeedName)
	}
	if run.Selections[0].Assets[0] != run.SeedName {
		t.Errorf("seed %q not first in %v", run.SeedName, run.Selections[0].Assets)
	}
}

func TestGenerateUnknownSeed(t *testing.T) {
	p, batches, _ := newTestPipeline(t, &stubService{})
	batches.Put("sess", "A.png", pngBytes(t, 16, 16))

	if _, err := p.Generate(context.Background(), "sess", "Z.png", "m"); err == nil {
		t.Error("expected error for unknown seed")
	}
}

func TestGenerateEmptyBatch(t *testing.T) {
	p, _, _ := newTestPipeline(t, &stubService{})
	if _, err := p.Generate(context.Background(), "sess", "", "m"); err == nil {
		t.Error("expected error for empty batch")
	}
}
