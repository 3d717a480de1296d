package curation

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fpang/photo-story-curator/internal/batch"
	"github.com/fpang/photo-story-curator/internal/chat"
	"github.com/fpang/photo-story-curator/internal/filehandler"
	"github.com/fpang/photo-story-curator/internal/state"
)

// DefaultEncodeWorkers bounds the parallel candidate encoding pool.
const DefaultEncodeWorkers = 4

// Service is the curation model boundary. chat.Client satisfies it in
// production; tests supply a stub.
type Service interface {
	ProposeSets(ctx context.Context, modelName, seedName string, candidates []chat.CandidateImage) ([]chat.Proposal, error)
}

// Pipeline runs one curation generation end to end: sample, encode, ask the
// service, resolve references, guarantee set cardinality, and commit the run.
type Pipeline struct {
	Batches       *batch.Store
	Runs          *state.Store
	Service       Service
	EncodeWorkers int

	randMu sync.Mutex
	rng    *rand.Rand
}

// New creates a Pipeline. rng is the source for candidate sampling and
// fallback padding; tests pass a seeded source to fix the output.
func New(batches *batch.Store, runs *state.Store, service Service, rng *rand.Rand) *Pipeline {
	return &Pipeline{
		Batches:       batches,
		Runs:          runs,
		Service:       service,
		EncodeWorkers: DefaultEncodeWorkers,
		rng:           rng,
	}
}

// runRand derives an independent random source for one run. *rand.Rand is
// not safe for concurrent use across sessions.
func (p *Pipeline) runRand() *rand.Rand {
	p.randMu.Lock()
	defer p.randMu.Unlock()
	return rand.New(rand.NewSource(p.rng.Int63()))
}

// Generate executes one run for the session. seedName anchors every set; an
// empty seedName draws one uniformly from the batch. modelName of "" falls
// back to the configured default.
//
// On any service failure nothing is committed and the session's prior run
// stays served. Per-candidate decode failures only drop that candidate.
func (p *Pipeline) Generate(ctx context.Context, sessionID, seedName, modelName string) (*state.Run, error) {
	names := p.Batches.Names(sessionID)
	if len(names) == 0 {
		return nil, fmt.Errorf("no photos uploaded for session")
	}

	rng := p.runRand()

	if seedName == "" {
		seedName = names[rng.Intn(len(names))]
		log.Info().Str("seed", seedName).Msg("Seed drawn at random")
	}
	if !p.Batches.Contains(sessionID, seedName) {
		return nil, fmt.Errorf("seed %q not in batch", seedName)
	}

	if modelName == "" {
		modelName = chat.GetModelName()
	}

	candidateNames, err := SampleCandidates(names, seedName, MaxExtraCandidates, rng)
	if err != nil {
		return nil, err
	}

	candidates, err := p.encodeCandidates(ctx, sessionID, candidateNames)
	if err != nil {
		return nil, err
	}

	proposals, err := p.Service.ProposeSets(ctx, modelName, seedName, candidates)
	if err != nil {
		return nil, err
	}

	run := &state.Run{
		GenerationID: uuid.NewString(),
		SeedName:     seedName,
		Model:        modelName,
		CreatedAt:    time.Now(),
	}

	candNames := make([]string, len(candidates))
	for i, c := range candidates {
		candNames[i] = c.Name
	}

	for _, prop := range proposals {
		resolved := ResolveReferences(prop.Files, candNames, seedName)
		assets := FinalizeSelection(seedName, resolved, names, rng)
		run.Selections = append(run.Selections, state.Selection{
			Theme:     prop.Theme,
			Narrative: prop.Story,
			Rationale: prop.Reason,
			Assets:    assets,
		})
	}

	p.Runs.Commit(sessionID, run)

	log.Info().
		Str("session", sessionID).
		Str("generation", run.GenerationID).
		Str("seed", seedName).
		Int("selections", len(run.Selections)).
		Msg("Curation run committed")

	return run, nil
}

// encodeCandidates produces the bounded-resolution JPEGs for the curation
// request on a bounded worker pool, preserving candidate order. Assets whose
// bytes cannot be decoded are dropped; the run proceeds with the rest.
func (p *Pipeline) encodeCandidates(ctx context.Context, sessionID string, names []string) ([]chat.CandidateImage, error) {
	workers := p.EncodeWorkers
	if workers <= 0 {
		workers = DefaultEncodeWorkers
	}

	encoded := make([]*chat.CandidateImage, len(names))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			data, err := p.Batches.Get(sessionID, name)
			if err != nil {
				return err
			}

			jpegData, err := filehandler.DownscaleJPEG(name, data, filehandler.EncodeMaxDimension, 85)
			if err != nil {
				log.Warn().Err(err).Str("asset", name).Msg("Candidate dropped: undecodable image")
				return nil
			}

			encoded[i] = &chat.CandidateImage{
				Name:    name,
				JPEG:    jpegData,
				Context: filehandler.CaptureContext(name, data),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates := make([]chat.CandidateImage, 0, len(names))
	for _, c := range encoded {
		if c != nil {
			candidates = append(candidates, *c)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidate could be decoded")
	}

	log.Debug().
		Int("requested", len(names)).
		Int("encoded", len(candidates)).
		Msg("Candidate encoding complete")

	return candidates, nil
}
