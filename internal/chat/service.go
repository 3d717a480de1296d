package chat

import (
	"context"

	"google.golang.org/genai"
)

// Curator adapts a Gemini client to the pipeline's curation service boundary.
type Curator struct {
	Client *genai.Client
}

// ProposeSets sends one aggregate curation request and returns the parsed
// proposals.
func (c *Curator) ProposeSets(ctx context.Context, modelName, seedName string, candidates []CandidateImage) ([]Proposal, error) {
	return AskStoryCuration(ctx, c.Client, modelName, seedName, candidates)
}
