package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/photo-story-curator/internal/assets"
	"github.com/fpang/photo-story-curator/internal/jsonutil"
)

// ProposalSlots is the number of curation proposals requested per run.
// Responses with more are truncated; fewer are tolerated.
const ProposalSlots = 3

// CandidateImage is one encoded candidate sent to the curation model.
type CandidateImage struct {
	// Name is the display filename the model is told to reference.
	Name string
	// JPEG is the bounded-resolution re-encoding of the asset.
	JPEG []byte
	// Context is an optional one-line capture metadata summary.
	Context string
}

// Proposal is one theme-labeled four-photo suggestion from the model.
// Files are the model's best-effort references to candidate names; they are
// not guaranteed to match exactly and go through the reference resolver.
type Proposal struct {
	Theme  string   `json:"theme"`
	Story  string   `json:"story"`
	Reason string   `json:"reason"`
	Files  []string `json:"files"`
}

// AskStoryCuration sends the candidate images to Gemini and asks for three
// four-photo sets anchored by the seed. One aggregate request per run; the
// candidate order in the request is stable.
func AskStoryCuration(ctx context.Context, client *genai.Client, modelName, seedName string, candidates []CandidateImage) ([]Proposal, error) {
	log.Info().
		Int("candidates", len(candidates)).
		Str("seed", seedName).
		Str("model", modelName).
		Msg("Starting story curation with Gemini")

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: assets.CurationSystemPrompt}},
		},
	}

	// Each image is followed by a text label carrying its filename, so the
	// model can reference candidates by name.
	var parts []*genai.Part
	for _, c := range candidates {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: "image/jpeg",
				Data:     c.JPEG,
			},
		})
		label := "filename: " + c.Name
		if c.Context != "" {
			label += " (" + c.Context + ")"
		}
		parts = append(parts, &genai.Part{Text: label})
	}
	parts = append(parts, &genai.Part{Text: BuildCurationPrompt(seedName, len(candidates))})

	contents := []*genai.Content{{Role: "user", Parts: parts}}

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, modelName, contents, config)
	elapsed := time.Since(start)

	if err != nil {
		return nil, classifyServiceError(err)
	}
	if resp == nil {
		log.Warn().Msg("Received empty response from Gemini")
		return nil, &ServiceError{
			Type:    ErrTypeUnavailable,
			Message: "received empty response from Gemini API",
		}
	}

	raw := resp.Text()
	log.Info().
		Int("response_length", len(raw)).
		Dur("duration", elapsed).
		Msg("Curation response received")

	return parseCurationResponse(raw)
}

// BuildCurationPrompt creates the closing instruction for the curation
// request, parameterized by the seed filename.
func BuildCurationPrompt(seedName string, candidateCount int) string {
	var sb strings.Builder

	sb.WriteString("## Curation Request\n\n")
	sb.WriteString(fmt.Sprintf("The %d photos above are the working set. ", candidateCount))
	sb.WriteString(fmt.Sprintf("Build three four-photo sets, each anchored by the seed photo %q.\n\n", seedName))
	sb.WriteString("Pick files only from the labeled list and write filenames exactly as labeled.\n")
	sb.WriteString("Respond with ONLY the JSON array specified in the system instruction. No other text.\n")

	return sb.String()
}

// parseCurationResponse extracts and parses the proposal array from the
// model's response text. The raw body is preserved on the error for
// diagnostics when parsing fails.
func parseCurationResponse(raw string) ([]Proposal, error) {
	proposals, err := jsonutil.ParseArray[Proposal](raw)
	if err != nil {
		log.Error().Err(err).Int("raw_length", len(raw)).Msg("Failed to parse curation response")
		return nil, &ServiceError{
			Type:    ErrTypeMalformed,
			Message: "curation response did not contain a parseable proposal array",
			Err:     err,
			Raw:     raw,
		}
	}

	if len(proposals) == 0 {
		return nil, &ServiceError{
			Type:    ErrTypeMalformed,
			Message: "curation response contained an empty proposal array",
			Raw:     raw,
		}
	}

	if len(proposals) > ProposalSlots {
		log.Warn().
			Int("got", len(proposals)).
			Int("slots", ProposalSlots).
			Msg("Curation response exceeded proposal slots, truncating")
		proposals = proposals[:ProposalSlots]
	}

	log.Debug().Int("proposals", len(proposals)).Msg("Curation response parsed")
	return proposals, nil
}
