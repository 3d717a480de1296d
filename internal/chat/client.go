package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// NewGeminiClient creates a Gemini API client for the given API key.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// supportsGeneration reports whether the model can serve GenerateContent calls.
func supportsGeneration(m *genai.Model) bool {
	for _, action := range m.SupportedActions {
		if action == "generateContent" {
			return true
		}
	}
	return false
}

// ProbeModel picks a usable model from the service's model listing, preferring
// the fast flash family, then the pro family, then any generation-capable
// model. It runs before any image bytes are transmitted so a dead credential
// never costs an upload.
//
// Returns a ServiceError of type ErrTypeNoModel when the listing succeeds but
// contains no usable model, or ErrTypeUnavailable/ErrTypeThrottled when the
// listing itself fails.
func ProbeModel(ctx context.Context, client *genai.Client) (string, error) {
	var available []string

	for model, err := range client.Models.All(ctx) {
		if err != nil {
			return "", classifyServiceError(fmt.Errorf("list models: %w", err))
		}
		if supportsGeneration(model) {
			available = append(available, strings.TrimPrefix(model.Name, "models/"))
		}
	}

	log.Debug().Int("count", len(available)).Msg("Generation-capable models listed")

	for _, family := range []string{"flash", "pro"} {
		for _, name := range available {
			if strings.Contains(name, family) {
				log.Info().Str("model", name).Str("family", family).Msg("Model selected by probe")
				return name, nil
			}
		}
	}

	if len(available) > 0 {
		log.Info().Str("model", available[0]).Msg("Model selected by probe (first available)")
		return available[0], nil
	}

	return "", &ServiceError{
		Type:    ErrTypeNoModel,
		Message: "no usable model available for this API key",
	}
}
