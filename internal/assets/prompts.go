// Package assets provides embedded static assets for the application.
//
// Prompt templates are stored as text files under prompts/ and embedded at
// compile time.
package assets

import (
	_ "embed"
)

// CurationSystemPrompt provides context and the output-format directive for
// the photo story curation task.
//
//go:embed prompts/curation-system.txt
var CurationSystemPrompt string
