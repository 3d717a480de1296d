// Package bundle materializes downloadable archives for finalized selections.
//
// Both tiers are pure functions of (selection, original bytes): no run
// history, no service calls, and stable output bytes, so a bundle can be
// recomputed identically whenever a download is served.
package bundle

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-story-curator/internal/filehandler"
	"github.com/fpang/photo-story-curator/internal/state"
)

// Tier identifies a download quality tier.
type Tier string

const (
	// TierOriginal is the original-fidelity bundle: untouched uploaded bytes.
	TierOriginal Tier = "orig"
	// TierReduced is the size-reduced bundle for sharing.
	TierReduced Tier = "sns"
)

// storyEntryName is the narrative text entry included in every archive.
const storyEntryName = "story.txt"

// Fetch looks up an asset's original bytes by name.
type Fetch func(name string) ([]byte, error)

// ArchiveName returns the archive filename for one proposal and tier.
// It embeds the proposal's position and the run's generation identifier so
// repeated runs in one session never collide in the browser's downloads.
func ArchiveName(tier Tier, planIndex int, generationID string) string {
	return fmt.Sprintf("%s_plan_%d_%s.zip", tier, planIndex+1, generationID)
}

// StoryText renders the narrative entry for a selection.
func StoryText(sel state.Selection) string {
	return fmt.Sprintf("Theme: %s\n\nStory:\n%s\n\nReason:\n%s\n", sel.Theme, sel.Narrative, sel.Rationale)
}

// OriginalArchive builds the original-fidelity bundle: each selected asset's
// untouched bytes under its original filename, plus the story entry.
func OriginalArchive(sel state.Selection, fetch Fetch) ([]byte, error) {
	return buildArchive(sel, fetch, func(name string, data []byte) ([]byte, error) {
		return data, nil
	})
}

// ReducedArchive builds the size-reduced bundle: each selected asset
// downscaled so neither dimension exceeds 2048, normalized to 3-channel
// color, and re-encoded as JPEG at quality 90, under its original filename,
// plus the story entry. Assets that cannot be re-encoded fall back to their
// original bytes so the set is never short.
func ReducedArchive(sel state.Selection, fetch Fetch) ([]byte, error) {
	return buildArchive(sel, fetch, func(name string, data []byte) ([]byte, error) {
		reduced, err := filehandler.DownscaleJPEG(name, data,
			filehandler.ReducedMaxDimension, filehandler.ReducedJPEGQuality)
		if err != nil {
			log.Warn().Err(err).Str("asset", name).Msg("Reduced re-encode failed, using original bytes")
			return data, nil
		}
		return reduced, nil
	})
}

// buildArchive writes one zip archive with the selection's assets transformed
// by encode, followed by the story entry. Entries carry no timestamps so the
// archive bytes are identical on every recomputation.
func buildArchive(sel state.Selection, fetch Fetch, encode func(name string, data []byte) ([]byte, error)) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	for _, name := range sel.Assets {
		data, err := fetch(name)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", name, err)
		}
		entryData, err := encode(name, data)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}

		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("create entry %s: %w", name, err)
		}
		if _, err := w.Write(entryData); err != nil {
			return nil, fmt.Errorf("write entry %s: %w", name, err)
		}
	}

	w, err := zw.CreateHeader(&zip.FileHeader{Name: storyEntryName, Method: zip.Deflate})
	if err != nil {
		return nil, fmt.Errorf("create story entry: %w", err)
	}
	if _, err := w.Write([]byte(StoryText(sel))); err != nil {
		return nil, fmt.Errorf("write story entry: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}

	return buf.Bytes(), nil
}
