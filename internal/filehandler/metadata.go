package filehandler

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// CaptureContext returns a one-line EXIF summary (capture time, GPS) for
// inclusion next to the asset's name in the curation prompt. Returns ""
// when the bytes carry no readable metadata; absence is never an error.
func CaptureContext(name string, data []byte) string {
	exifData, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		log.Debug().Err(err).Str("asset", name).Msg("No EXIF metadata available")
		return ""
	}

	var parts []string

	if !exifData.DateTimeOriginal().IsZero() {
		parts = append(parts, "taken "+exifData.DateTimeOriginal().Format("2006-01-02 15:04"))
	} else if !exifData.CreateDate().IsZero() {
		parts = append(parts, "taken "+exifData.CreateDate().Format("2006-01-02 15:04"))
	}

	gps := exifData.GPS
	if gps.Latitude() != 0 || gps.Longitude() != 0 {
		parts = append(parts, fmt.Sprintf("GPS %.4f,%.4f", gps.Latitude(), gps.Longitude()))
	}

	if model := strings.TrimSpace(exifData.Model); model != "" {
		parts = append(parts, model)
	}

	return strings.Join(parts, "; ")
}
