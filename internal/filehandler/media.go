// Package filehandler decodes uploaded photos and produces the derived JPEG
// encodings the pipeline sends to Gemini and packs into download bundles.
package filehandler

import (
	"path/filepath"
	"strings"
)

// supportedExtensions is the photo format allowlist for uploads.
var supportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".heic": true,
	".heif": true,
	".webp": true,
}

// IsSupported reports whether the filename has a supported photo extension.
func IsSupported(name string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// MIMEForName returns the MIME type implied by the filename's extension.
func MIMEForName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
