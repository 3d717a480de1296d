package filehandler

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	xdraw "golang.org/x/image/draw"

	_ "image/png"

	_ "golang.org/x/image/webp"
)

// EncodeMaxDimension is the bound on either dimension of candidate JPEGs sent
// to the curation model.
const EncodeMaxDimension = 1024

// ReducedMaxDimension is the bound on either dimension in the reduced-size
// download bundle.
const ReducedMaxDimension = 2048

// ReducedJPEGQuality is the JPEG quality for reduced-size bundle entries.
const ReducedJPEGQuality = 90

// DecodeError reports that an asset's bytes could not be interpreted as an
// image. The caller drops the affected asset and continues.
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DownscaleJPEG decodes an asset, downscales it so neither dimension exceeds
// maxDimension, normalizes to 3-channel color, and re-encodes as JPEG at the
// given quality. The original bytes are never modified.
//
// JPEG/PNG/WebP decode in pure Go; HEIC/HEIF go through ffmpeg when available.
// Returns a *DecodeError when the bytes cannot be read as an image.
func DownscaleJPEG(name string, data []byte, maxDimension, quality int) ([]byte, error) {
	img, err := decodeImage(name, data)
	if err != nil {
		return nil, &DecodeError{Name: name, Err: err}
	}

	bounds := img.Bounds()
	origWidth := bounds.Dx()
	origHeight := bounds.Dy()
	newWidth, newHeight := fitDimensions(origWidth, origHeight, maxDimension)

	// Drawing onto an RGBA canvas normalizes palette and gray images; the
	// JPEG encoder then emits 3-channel YCbCr.
	canvas := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	if newWidth == origWidth && newHeight == origHeight {
		draw.Draw(canvas, canvas.Bounds(), img, bounds.Min, draw.Src)
	} else {
		xdraw.CatmullRom.Scale(canvas, canvas.Bounds(), img, bounds, xdraw.Src, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}

	log.Debug().
		Str("asset", name).
		Int("orig_width", origWidth).
		Int("orig_height", origHeight).
		Int("new_width", newWidth).
		Int("new_height", newHeight).
		Int("output_size", buf.Len()).
		Msg("Downscale encode complete")

	return buf.Bytes(), nil
}

// decodeImage decodes photo bytes by extension.
func decodeImage(name string, data []byte) (image.Image, error) {
	ext := strings.ToLower(filepath.Ext(name))

	switch ext {
	case ".heic", ".heif":
		return decodeHEIC(name, data)
	default:
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("image decode: %w", err)
		}
		return img, nil
	}
}

// decodeHEIC converts HEIC/HEIF bytes to a decodable frame using ffmpeg.
// There is no pure Go HEIC decoder; without ffmpeg the asset is undecodable.
func decodeHEIC(name string, data []byte) (image.Image, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: HEIC decoding requires ffmpeg")
	}

	inFile, err := os.CreateTemp("", "heic-in-*"+filepath.Ext(name))
	if err != nil {
		return nil, fmt.Errorf("create temp input: %w", err)
	}
	inPath := inFile.Name()
	defer os.Remove(inPath)
	if _, err := inFile.Write(data); err != nil {
		inFile.Close()
		return nil, fmt.Errorf("write temp input: %w", err)
	}
	inFile.Close()

	outFile, err := os.CreateTemp("", "heic-out-*.png")
	if err != nil {
		return nil, fmt.Errorf("create temp output: %w", err)
	}
	outPath := outFile.Name()
	outFile.Close()
	defer os.Remove(outPath)

	// -frames:v 1: HEIC is a single image
	cmd := exec.Command(ffmpegPath,
		"-i", inPath,
		"-frames:v", "1",
		"-y", outPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg HEIC conversion failed: %w: %s", err, string(output))
	}

	f, err := os.Open(outPath)
	if err != nil {
		return nil, fmt.Errorf("read converted frame: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode converted frame: %w", err)
	}
	return img, nil
}

// fitDimensions calculates new dimensions maintaining aspect ratio.
func fitDimensions(width, height, maxDimension int) (int, int) {
	if width <= maxDimension && height <= maxDimension {
		return width, height
	}

	if width > height {
		newWidth := maxDimension
		newHeight := int(float64(height) * float64(maxDimension) / float64(width))
		if newHeight < 1 {
			newHeight = 1
		}
		return newWidth, newHeight
	}

	newHeight := maxDimension
	newWidth := int(float64(width) * float64(maxDimension) / float64(height))
	if newWidth < 1 {
		newWidth = 1
	}
	return newWidth, newHeight
}
