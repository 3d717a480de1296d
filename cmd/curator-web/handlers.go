package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-story-curator/internal/bundle"
	"github.com/fpang/photo-story-curator/internal/chat"
	"github.com/fpang/photo-story-curator/internal/curation"
	"github.com/fpang/photo-story-curator/internal/filehandler"
)

// maxPhotoBytes is the per-photo upload size limit.
const maxPhotoBytes int64 = 50 * 1024 * 1024

// previewMaxDimension bounds inline preview images.
const previewMaxDimension = 800

// POST /api/session
// Creates a new session. Each session owns an independent batch and run.
func handleNewSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sessionID := uuid.NewString()
	log.Info().Str("sessionId", sessionID).Msg("Session created")
	respondJSON(w, http.StatusOK, map[string]string{"sessionId": sessionID})
}

// POST /api/session/clear
// Body: {"sessionId": "uuid"}
// Discards the session's batch and run.
func handleClearSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateSessionID(req.SessionID); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	batches.Delete(req.SessionID)
	runs.Clear(req.SessionID)
	log.Info().Str("sessionId", req.SessionID).Msg("Session cleared")
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// POST /api/upload
// Multipart form: sessionId field plus one or more photo files under "files".
func handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		httpError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	sessionID := r.FormValue("sessionId")
	if err := validateSessionID(sessionID); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		httpError(w, http.StatusBadRequest, "no files in upload")
		return
	}

	var stored []string
	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		if err := validateFilename(name); err != nil {
			httpError(w, http.StatusBadRequest, fmt.Sprintf("%s: %v", name, err))
			return
		}
		if !filehandler.IsSupported(name) {
			httpError(w, http.StatusBadRequest, fmt.Sprintf("unsupported photo format: %s", name))
			return
		}
		if fh.Size > maxPhotoBytes {
			httpError(w, http.StatusBadRequest, fmt.Sprintf("photo too large: %s", name))
			return
		}

		f, err := fh.Open()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to read upload", err.Error())
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to read upload", err.Error())
			return
		}

		batches.Put(sessionID, name, data)
		stored = append(stored, name)
	}

	log.Info().
		Str("sessionId", sessionID).
		Int("files", len(stored)).
		Int("batchSize", batches.Len(sessionID)).
		Msg("Photos uploaded")

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"stored":    stored,
		"batchSize": batches.Len(sessionID),
	})
}

// POST /api/generate
// Body: {"sessionId": "uuid", "seed": "IMG_001.jpg" | "", "model": "..." | ""}
// An empty seed draws one at random. Triggers one full curation run; on
// success the run replaces the session's prior run, on failure the prior run
// stays untouched.
func handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		SessionID string `json:"sessionId"`
		Seed      string `json:"seed"`
		Model     string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateSessionID(req.SessionID); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if batches.Len(req.SessionID) == 0 {
		httpError(w, http.StatusBadRequest, "no photos uploaded for this session")
		return
	}

	apiKey := apiKeyFor(r)
	if apiKey == "" {
		httpError(w, http.StatusBadRequest, "API key missing: supply X-Api-Key or set GEMINI_API_KEY")
		return
	}

	ctx := r.Context()
	client, err := chat.NewGeminiClient(ctx, apiKey)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to create Gemini client", err.Error())
		return
	}

	// Explicit override (request, then server flag) skips the probe.
	model := req.Model
	if model == "" {
		model = modelFlag
	}
	if model == "" {
		model, err = chat.ProbeModel(ctx, client)
		if err != nil {
			writeServiceError(w, err)
			return
		}
	}

	pipeline := curation.New(batches, runs, &chat.Curator{Client: client},
		rand.New(rand.NewSource(time.Now().UnixNano())))

	run, err := pipeline.Generate(ctx, req.SessionID, req.Seed, model)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, run)
}

// GET /api/run?sessionId=...
// Returns the session's last completed run. Serving it is read-only and
// never re-triggers the curation service.
func handleRun(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if err := validateSessionID(sessionID); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	run := runs.Get(sessionID)
	if run == nil {
		httpError(w, http.StatusNotFound, "no completed run for this session")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// GET /api/preview?sessionId=...&name=...
// Returns a reduced inline JPEG preview of one batch asset.
func handlePreview(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	name := r.URL.Query().Get("name")
	if err := validateSessionID(sessionID); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateFilename(name); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := batches.Get(sessionID, name)
	if err != nil {
		httpError(w, http.StatusNotFound, "asset not found")
		return
	}

	preview, err := filehandler.DownscaleJPEG(name, data, previewMaxDimension, 85)
	if err != nil {
		httpError(w, http.StatusUnprocessableEntity, "asset cannot be decoded", err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(preview)
}

// GET /api/download?sessionId=...&plan=0&tier=orig|sns
// Materializes one bundle from the last completed run. Recomputed from the
// stored run and original bytes alone; byte-identical on every request.
func handleDownload(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if err := validateSessionID(sessionID); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	run := runs.Get(sessionID)
	if run == nil {
		httpError(w, http.StatusNotFound, "no completed run for this session")
		return
	}

	plan, err := strconv.Atoi(r.URL.Query().Get("plan"))
	if err != nil || plan < 0 || plan >= len(run.Selections) {
		httpError(w, http.StatusBadRequest, "invalid plan index")
		return
	}

	tier := bundle.Tier(r.URL.Query().Get("tier"))
	if tier != bundle.TierOriginal && tier != bundle.TierReduced {
		httpError(w, http.StatusBadRequest, "tier must be orig or sns")
		return
	}

	sel := run.Selections[plan]
	fetch := func(name string) ([]byte, error) {
		return batches.Get(sessionID, name)
	}

	var archive []byte
	if tier == bundle.TierOriginal {
		archive, err = bundle.OriginalArchive(sel, fetch)
	} else {
		archive, err = bundle.ReducedArchive(sel, fetch)
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to build bundle", err.Error())
		return
	}

	name := bundle.ArchiveName(tier, plan, run.GenerationID)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
	w.Write(archive)

	log.Info().
		Str("sessionId", sessionID).
		Str("bundle", name).
		Int("bytes", len(archive)).
		Msg("Bundle served")
}

// writeServiceError maps pipeline and service failures to HTTP responses,
// with a distinct retry-later status for throttling.
func writeServiceError(w http.ResponseWriter, err error) {
	var se *chat.ServiceError
	if errors.As(err, &se) {
		switch se.Type {
		case chat.ErrTypeThrottled:
			httpError(w, http.StatusTooManyRequests,
				"the curation service is rate limiting this key - wait a minute and try again")
		case chat.ErrTypeNoModel:
			httpError(w, http.StatusBadGateway,
				"no usable model is available for this API key")
		case chat.ErrTypeMalformed:
			// Raw response is kept server-side for diagnostics.
			log.Error().Str("raw", se.Raw).Msg("Malformed curation response")
			httpError(w, http.StatusBadGateway,
				"the curation service returned an unreadable response - try again")
		default:
			httpError(w, http.StatusBadGateway,
				"the curation service is unavailable - check the API key and connection")
		}
		return
	}
	httpError(w, http.StatusBadRequest, err.Error())
}
