// Command curator-web serves the photo story curation API: batch upload,
// seed selection, curation runs, previews, and bundle downloads.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/photo-story-curator/internal/batch"
	"github.com/fpang/photo-story-curator/internal/logging"
	"github.com/fpang/photo-story-curator/internal/state"
)

// CLI flags
var (
	portFlag  int
	modelFlag string
)

// Process-wide stores; each session owns an independent batch and run.
var (
	batches = batch.NewStore()
	runs    = state.NewStore()
)

var rootCmd = &cobra.Command{
	Use:   "curator-web",
	Short: "Web API for AI photo story curation",
	Long: `Curator Web starts a local server that curates four-photo story sets
from an uploaded batch. Upload photos, pick (or randomly draw) a seed, and
download the curated bundles at original or reduced quality.

Examples:
  curator-web
  curator-web --port 9090
  curator-web --model gemini-2.5-flash`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 8080, "Port to listen on")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Gemini model to use (default: probe for best available)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	if os.Getenv("GEMINI_API_KEY") == "" {
		log.Warn().Msg("GEMINI_API_KEY not set; clients must supply X-Api-Key per request")
	}
	if modelFlag != "" {
		log.Info().Str("model", modelFlag).Msg("Model override active, probe disabled")
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/api/session", handleNewSession)
	mux.HandleFunc("/api/session/clear", handleClearSession)
	mux.HandleFunc("/api/upload", handleUpload)
	mux.HandleFunc("/api/generate", handleGenerate)
	mux.HandleFunc("/api/run", handleRun)
	mux.HandleFunc("/api/preview", handlePreview)
	mux.HandleFunc("/api/download", handleDownload)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	handler := withLogging(withCORS(mux))

	addr := fmt.Sprintf(":%d", portFlag)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	log.Info().Int("port", portFlag).Msg("Starting curator web server")
	fmt.Printf("\n  Photo Story Curator API: http://localhost:%d\n\n", portFlag)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// --- Middleware ---

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if strings.HasPrefix(r.URL.Path, "/api/") {
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("API request")
		}
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only allow localhost origins; this is a local tool.
		origin := r.Header.Get("Origin")
		if origin != "" && (strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:")) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Api-Key")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// apiKeyFor returns the Gemini credential for one request: the X-Api-Key
// header when present, else the server's environment.
func apiKeyFor(r *http.Request) string {
	if key := r.Header.Get("X-Api-Key"); key != "" {
		return key
	}
	return os.Getenv("GEMINI_API_KEY")
}
