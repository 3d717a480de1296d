package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/photo-story-curator/internal/batch"
	"github.com/fpang/photo-story-curator/internal/bundle"
	"github.com/fpang/photo-story-curator/internal/chat"
	"github.com/fpang/photo-story-curator/internal/curation"
	"github.com/fpang/photo-story-curator/internal/filehandler"
	"github.com/fpang/photo-story-curator/internal/logging"
	"github.com/fpang/photo-story-curator/internal/state"
)

// CLI flags
var (
	directoryFlag string
	seedFlag      string
	modelFlag     string
	outFlag       string
	limitFlag     int
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "curator-cli",
	Short: "AI-curated photo story sets from a local directory",
	Long: `Curator CLI loads the photos in a directory, picks (or accepts) a seed photo,
and asks Gemini to build three themed four-photo sets, each with a short
narrative. Every set always contains the seed.

With --out, the tool also writes two zip bundles per set: the untouched
originals and a size-reduced variant for sharing, each with the story text.

Examples:
  curator-cli --directory /path/to/photos
  curator-cli -d ./vacation-photos -s IMG_0042.jpg
  curator-cli -d ./photos --limit 50 --out ./bundles
  curator-cli -d ./photos --model gemini-3-pro-preview`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&directoryFlag, "directory", "d", "", "Directory containing photos to curate")
	rootCmd.Flags().StringVarP(&seedFlag, "seed", "s", "", "Seed photo filename (default: random draw)")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Gemini model to use (default: probe for best available)")
	rootCmd.Flags().StringVarP(&outFlag, "out", "o", "", "Directory to write zip bundles into (default: no bundles)")
	rootCmd.Flags().IntVar(&limitFlag, "limit", 0, "Maximum photos to load (0 = unlimited)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	dirPath := directoryFlag
	if dirPath == "" {
		dirPath = promptForDirectory()
	}

	info, err := os.Stat(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Fatal().Str("path", dirPath).Msg("Directory not found")
		}
		log.Fatal().Err(err).Str("path", dirPath).Msg("Failed to access directory")
	}
	if !info.IsDir() {
		log.Fatal().Str("path", dirPath).Msg("Path is not a directory")
	}

	if absPath, err := filepath.Abs(dirPath); err == nil {
		dirPath = absPath
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Fatal().Msg("No API key configured. Set GEMINI_API_KEY")
	}

	ctx := context.Background()
	client, err := chat.NewGeminiClient(ctx, apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Gemini client")
	}

	model := modelFlag
	if model == "" {
		model, err = chat.ProbeModel(ctx, client)
		if err != nil {
			fatalServiceError(err)
		}
		log.Info().Str("model", model).Msg("Model selected by probe")
	}

	// Load the directory into a single in-memory batch.
	sessionID := uuid.NewString()
	batches := batch.NewStore()
	loaded := loadBatch(batches, sessionID, dirPath)
	if loaded == 0 {
		log.Fatal().Str("path", dirPath).Msg("no supported photos found in directory")
	}

	fmt.Println()
	fmt.Println("============================================")
	fmt.Println("📁 Photo Story Curation")
	fmt.Println("============================================")
	fmt.Printf("Directory: %s\n", dirPath)
	fmt.Printf("Photos loaded: %d\n", loaded)
	if limitFlag > 0 && loaded == limitFlag {
		fmt.Printf("(limited to %d)\n", limitFlag)
	}
	if seedFlag != "" {
		fmt.Printf("Seed: %s\n", seedFlag)
	} else {
		fmt.Println("Seed: random draw")
	}
	fmt.Printf("Model: %s\n", model)
	fmt.Println("--------------------------------------------")
	fmt.Println("⏳ Encoding photos and sending to Gemini...")
	fmt.Println()

	runs := state.NewStore()
	pipeline := curation.New(batches, runs, &chat.Curator{Client: client},
		rand.New(rand.NewSource(time.Now().UnixNano())))

	run, err := pipeline.Generate(ctx, sessionID, seedFlag, model)
	if err != nil {
		fatalServiceError(err)
	}

	fmt.Println("✅ Curation Complete!")
	fmt.Println("============================================")
	printRun(run)

	if outFlag != "" {
		writeBundles(batches, sessionID, run)
	}
}

// promptForDirectory prompts the user interactively for a directory path.
// Returns the current directory if the user enters nothing.
func promptForDirectory() string {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	fmt.Printf("Directory [%s]: ", cwd)

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read input, using current directory")
		return cwd
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return cwd
	}

	return input
}

// loadBatch walks dirPath and stores every supported photo in the batch,
// keyed by base filename. Subdirectories are included; duplicate base names
// keep the first occurrence.
func loadBatch(batches *batch.Store, sessionID, dirPath string) int {
	loaded := 0
	filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping unreadable entry")
			return nil
		}
		if d.IsDir() {
			return nil
		}
		name := filepath.Base(path)
		if !filehandler.IsSupported(name) {
			return nil
		}
		if batches.Contains(sessionID, name) {
			log.Warn().Str("name", name).Msg("Duplicate filename, keeping first")
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping unreadable photo")
			return nil
		}
		batches.Put(sessionID, name, data)
		loaded++

		if limitFlag > 0 && loaded >= limitFlag {
			return fs.SkipAll
		}
		return nil
	})
	return loaded
}

// printRun renders the completed run to the console.
func printRun(run *state.Run) {
	fmt.Println()
	fmt.Printf("Seed: %s\n", run.SeedName)
	fmt.Printf("Generation: %s\n", run.GenerationID)
	fmt.Println()

	for i, sel := range run.Selections {
		fmt.Printf("📖 Plan %d: %s\n", i+1, sel.Theme)
		for _, name := range sel.Assets {
			marker := "  "
			if name == run.SeedName {
				marker = "⭐"
			}
			fmt.Printf("   %s %s\n", marker, name)
		}
		fmt.Println()
		fmt.Printf("   Story: %s\n", sel.Narrative)
		fmt.Printf("   Why:   %s\n", sel.Rationale)
		fmt.Println("--------------------------------------------")
	}
}

// writeBundles materializes both bundle tiers for every selection under outFlag.
func writeBundles(batches *batch.Store, sessionID string, run *state.Run) {
	if err := os.MkdirAll(outFlag, 0o755); err != nil {
		log.Fatal().Err(err).Str("path", outFlag).Msg("failed to create output directory")
	}

	fetch := func(name string) ([]byte, error) {
		return batches.Get(sessionID, name)
	}

	fmt.Println("⏳ Writing bundles...")
	for i, sel := range run.Selections {
		for _, tier := range []bundle.Tier{bundle.TierOriginal, bundle.TierReduced} {
			var archive []byte
			var err error
			if tier == bundle.TierOriginal {
				archive, err = bundle.OriginalArchive(sel, fetch)
			} else {
				archive, err = bundle.ReducedArchive(sel, fetch)
			}
			if err != nil {
				log.Fatal().Err(err).Int("plan", i+1).Str("tier", string(tier)).Msg("failed to build bundle")
			}

			name := bundle.ArchiveName(tier, i, run.GenerationID)
			path := filepath.Join(outFlag, name)
			if err := os.WriteFile(path, archive, 0o644); err != nil {
				log.Fatal().Err(err).Str("path", path).Msg("failed to write bundle")
			}
			fmt.Printf("   💾 %s (%.1f KB)\n", name, float64(len(archive))/1024)
		}
	}
	fmt.Println("✅ Bundles written to", outFlag)
}

// fatalServiceError exits with a message matched to the failure category.
func fatalServiceError(err error) {
	var se *chat.ServiceError
	if errors.As(err, &se) {
		switch se.Type {
		case chat.ErrTypeThrottled:
			log.Fatal().Err(err).Msg("Rate limited by the Gemini API. Wait a minute and try again")
		case chat.ErrTypeNoModel:
			log.Fatal().Err(err).Msg("No usable model available for this API key")
		case chat.ErrTypeMalformed:
			log.Fatal().Err(err).Msg("Gemini returned an unreadable response. Try again")
		default:
			log.Fatal().Err(err).Msg("Gemini request failed. Check your API key and connection")
		}
	}
	log.Fatal().Err(err).Msg("curation failed")
}
