package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/threatwire/threatwire/internal/config"
	"github.com/threatwire/threatwire/internal/database"
	"github.com/threatwire/threatwire/internal/fetch"
	"github.com/threatwire/threatwire/internal/pipeline"
	"github.com/threatwire/threatwire/internal/report"
	"github.com/threatwire/threatwire/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "threatwire",
	Short:   "Security incident intelligence",
	Long:    "ThreatWire ingests security news feeds, deduplicates incidents, and enriches them into structured intelligence reports.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("threatwire", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/threatwire/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure feeds and the analysis provider, and set your API key in the environment.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Incidents:")
		fmt.Printf("  Total: %d\n", stats.TotalIncidents)
		fmt.Printf("  Pending analysis: %d\n", stats.PendingIncidents)
		fmt.Printf("  Analyzed: %d\n", stats.AnalyzedIncidents)
		fmt.Printf("  Failed: %d\n", stats.FailedIncidents)
		fmt.Printf("  High risk (score >= 70): %d\n", stats.HighRisk)
		fmt.Println("\nIngestion runs:")
		fmt.Printf("  Total: %d\n", stats.TotalRuns)
		return nil
	},
}

// --- ingest command ---

var ingestSource string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch configured feeds and store new incidents",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Println("Ingesting from configured feeds...")

		pipe := pipeline.New(cfg, db)
		stats, err := pipe.RunIngestion(context.Background(), ingestSource)
		if err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}

		fmt.Println("\nIngestion complete:")
		fmt.Printf("  Items fetched: %d\n", stats.ItemsFetched)
		fmt.Printf("  New incidents: %d\n", stats.ItemsNew)
		fmt.Printf("  Duplicates skipped: %d\n", stats.ItemsDuplicate)
		fmt.Printf("  Failed: %d\n", stats.ItemsFailed)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "Label recorded on the ingestion run")
}

// --- fetch command ---

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch full article content for incidents that lack it",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fetcher := fetch.NewContentFetcher(db, 15*time.Second)
		result := fetcher.FetchMissingContent()

		fmt.Printf("Content fetch complete: %d fetched, %d failed\n",
			result.Fetched, result.Failed)
		return nil
	},
}

// --- analyze command ---

var analyzeLimit int

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run LLM analysis over pending incidents",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		limit := analyzeLimit
		if limit <= 0 {
			limit = cfg.Analysis.BatchSize
		}

		pipe := pipeline.New(cfg, db)
		n, err := pipe.AnalyzeBatch(context.Background(), limit)
		if err != nil {
			fmt.Printf("Analyzed %d incident(s) before stopping.\n", n)
			return err
		}

		fmt.Printf("Analyzed %d incident(s).\n", n)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().IntVarP(&analyzeLimit, "limit", "n", 0, "Max incidents to analyze (default: batch size from config)")
}

// --- run command ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: ingest -> fetch content -> analyze",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		pipe := pipeline.New(cfg, db)

		fmt.Println("Step 1/3: ingest")
		stats, err := pipe.RunIngestion(ctx, "")
		if err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}
		fmt.Printf("  %d fetched, %d new, %d duplicate\n", stats.ItemsFetched, stats.ItemsNew, stats.ItemsDuplicate)

		fmt.Println("Step 2/3: fetch content")
		result := fetch.NewContentFetcher(db, 15*time.Second).FetchMissingContent()
		fmt.Printf("  %d fetched, %d failed\n", result.Fetched, result.Failed)

		fmt.Println("Step 3/3: analyze")
		n, err := pipe.AnalyzeBatch(ctx, cfg.Analysis.BatchSize)
		if err != nil {
			fmt.Printf("  analyzed %d before stopping\n", n)
			return err
		}
		fmt.Printf("  analyzed %d\n", n)

		fmt.Println("\nPipeline complete! Run 'threatwire serve' to browse incidents.")
		return nil
	},
}

// --- report command ---

var reportCmd = &cobra.Command{
	Use:   "report [id]",
	Short: "Print the markdown report for an analyzed incident",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid incident ID: %s", args[0])
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		inc, err := db.GetIncident(id)
		if err != nil {
			return err
		}

		markdown, err := report.Compose(inc)
		if err != nil {
			return err
		}
		fmt.Println(markdown)
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		pipe := pipeline.New(cfg, db)
		srv := server.New(db, pipe)

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return http.ListenAndServe(fmt.Sprintf(":%d", port), srv.Handler())
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default: from config)")
}

func openDB() (*database.DB, error) {
	dbPath := filepath.Join(cfg.GetDataDir(), "threatwire.db")
	return database.Open(dbPath)
}
