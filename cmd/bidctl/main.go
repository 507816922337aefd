package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/blob"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/config"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/ingest"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/standards"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/store"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warnColor    = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bidctl",
		Short: "Manage the engineering standards catalog",
	}

	standardsCmd := &cobra.Command{
		Use:   "standards",
		Short: "Standards catalog operations",
	}
	rootCmd.AddCommand(standardsCmd)

	addCmd := &cobra.Command{
		Use:   "add <files...>",
		Short: "Add standard documents to the catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAdd,
	}
	standardsCmd.AddCommand(addCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog entries",
		RunE:  runList,
	}
	listCmd.Flags().String("category", "", "Filter by regulatory tier")
	standardsCmd.AddCommand(listCmd)

	searchCmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Search catalog by code or name",
		Args:  cobra.ExactArgs(1),
		RunE:  runSearch,
	}
	standardsCmd.AddCommand(searchCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a catalog entry and its stored file",
		Args:  cobra.ExactArgs(1),
		RunE:  runDelete,
	}
	standardsCmd.AddCommand(deleteCmd)

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show catalog totals per regulatory tier",
		RunE:  runStats,
	}
	standardsCmd.AddCommand(statsCmd)

	if err := rootCmd.Execute(); err != nil {
		errorColor.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newCatalog wires the store, blob backend and ingestion pipeline the same
// way the API server does, minus the search index.
func newCatalog(ctx context.Context) (*standards.Service, *ingest.Parser, func(), error) {
	cfg := config.Load()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("migrations failed: %w", err)
	}

	var blobs blob.Store
	if cfg.MinioEndpoint != "" {
		blobs, err = blob.NewMinioStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	} else {
		blobs, err = blob.NewLocalStore(filepath.Join(cfg.DataDir, "blobs"))
	}
	if err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("blob store failed: %w", err)
	}

	parser := ingest.NewParser(ingest.Options{
		OCREnabled:       cfg.OCREnabled,
		OCRBinary:        cfg.OCRBinary,
		OCRMinConfidence: cfg.OCRMinConfidence,
		TableExtraction:  cfg.TableExtraction,
	})

	catalog := standards.NewService(store.NewPostgresStore(db), blobs, nil)
	cleanup := func() {
		blobs.Close()
		db.Close()
	}
	return catalog, parser, cleanup, nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	catalog, parser, cleanup, err := newCatalog(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	for _, path := range args {
		raw, err := os.ReadFile(path)
		if err != nil {
			errorColor.Printf("✗ %s: %v\n", path, err)
			continue
		}

		content := ""
		if result, err := parser.Parse(path); err == nil {
			content = result.Content
		} else {
			warnColor.Printf("! %s: text extraction failed (%v), cataloging without preview\n", path, err)
		}

		result, err := catalog.Add(ctx, filepath.Base(path), "", content, raw)
		if err != nil {
			errorColor.Printf("✗ %s: %v\n", path, err)
			continue
		}
		if result.Duplicate {
			warnColor.Printf("= %s: already in catalog as %s (%s)\n", path, result.Standard.Name, result.Standard.Code)
			continue
		}
		successColor.Printf("✓ %s → %s [%s]\n", path, result.Standard.Code, result.Standard.Category)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	catalog, _, cleanup, err := newCatalog(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	category, _ := cmd.Flags().GetString("category")
	docs, err := catalog.List(ctx, category, 0)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		infoColor.Println("catalog is empty")
		return nil
	}
	printStandards(docs)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	catalog, _, cleanup, err := newCatalog(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	docs, err := catalog.SearchCatalog(ctx, args[0], 0)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		infoColor.Printf("no matches for %q\n", args[0])
		return nil
	}
	printStandards(docs)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	catalog, _, cleanup, err := newCatalog(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := catalog.Delete(ctx, args[0]); err != nil {
		return err
	}
	successColor.Printf("✓ deleted %s\n", args[0])
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	catalog, _, cleanup, err := newCatalog(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := catalog.Statistics(ctx)
	if err != nil {
		return err
	}
	infoColor.Printf("total: %d\n", stats.Total)
	for category, count := range stats.ByCategory {
		fmt.Printf("  %s: %d\n", category, count)
	}
	return nil
}

func printStandards(docs []store.StandardDocument) {
	for _, d := range docs {
		code := d.Code
		if code == "" {
			code = "-"
		}
		fmt.Printf("%s  %-18s  %-10s  %s\n", d.ID, code, d.Category, d.Name)
	}
}
