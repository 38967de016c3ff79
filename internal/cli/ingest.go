package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"perspective/config"
	"perspective/internal/adapter/fs"
	"perspective/internal/adapter/labeler"
	"perspective/internal/adapter/store"
	"perspective/internal/logging"
	"perspective/internal/port"
	"perspective/internal/usecase"
)

var (
	ingestExcludes []string
	ingestNoCache  bool
	ingestNoMirror bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file|dir|glob>...",
	Short: "Embed fragments into the vector store",
	Long: `Append fragments to the persisted vector store. JSON-lines files are read as
labeled fragments ({text, summary, category} per line). Any other file is read
as raw texts separated by blank lines and labeled with the language model first.

Directories are scanned for *.jsonl and *.txt files. Glob patterns support **.
After the store is saved the keyword index is rebuilt and, when qdrant.url is
set, the store is mirrored to qdrant.

Examples:
  perspective ingest data/labeled_posts.jsonl
  perspective ingest 'scraped/**/*.txt' --exclude '**/draft_*'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringSliceVar(&ingestExcludes, "exclude", nil, "glob patterns to skip")
	ingestCmd.Flags().BoolVar(&ingestNoCache, "no-label-cache", false, "always call the model when labeling")
	ingestCmd.Flags().BoolVar(&ingestNoMirror, "no-mirror", false, "skip the qdrant mirror")
}

// newLabeler builds the LLM labeler, cached in bbolt unless disabled. The
// returned cleanup closes the cache.
func newLabeler(c *config.Config, cached bool) (port.Labeler, func(), error) {
	client, err := newLabelerLLM(c)
	if err != nil {
		return nil, nil, err
	}
	l := labeler.NewLLMLabeler(client, c.Labeler.Temperature)
	if !cached {
		return l, func() {}, nil
	}

	if err := c.EnsureDataDir(); err != nil {
		return nil, nil, err
	}
	cache, err := store.NewLabelCache(c.LabelCachePath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open label cache: %w", err)
	}
	migration, err := cache.Prepare(store.LabelSettings{
		Model:         c.Labeler.Model,
		Temperature:   c.Labeler.Temperature,
		PromptVersion: labeler.PromptVersion,
	})
	if err != nil {
		cache.Close()
		return nil, nil, err
	}
	if migration.NeedsRebuild {
		fmt.Printf("Label cache cleared: %s\n", migration.Reason)
	}
	return labeler.NewCachedLabeler(l, cache), func() { cache.Close() }, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := cmd.Context()

	files, err := fs.NewWalker(nil, ingestExcludes).Expand(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no input files found")
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	emb, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	progress := newStageProgress()
	defer progress.Finish()

	opts := usecase.IngestOptions{
		IndexPath:      cfg.IndexPath(),
		MetadataPath:   cfg.MetadataPath(),
		BatchSize:      cfg.Embedding.BatchSize,
		LabelBatchSize: cfg.Labeler.BatchSize,
		Progress:       progress.Update,
	}

	if needsLabeling(files) {
		l, cleanup, err := newLabeler(cfg, !ingestNoCache)
		if err != nil {
			return err
		}
		defer cleanup()
		opts.Labeler = l
	}

	kw, err := openKeyword(cfg)
	if err != nil {
		logging.Warnf("keyword index unavailable: %v", err)
	} else {
		defer kw.Close()
		opts.Keyword = kw
	}

	if !ingestNoMirror {
		m, err := openMirror(cfg)
		if err != nil {
			logging.Warnf("qdrant mirror unavailable: %v", err)
		} else if m != nil {
			defer m.Close()
			opts.Mirror = m
		}
	}

	fmt.Printf("Ingesting %d file(s)...\n", len(files))
	result, err := usecase.NewIngestUseCase(emb, opts).IngestFiles(ctx, files)
	progress.Finish()
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Printf("\nIngest complete:\n")
	fmt.Printf("  Files read:      %d\n", result.Files)
	fmt.Printf("  Labeled:         %d\n", result.Labeled)
	fmt.Printf("  Fragments added: %d\n", result.Added)
	fmt.Printf("  Skipped:         %d\n", result.Skipped)
	fmt.Printf("  Store total:     %d\n", result.Total)
	if result.Keyword {
		fmt.Printf("  Keyword index:   rebuilt\n")
	}
	if result.Mirrored {
		fmt.Printf("  Qdrant mirror:   synced (%s)\n", cfg.Qdrant.Collection)
	}
	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	fmt.Printf("\nStore saved to: %s\n", cfg.IndexPath())
	return nil
}

func needsLabeling(files []fs.FileInfo) bool {
	for _, f := range files {
		if !isJSONL(f.Path) {
			return true
		}
	}
	return false
}
