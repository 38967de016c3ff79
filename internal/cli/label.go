package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"perspective/internal/adapter/fs"
	"perspective/internal/adapter/labeler"
)

var (
	labelOutput  string
	labelFormat  string
	labelNoCache bool
)

var labelCmd = &cobra.Command{
	Use:   "label <file|dir|glob>...",
	Short: "Categorize and summarize raw texts",
	Long: `Label raw texts (separated by blank lines) with a category and a one-sentence
summary, and write them as JSON lines ready for ingest or as a readable text file.

Examples:
  perspective label scraped/posts.txt -o data/labeled_posts.jsonl
  perspective label 'scraped/*.txt' -o review.txt --format txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLabel,
}

func init() {
	rootCmd.AddCommand(labelCmd)
	labelCmd.Flags().StringVarP(&labelOutput, "output", "o", "", "output file (required)")
	labelCmd.Flags().StringVar(&labelFormat, "format", "", "json or txt (default from the output extension)")
	labelCmd.Flags().BoolVar(&labelNoCache, "no-label-cache", false, "always call the model")
	labelCmd.MarkFlagRequired("output")
}

func runLabel(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	format := labelFormat
	if format == "" {
		format = labeler.FormatJSON
		if strings.EqualFold(filepath.Ext(labelOutput), ".txt") {
			format = labeler.FormatText
		}
	}
	if format != labeler.FormatJSON && format != labeler.FormatText {
		return fmt.Errorf("unknown format %q (want %s or %s)", format, labeler.FormatJSON, labeler.FormatText)
	}

	files, err := fs.NewWalker([]string{"**/*.txt"}, nil).Expand(args)
	if err != nil {
		return err
	}

	var texts []string
	for _, f := range files {
		if isJSONL(f.Path) {
			continue
		}
		t, err := labeler.ReadRawTexts(f.Path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", f.Path, err)
		}
		texts = append(texts, t...)
	}
	if len(texts) == 0 {
		return fmt.Errorf("no texts to label")
	}

	l, cleanup, err := newLabeler(cfg, !labelNoCache)
	if err != nil {
		return err
	}
	defer cleanup()

	progress := newStageProgress()
	fmt.Printf("Labeling %d text(s)...\n", len(texts))
	fragments, err := labeler.LabelAll(cmd.Context(), l, texts, cfg.Labeler.BatchSize, progress.Labels)
	progress.Finish()
	if err != nil {
		return fmt.Errorf("labeling failed: %w", err)
	}

	fallbacks := 0
	for _, f := range fragments {
		if f.Summary == labeler.FallbackSummary {
			fallbacks++
		}
	}

	if err := labeler.WriteLabeled(labelOutput, fragments, format); err != nil {
		return fmt.Errorf("failed to write %s: %w", labelOutput, err)
	}

	fmt.Printf("\nLabeled %d text(s)", len(fragments))
	if fallbacks > 0 {
		fmt.Printf(" (%d without a summary)", fallbacks)
	}
	fmt.Printf("\nSaved to: %s\n", labelOutput)
	return nil
}

func isJSONL(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".jsonl")
}
