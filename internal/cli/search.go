package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"perspective/internal/adapter/store"
	"perspective/internal/usecase"
)

var (
	searchQuery   string
	searchTopK    int
	searchKeyword bool
	searchJSON    bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find stored fragments without synthesis",
	Long: `List the fragments closest to a query by squared Euclidean distance, or with
--keyword the best full-text matches over text and summary.

Examples:
  perspective search -q "open source"
  perspective search -q "climbing" --keyword -k 10 --json`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "search query (required)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchKeyword, "keyword", false, "full-text search instead of semantic")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.MarkFlagRequired("query")
}

// staticStore serves a store opened once for the lifetime of a command.
type staticStore struct {
	s *store.VectorStore
}

func (p staticStore) Store() (*store.VectorStore, error) {
	return p.s, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	topK := cfg.Perspective.TopK
	if searchTopK > 0 {
		topK = searchTopK
	}
	if !store.Exists(cfg.IndexPath(), cfg.MetadataPath()) {
		return fmt.Errorf("no vector store found. Run 'perspective ingest' first")
	}

	var (
		uc   *usecase.RetrieveUseCase
		mode = usecase.ModeSemantic
	)
	if searchKeyword {
		mode = usecase.ModeKeyword
		kw, err := openKeyword(cfg)
		if err != nil {
			return fmt.Errorf("failed to open keyword index: %w", err)
		}
		defer kw.Close()
		if n, err := kw.Count(); err == nil && n == 0 {
			return fmt.Errorf("keyword index is empty. Re-run 'perspective ingest' to rebuild it")
		}
		uc = usecase.NewRetrieveUseCase(nil, kw)
	} else {
		emb, err := newEmbedder(cfg)
		if err != nil {
			return err
		}
		s, err := store.OpenVectorStore(emb, cfg.IndexPath(), cfg.MetadataPath())
		if err != nil {
			return fmt.Errorf("failed to load vector store: %w", err)
		}
		uc = usecase.NewRetrieveUseCase(staticStore{s}, nil)
	}

	hits, err := uc.Retrieve(cmd.Context(), searchQuery, topK, mode)
	if err != nil {
		return err
	}

	if searchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}
	fmt.Print(usecase.FormatHits(hits))
	return nil
}
