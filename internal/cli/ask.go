package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"perspective/internal/domain"
	"perspective/internal/tui"
	"perspective/internal/usecase"
)

var (
	askQuery   string
	askTopK    int
	askPersona string
	askJSON    bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Generate a perspective on a question",
	Long: `Retrieve the fragments closest to a question and synthesize a perspective
from them. Without --query an interactive session starts; type quit, exit or q
to leave.

The persona defaults to perspective.persona, then to the text prompt of the
most recently updated profile.

Examples:
  perspective ask -q "What does this person value?"
  perspective ask -q "How do they see AI?" -k 3 --json
  perspective ask`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askQuery, "query", "q", "", "question to answer (interactive when empty)")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of sources (default from config)")
	askCmd.Flags().StringVar(&askPersona, "persona", "", "voice to answer in")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := cmd.Context()

	if askTopK < 0 {
		return fmt.Errorf("--top-k must be positive")
	}

	eng, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.LoadVectorStore(cfg.IndexPath(), cfg.MetadataPath()); err != nil {
		if errors.Is(err, domain.ErrStoreNotFound) {
			return fmt.Errorf("no vector store found. Run 'perspective ingest' first")
		}
		return fmt.Errorf("failed to load vector store: %w", err)
	}

	if askQuery == "" {
		return runInteractive(cmd, eng)
	}

	stop := spinner("Generating perspective...")
	p, err := eng.Answer(ctx, usecase.AnswerRequest{
		Query:   askQuery,
		TopK:    askTopK,
		Persona: askPersona,
	})
	stop()
	if err != nil {
		return err
	}

	if askJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}
	fmt.Println(usecase.FormatPerspective(p))
	return nil
}

func runInteractive(cmd *cobra.Command, eng *engine) error {
	ctx := cmd.Context()

	if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return tui.RunLines(ctx, eng, os.Stdin, os.Stdout, askTopK, askPersona)
	}

	s, err := eng.Store()
	if err != nil {
		return err
	}
	summary := fmt.Sprintf("%d fragments, %s", s.Len(), s.Model())
	_, err = tea.NewProgram(tui.New(ctx, eng, askTopK, askPersona, summary), tea.WithAltScreen()).Run()
	return err
}
