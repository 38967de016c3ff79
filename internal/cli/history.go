package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"perspective/internal/adapter/journal"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently answered questions",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output as JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if !cfg.Journal.Enabled {
		return fmt.Errorf("journal is disabled (journal.enabled: false)")
	}
	if _, err := os.Stat(cfg.JournalPath()); os.IsNotExist(err) {
		fmt.Println("No questions answered yet.")
		return nil
	}

	db, err := journal.Open(cfg.JournalPath())
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer db.Close()

	entries, err := db.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	if historyJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	if len(entries) == 0 {
		fmt.Println("No questions answered yet.")
		return nil
	}
	for _, e := range entries {
		status := fmt.Sprintf("%d sources", e.SourceCount)
		if e.Degraded {
			status += ", degraded"
		}
		fmt.Printf("%s  %s  (%s)\n", e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Query, status)
		fmt.Printf("    %s\n", firstLine(e.Answer, 100))
	}
	return nil
}

func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	r := []rune(s)
	if len(r) > max {
		return string(r[:max]) + "..."
	}
	return s
}
