package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"perspective/internal/adapter/store"
	"perspective/internal/usecase"
)

var inspectJSON bool

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the persisted store's model, size and categories",
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "output as JSON")
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	info, err := store.ReadInfo(cfg.IndexPath(), cfg.MetadataPath())
	if err != nil {
		return fmt.Errorf("failed to read vector store: %w", err)
	}

	if inspectJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Printf("Store:      %s\n", cfg.IndexPath())
	fmt.Print(usecase.FormatStoreInfo(info))
	return nil
}
