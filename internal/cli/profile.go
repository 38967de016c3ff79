package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"perspective/internal/domain"
)

var profilePromptFile string

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the personas used to voice answers",
	Long: `Profiles hold a text prompt describing how a person writes. The most recently
updated profile voices answers unless --persona or perspective.persona is set.`,
}

var profileSetCmd = &cobra.Command{
	Use:   "set <name> [text prompt]",
	Short: "Create or update a profile",
	Example: `  perspective profile set alice "Write tersely, like a systems engineer."
  perspective profile set alice --file alice_voice.txt`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runProfileSet,
}

var profileShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a profile (default: the most recently updated)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProfileShow,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles, most recently updated first",
	Args:  cobra.NoArgs,
	RunE:  runProfileList,
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileSetCmd, profileShowCmd, profileListCmd)
	profileSetCmd.Flags().StringVarP(&profilePromptFile, "file", "f", "", "read the text prompt from a file")
}

func runProfileSet(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := cmd.Context()

	var prompt string
	switch {
	case profilePromptFile != "":
		data, err := os.ReadFile(profilePromptFile)
		if err != nil {
			return err
		}
		prompt = string(data)
	case len(args) == 2:
		prompt = args[1]
	default:
		return fmt.Errorf("a text prompt or --file is required")
	}
	prompt = strings.TrimSpace(prompt)

	if err := cfg.EnsureDataDir(); err != nil {
		return err
	}
	profiles, err := openProfiles(ctx, cfg)
	if err != nil {
		return err
	}
	defer profiles.Close()

	state := &domain.ProfileState{Name: args[0], TextPrompt: prompt, UpdatedAt: time.Now()}
	if err := profiles.Put(ctx, state); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	fmt.Printf("Saved profile %s (%s backend)\n", state.Name, cfg.Profile.Backend)
	return nil
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := cmd.Context()

	profiles, err := openProfiles(ctx, cfg)
	if err != nil {
		return err
	}
	defer profiles.Close()

	var state *domain.ProfileState
	if len(args) == 1 {
		state, err = profiles.Get(ctx, args[0])
	} else {
		state, err = profiles.Latest(ctx)
	}
	if errors.Is(err, domain.ErrProfileNotFound) {
		return fmt.Errorf("no profile found. Create one with 'perspective profile set'")
	}
	if err != nil {
		return err
	}

	fmt.Printf("Name:     %s\n", state.Name)
	fmt.Printf("Updated:  %s\n", state.UpdatedAt.Local().Format(time.RFC3339))
	fmt.Printf("Prompt:\n%s\n", state.TextPrompt)
	return nil
}

func runProfileList(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := cmd.Context()

	profiles, err := openProfiles(ctx, cfg)
	if err != nil {
		return err
	}
	defer profiles.Close()

	states, err := profiles.List(ctx)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		fmt.Println("No profiles.")
		return nil
	}
	for _, s := range states {
		fmt.Printf("%-20s %s  %s\n", s.Name, s.UpdatedAt.Local().Format("2006-01-02 15:04"), firstLine(s.TextPrompt, 60))
	}
	return nil
}
