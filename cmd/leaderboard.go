package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/gh-profiler/internal/analysis"
	"github.com/spigell/gh-profiler/internal/logger"
)

const (
	PromptExit = "exit"
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show stored analyses ranked by total score",
	Run: func(cmd *cobra.Command, _ []string) {
		leaderboard(cmd)
	},
}

func init() {
	rootCmd.AddCommand(leaderboardCmd)

	leaderboardCmd.Flags().IntP("limit", "l", analysis.DefaultLeaderboardLimit, "number of entries to show")
	leaderboardCmd.Flags().StringP("output", "o", OutputText, "output format: text, json or yaml")
	leaderboardCmd.Flags().BoolP("interactive", "i", false, "browse entries and open the full analysis")
}

func leaderboard(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("output")
	interactive, _ := cmd.Flags().GetBool("interactive")

	p, err := newPipeline(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the analysis pipeline", zap.Error(err))
	}
	defer p.Close(logger)

	entries, err := p.service.Leaderboard(ctx, limit)
	if err != nil {
		logger.Fatal("reading the leaderboard", zap.Error(err))
	}

	if !interactive || len(entries) == 0 {
		if err := renderLeaderboard(os.Stdout, format, entries); err != nil {
			logger.Fatal("rendering the leaderboard", zap.Error(err))
		}
		return
	}

	if err := browse(entries); err != nil && !errors.Is(err, promptui.ErrInterrupt) {
		logger.Fatal("exiting", zap.Error(err))
	}
}

// browse lets the user pick entries until they choose to exit.
func browse(entries []analysis.LeaderboardEntry) error {
	for {
		selectPrompt := promptui.Select{
			Label: "Choose a developer and press ENTER",
			Items: append(leaderboardLabels(entries), PromptExit),
			Size:  min(len(entries)+1, 15),
		}

		_, selected, err := selectPrompt.Run()
		if err != nil {
			return err
		}
		if selected == PromptExit {
			return nil
		}

		entry, ok := entryByLabel(entries, selected)
		if !ok {
			return fmt.Errorf("unknown leaderboard entry %q", selected)
		}
		if err := renderRecord(os.Stdout, OutputText, entry.Record); err != nil {
			return err
		}
		fmt.Println()
	}
}
