package cmd

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/gh-profiler/internal/logger"
	"github.com/spigell/gh-profiler/internal/profile"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <username|profile-url>",
	Short: "Analyze a GitHub profile and print its score and insights",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		analyze(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringP("output", "o", OutputText, "output format: text, json or yaml")
	analyzeCmd.Flags().BoolP("refresh", "r", false, "drop the cached profile and fetch it again")
}

func analyze(cmd *cobra.Command, input string) {
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

	format, _ := cmd.Flags().GetString("output")
	refresh, _ := cmd.Flags().GetBool("refresh")

	p, err := newPipeline(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the analysis pipeline", zap.Error(err))
	}
	defer p.Close(logger)

	run := p.service.Analyze
	if refresh {
		run = p.service.Refresh
	}

	rec, err := run(ctx, input, config.RequestDeadline)
	if err != nil && rec == nil {
		logger.Fatal("analysis failed",
			zap.String("input", input),
			zap.String("kind", string(profile.KindOf(err))),
			zap.Error(err),
		)
	}
	if err != nil {
		logger.Warn("analysis was not persisted", zap.Error(err))
	}

	if err := renderRecord(os.Stdout, format, rec); err != nil {
		logger.Fatal("rendering the analysis", zap.Error(err))
	}
}
