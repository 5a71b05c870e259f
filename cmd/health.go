package cmd

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/gh-profiler/internal/logger"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that GitHub and the language model are reachable",
	Run: func(cmd *cobra.Command, _ []string) {
		health(cmd)
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)

	healthCmd.Flags().StringP("output", "o", OutputYAML, "output format: json or yaml")
}

func health(cmd *cobra.Command) {
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

	p, err := newPipeline(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the analysis pipeline", zap.Error(err))
	}
	defer p.Close(logger)

	h := p.service.HealthCheck(ctx)
	format, _ := cmd.Flags().GetString("output")
	if format == "" || format == OutputText {
		format = OutputYAML
	}
	if err := render(os.Stdout, format, h, nil); err != nil {
		logger.Fatal("rendering health", zap.Error(err))
	}
	if !h.UpstreamReachable {
		logger.Fatal("github is not reachable")
	}
}
