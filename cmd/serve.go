package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/gh-profiler/internal/logger"
	"github.com/spigell/gh-profiler/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis API over HTTP",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("addr", "a", "", "listen address (default :8080)")

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the gh-profiler server", zap.String("version", version))

	p, err := newPipeline(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the analysis pipeline", zap.Error(err))
	}
	defer p.Close(logger)

	go p.cache.Run(ctx)

	srv := server.New(p.service, config.RequestDeadline, logger.Named("http"))
	if err := srv.ListenAndServe(ctx, config.Server.Addr); err != nil {
		logger.Error("http server stopped", zap.Error(err))
	}
}
