package cmd

import (
	"errors"
	"io/fs"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/gh-profiler/internal/ai/gemini"
	"github.com/spigell/gh-profiler/internal/analysis"
	"github.com/spigell/gh-profiler/internal/cache"
	"github.com/spigell/gh-profiler/internal/github"
)

const (
	app = "gh-profiler"
)

type Config struct {
	MaxReposAnalyzed    int           `mapstructure:"max-repos-analyzed"`
	CommitHistoryMonths int           `mapstructure:"commit-history-months"`
	ReadmeMinLength     int           `mapstructure:"readme-min-length"`
	RequestDeadline     time.Duration `mapstructure:"request-deadline"`
	CacheTTL            time.Duration `mapstructure:"cache-ttl"`
	ServeStaleOnError   bool          `mapstructure:"serve-stale-on-error"`
	DatabaseURL         string        `mapstructure:"database-url"`
	GitHub              GitHubConfig  `mapstructure:"github"`
	AI                  AIConfig      `mapstructure:"ai"`
	Server              ServerConfig  `mapstructure:"server"`
}

type GitHubConfig struct {
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"token-file"`
	BaseURL   string `mapstructure:"base-url"`
}

type AIConfig struct {
	Enabled  bool         `mapstructure:"enabled"`
	Provider string       `mapstructure:"provider"`
	Gemini   GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "gh-profiler scores public GitHub profiles and explains the score",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string][]string{
		"github.token":           {"GITHUB_TOKEN"},
		"github.token-file":      {"GITHUB_TOKEN_FILE"},
		"ai.gemini.api-key":      {"GEMINI_API_KEY"},
		"ai.gemini.api-key-file": {"GEMINI_API_KEY_FILE"},
		"database-url":           {"DATABASE_URL"},
	}
	for key, names := range envs {
		if err := viper.BindEnv(append([]string{key}, names...)...); err != nil {
			log.Fatalf("binding %v environment variable: %v", names, err)
		}
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is gh-profiler.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	viper.SetDefault("max-repos-analyzed", github.DefaultMaxReposAnalyzed)
	viper.SetDefault("commit-history-months", github.DefaultCommitHistoryMonths)
	viper.SetDefault("readme-min-length", github.DefaultReadmeMinLength)
	viper.SetDefault("request-deadline", analysis.DefaultDeadline)
	viper.SetDefault("cache-ttl", cache.DefaultTTL)
	viper.SetDefault("serve-stale-on-error", false)
	viper.SetDefault("ai.enabled", true)
	viper.SetDefault("ai.provider", gemini.Provider)
	viper.SetDefault("ai.gemini.model", gemini.DefaultModel)
	viper.SetDefault("ai.gemini.max-log-length", 400)
	viper.SetDefault("server.addr", ":8080")
}

func initConfig() {
	// Environment from .env must be visible before viper resolves bound variables.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env file: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// The config file is optional unless given explicitly.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
