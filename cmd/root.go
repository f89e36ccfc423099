package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/matchai/internal/ai/gemini"
	"github.com/spigell/matchai/internal/api"
	"github.com/spigell/matchai/internal/cache"
	"github.com/spigell/matchai/internal/careers"
	"github.com/spigell/matchai/internal/database"
	"github.com/spigell/matchai/internal/embedding"
	"github.com/spigell/matchai/internal/embedding/qdrant"
	"github.com/spigell/matchai/internal/filtering"
	"github.com/spigell/matchai/internal/ingest"
	"github.com/spigell/matchai/internal/matching"
	"github.com/spigell/matchai/internal/notify"
	"github.com/spigell/matchai/internal/ranking"
)

const (
	app = "matchai"
)

type Config struct {
	Storage   StorageConfig    `mapstructure:"storage"`
	Database  database.Config  `mapstructure:"database"`
	Qdrant    qdrant.Config    `mapstructure:"qdrant"`
	Redis     *cache.Config    `mapstructure:"redis"`
	Embedding EmbeddingConfig  `mapstructure:"embedding"`
	AI        *AIConfig        `mapstructure:"ai"`
	Careers   careers.Config   `mapstructure:"careers"`
	Ingest    ingest.Config    `mapstructure:"ingest"`
	Filters   filtering.Config `mapstructure:"filters"`
	Weights   *ranking.Weights `mapstructure:"weights"`
	Match     matching.Config  `mapstructure:"match"`
	API       api.Config       `mapstructure:"api"`
	Schedule  ScheduleConfig   `mapstructure:"schedule"`
	Notify    notify.Config    `mapstructure:"notify"`
}

// StorageConfig selects the backends. Jobs and results live in "memory" or "postgres"; vectors
// live in "memory", "pgvector" or "qdrant".
type StorageConfig struct {
	Backend              string `mapstructure:"backend"`
	Vectors              string `mapstructure:"vectors"`
	JobsTable            string `mapstructure:"jobs_table"`
	CandidatesTable      string `mapstructure:"candidates_table"`
	JobsCollection       string `mapstructure:"jobs_collection"`
	CandidatesCollection string `mapstructure:"candidates_collection"`
}

type EmbeddingConfig struct {
	Provider  string                `mapstructure:"provider"`
	Dimension int                   `mapstructure:"dimension"`
	Index     embedding.IndexConfig `mapstructure:"index"`
}

type AIConfig struct {
	Enabled          bool           `mapstructure:"enabled"`
	Provider         string         `mapstructure:"provider"`
	Tone             string         `mapstructure:"tone"`
	UserInstructions string         `mapstructure:"user_instructions"`
	Gemini           *gemini.Config `mapstructure:"gemini"`
}

type ScheduleConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Location string        `mapstructure:"location"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "matchai matches a CV against ingested job postings and explains the best fits",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	bindings := map[string]string{
		"database.dsn":           "MATCHAI_DATABASE_URL",
		"ai.gemini.api_key_file": "GEMINI_API_KEY_FILE",
		"ai.gemini.api_key":      "GEMINI_API_KEY",
		"redis.addr":             "MATCHAI_REDIS_ADDR",
		"qdrant.url":             "MATCHAI_QDRANT_URL",
		"notify.password_file":   "MATCHAI_SMTP_PASSWORD_FILE",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is matchai.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		// Without a file every setting falls back to defaults and the environment.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return config, err
	}
	if config == nil {
		config = &Config{}
	}

	return config, nil
}
