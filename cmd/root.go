package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/job-matcher/internal/filtering"
)

const (
	app = "job-matcher"
)

type Config struct {
	Search      *SearchConfig     `mapstructure:"search"`
	Listings    *ListingsConfig   `mapstructure:"listings"`
	Embedding   *EmbeddingConfig  `mapstructure:"embedding"`
	AI          *AIConfig         `mapstructure:"ai"`
	Filters     *filtering.Config `mapstructure:"filters"`
	Snapshot    *SnapshotConfig   `mapstructure:"snapshot"`
	ExcludeFile string            `mapstructure:"exclude-file"`
	ResumeFile  string            `mapstructure:"resume-file"`
}

type SearchConfig struct {
	Title    string `mapstructure:"title"`
	Location string `mapstructure:"location"`
	Limit    int    `mapstructure:"limit"`
	Top      int    `mapstructure:"top"`
}

type ListingsConfig struct {
	APIKey      string        `mapstructure:"api-key"`
	APIKeyFile  string        `mapstructure:"api-key-file"`
	Language    string        `mapstructure:"language"`
	Country     string        `mapstructure:"country"`
	PageTimeout time.Duration `mapstructure:"page-timeout"`
	PageDelay   time.Duration `mapstructure:"page-delay"`
}

type EmbeddingConfig struct {
	// Provider is one of hashing, gemini or openai.
	Provider  string        `mapstructure:"provider"`
	Model     string        `mapstructure:"model"`
	Dimension int           `mapstructure:"dimension"`
	// Timeout bounds every request to a remote backend.
	Timeout time.Duration `mapstructure:"timeout"`
	OpenAI  *OpenAIConfig `mapstructure:"openai"`
	Cache   *CacheConfig  `mapstructure:"cache"`
}

type OpenAIConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	BaseURL    string `mapstructure:"base-url"`
}

type CacheConfig struct {
	// Type is one of none, memory or redis.
	Type  string       `mapstructure:"type"`
	Redis *RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type AIConfig struct {
	Gemini *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

type SnapshotConfig struct {
	Path   string        `mapstructure:"path"`
	MaxAge time.Duration `mapstructure:"max-age"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "job-matcher finds job postings and ranks them by similarity to your resume",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"listings.api-key-file":         "SERPAPI_KEY_FILE",
		"ai.gemini.api-key-file":        "GEMINI_API_KEY_FILE",
		"embedding.openai.api-key-file": "OPENAI_API_KEY_FILE",
		"embedding.cache.redis.addr":    "REDIS_ADDR",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is job-matcher.yaml in current directory)")
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

	// Every command can run on flags alone, so only an explicit or broken config is fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config == nil {
		config = &Config{}
	}
	if config.Search == nil {
		config.Search = &SearchConfig{}
	}
	if config.Listings == nil {
		config.Listings = &ListingsConfig{}
	}
	if config.Embedding == nil {
		config.Embedding = &EmbeddingConfig{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	if config.Filters == nil {
		config.Filters = &filtering.Config{}
	}
	if config.Filters.ExcludeFile == "" {
		config.Filters.ExcludeFile = config.ExcludeFile
	}

	return config, nil
}
