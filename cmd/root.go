package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/marciobastos-droid/propmatch/internal/inventory"
	"github.com/marciobastos-droid/propmatch/internal/logger"
	"github.com/marciobastos-droid/propmatch/internal/store"
)

const app = "propmatch"

type Config struct {
	Database string    `mapstructure:"database"`
	Sender   string    `mapstructure:"sender"`
	AI       *AIConfig `mapstructure:"ai"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "propmatch ranks property listings against client requirement profiles and tracks what was sent to whom",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is propmatch.yaml in current directory)")
	rootCmd.PersistentFlags().String("database", "", "path to the sqlite database (overrides the config file)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("database", rootCmd.PersistentFlags().Lookup("database"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	viper.SetDefault("database", app+".db")
	viper.SetDefault("ai.timeout", "30s")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		// The defaults cover everything except AI; only an explicitly
		// requested config file is required to exist.
		if cfgFile != "" {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	)))
	if err != nil {
		return config, err
	}
	if config == nil {
		config = &Config{}
	}
	if config.Database == "" {
		config.Database = viper.GetString("database")
	}
	return config, nil
}

func newLogger() *zap.Logger {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}

// mustOpenStore opens the engine store for commands that do not touch the
// inventory.
func mustOpenStore(log *zap.Logger) *store.Store {
	config, err := getConfig()
	if err != nil {
		log.Fatal("getting a config", zap.Error(err))
	}

	s, _, err := openStores(config)
	if err != nil {
		log.Fatal("opening stores", zap.Error(err))
	}
	return s
}

// openStores opens the shared database and prepares both the engine store
// and the inventory repository.
func openStores(config *Config) (*store.Store, *inventory.Repo, error) {
	s, err := store.Open(config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database %q: %w", config.Database, err)
	}
	if err := s.EnsureSchema(); err != nil {
		_ = s.Close()
		return nil, nil, fmt.Errorf("preparing schema: %w", err)
	}

	repo := inventory.New(s.DB())
	if err := repo.EnsureSchema(); err != nil {
		_ = s.Close()
		return nil, nil, fmt.Errorf("preparing inventory schema: %w", err)
	}

	return s, repo, nil
}
