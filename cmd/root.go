package cmd

import (
	"errors"
	"fmt"
	"os"

	"replibench/internal/config"
	"replibench/internal/provider"
	"replibench/internal/provider/replicate"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	cfgFile   string
	verbose   bool
	configMgr *config.Manager
	logger    = zap.NewNop()
	rootCmd   = &cobra.Command{
		Use:   "replibench",
		Short: "A benchmark tool for models hosted on Replicate",
		Long: `Replibench measures output token counts, token throughput and time to
first token of language models hosted on Replicate, through both the REST
predictions API and the Replicate SDK.`,
		SilenceUsage: true,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	defer func() { _ = logger.Sync() }()

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogger, initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/replibench/replibench.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "verbose output")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initLogger builds the process logger; warnings only unless --verbose is set.
func initLogger() {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	l, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	logger = l
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	configMgr = config.NewManager()

	// Skip config loading for config init command to avoid chicken-and-egg problem
	if len(os.Args) >= 3 && os.Args[1] == "config" && os.Args[2] == "init" {
		return
	}

	if err := configMgr.Load(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
}

// newProvider builds the Replicate provider from the loaded configuration.
// A missing credential is fatal.
func newProvider() *replicate.Provider {
	rc := configMgr.GetReplicateConfig()
	p, err := replicate.New(replicate.Config{
		APIKey:  rc.APIKey,
		BaseURL: rc.BaseURL,
		Models:  rc.Models,
		Poll:    rc.Poll,
	}, replicate.WithLogger(logger.Named(replicate.Name)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating provider: %v\n", err)
		if errors.Is(err, provider.ErrMissingCredential) {
			fmt.Fprintln(os.Stderr, "Set REPLICATE_API_KEY or replicate.api_key in the config file.")
		}
		os.Exit(1)
	}
	return p
}
