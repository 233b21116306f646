package cli

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/avelios/maestro/internal/config"
	"github.com/avelios/maestro/internal/metrics"
	"github.com/avelios/maestro/pkg/chaintools"
	"github.com/avelios/maestro/pkg/toolregistry"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "maestro",
	Short: "Maestro - verifiable plan execution engine",
	Long: `Maestro executes multi-step plans against a registry of schema-validated
tools. Plans carry a canonical hash and an optional Ed25519 signature, and
execution refuses to start when either check fails.`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logLevel == "" {
			return
		}
		if lvl, err := zerolog.ParseLevel(logLevel); err == nil {
			log.Logger = log.Logger.Level(lvl)
		}
	},
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.maestro/maestro.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}

// loadConfig resolves the effective configuration for one-shot commands,
// honoring the --config and --log-level flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildToolRegistry assembles the tool registry every command executes
// against: the bundled chain tools minus whatever the config disables
func buildToolRegistry(cfg *config.Config, m *metrics.Metrics, logger zerolog.Logger) (*toolregistry.Registry, error) {
	opts := []toolregistry.Option{
		toolregistry.WithDefaultTimeout(time.Duration(cfg.Registry.DefaultToolTimeout) * time.Second),
		toolregistry.WithLogger(logger),
	}
	if m != nil {
		opts = append(opts, toolregistry.WithMetrics(m))
	}

	registry := toolregistry.New(opts...)
	if err := chaintools.Register(registry, chaintools.Options{Logger: logger}); err != nil {
		return nil, fmt.Errorf("failed to register bundled tools: %w", err)
	}

	for _, name := range cfg.Tools.Disabled {
		registry.SetEnabled(name, false)
	}
	return registry, nil
}
