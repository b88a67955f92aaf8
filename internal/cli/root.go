package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/crisisfeed/internal/model"
	"github.com/ppiankov/crisisfeed/internal/observability"
)

// Version is set at build time with -ldflags "-X .../cli.Version=..."
var Version = "0.3.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "crisisfeed",
	Short: "crisisfeed - disaster updates and social signals, aggregated and ranked",
	Long: `crisisfeed gathers official disaster updates (NWS, FEMA, ReliefWeb, Red Cross,
configured scrape sources) and social posts (Bluesky, X) for a disaster context,
normalizes them into one schema, scores them for relevance and returns a ranked list.

When every source fails, synthetic records marked as such are returned instead
of an empty result.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "crisisfeed v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.crisisfeed/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig loads .env, then the config file and CRISISFEED_* variables
func initConfig() {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	if err := setupViper(viper.GetViper(), cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error preparing configuration: %v\n", err)
		return
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setupViper registers defaults, the config file location and env binding
func setupViper(v *viper.Viper, file string) error {
	if err := setDefaults(v, model.DefaultConfig()); err != nil {
		return err
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("find home directory: %w", err)
		}
		v.AddConfigPath(filepath.Join(home, ".crisisfeed"))
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("CRISISFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return nil
}

// newLogger builds the process logger; --verbose forces debug level
func newLogger(cfg *model.Config) *slog.Logger {
	logCfg := cfg.Log
	if verbose {
		logCfg.Level = "debug"
	}
	return observability.NewLogger(os.Stderr, logCfg)
}
