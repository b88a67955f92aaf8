package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/crisisfeed/internal/model"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage crisisfeed configuration",
	Long: `Manage crisisfeed configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (CRISISFEED_*, e.g. CRISISFEED_CACHE_BACKEND=redis)
3. Config file (~/.crisisfeed/config.yaml)
4. Defaults

Credentials are only read from the environment (or a .env file):
  TWITTER_BEARER_TOKEN, BLUESKY_TOKEN, OPENAI_API_KEY, RELIEFWEB_APPNAME`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		yamlData, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(yamlData)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Long:  `Create ~/.crisisfeed/config.yaml (or the --config path) containing every option with its default.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("find home directory: %w", err)
			}
			path = filepath.Join(home, ".crisisfeed", "config.yaml")
		}

		if err := writeDefaultConfig(path); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created default configuration: %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

const configHeader = `# crisisfeed configuration
#
# Configuration hierarchy (highest to lowest priority):
#   1. CLI flags
#   2. Environment variables (CRISISFEED_*)
#   3. This config file
#   4. Built-in defaults
#
# Credentials belong in the environment or a .env file:
#   TWITTER_BEARER_TOKEN, BLUESKY_TOKEN, OPENAI_API_KEY, RELIEFWEB_APPNAME

`

// writeDefaultConfig refuses to overwrite an existing file
func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	yamlData, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(configHeader), yamlData...), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// loadConfig decodes v over the defaults and injects credentials from the
// environment.
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyCredentials(cfg)
	return cfg, nil
}

func applyCredentials(cfg *model.Config) {
	if token := os.Getenv("TWITTER_BEARER_TOKEN"); token != "" {
		cfg.Sources.Twitter.Token = token
	}
	if token := os.Getenv("BLUESKY_TOKEN"); token != "" {
		cfg.Sources.Bluesky.Token = token
	}
	if app := os.Getenv("RELIEFWEB_APPNAME"); app != "" {
		cfg.Sources.ReliefWeb.AppName = app
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && strings.EqualFold(cfg.LLM.Provider, "openai") {
		cfg.LLM.APIKey = key
	}
	if base := os.Getenv("OLLAMA_BASE_URL"); base != "" && strings.EqualFold(cfg.LLM.Provider, "ollama") {
		cfg.LLM.BaseURL = base
	}
}

// setDefaults registers every field of cfg as a viper default so that
// CRISISFEED_* variables reach nested keys through Unmarshal.
func setDefaults(v *viper.Viper, cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}
	for key, value := range flatten("", tree) {
		v.SetDefault(key, value)
	}
	// Keys omitted from the YAML form when empty still need env binding
	for _, key := range optionalKeys {
		if !v.IsSet(key) {
			v.SetDefault(key, "")
		}
	}
	if !v.IsSet("kafka.brokers") {
		v.SetDefault("kafka.brokers", []string{})
	}
	return nil
}

var optionalKeys = []string{
	"http.http_proxy",
	"http.https_proxy",
	"http.no_proxy",
	"cache.dir",
	"cache.redis_url",
	"llm.base_url",
	"kafka.topic",
}

func flatten(prefix string, tree map[string]any) map[string]any {
	out := make(map[string]any)
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = val
	}
	return out
}
