// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/hrmcheck/internal/config"
	"github.com/xkilldash9x/hrmcheck/internal/observability"
)

type contextKey string

const (
	configKey contextKey = "config"
	viperKey  contextKey = "viper"
)

var cfgFile string

// NewRootCommand builds a fresh command tree. Each call returns independent
// flag state, so tests and embedders can execute it repeatedly.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "hrmcheck",
		Short:         "hrmcheck drives end-to-end checks against an OrangeHRM deployment.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Tests inject a ready config; leave it alone.
			if _, ok := cmd.Context().Value(configKey).(*config.Config); ok {
				return nil
			}

			v := viper.New()
			config.SetDefaults(v)
			if err := initializeConfig(v); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "hrmcheck"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Starting hrmcheck", zap.String("version", Version))

			ctx := context.WithValue(cmd.Context(), configKey, cfg)
			ctx = context.WithValue(ctx, viperKey, v)
			cmd.SetContext(ctx)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./hrmcheck.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newLoginCmd(),
		newAPICmd(),
		newDataCmd(),
		newHistoryCmd(NewStoreProvider()),
		newLogsCmd(),
	)
	return rootCmd
}

// Execute runs the root command with ctx and logs any failure.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var failed *ScenariosFailedError
	if !errors.As(err, &failed) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	observability.GetLogger().Debug("Command execution failed", zap.Error(err))
	observability.Sync()
	return err
}

// initializeConfig reads in config file and ENV variables if set.
func initializeConfig(v *viper.Viper) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("hrmcheck")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("HRMCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars
	}
	return nil
}

// getConfigFromContext returns the config stored by the root command.
func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not found in context")
	}
	return cfg, nil
}

// bindFlags maps config keys to command flags and rebuilds the config so flag
// values take precedence over file and environment.
func bindFlags(cmd *cobra.Command, bindings map[string]string) error {
	v, ok := cmd.Context().Value(viperKey).(*viper.Viper)
	if !ok {
		return nil
	}
	for key, name := range bindings {
		flag, err := lookupFlag(cmd.Flags(), name)
		if err != nil {
			return err
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		return fmt.Errorf("failed to apply flags: %w", err)
	}
	cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
	return nil
}

func lookupFlag(fs *pflag.FlagSet, name string) (*pflag.Flag, error) {
	if f := fs.Lookup(name); f != nil {
		return f, nil
	}
	return nil, fmt.Errorf("unknown flag --%s", name)
}
