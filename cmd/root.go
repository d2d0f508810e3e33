package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/wayidle/internal/config"
	"github.com/bnema/wayidle/internal/logger"
)

var (
	configFile string
	logLevel   string

	rootCmd = &cobra.Command{
		Use:   "wayidle",
		Short: "wayidle - Wayland idle time tracking",
		Long: `wayidle reports how long the user has been idle on a Wayland desktop.
It subscribes to the compositor's ext-idle-notify-v1 protocol, so it works on any
compositor implementing it without reading input devices.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default $XDG_CONFIG_HOME/wayidle/wayidle.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// initConfig loads the configuration and applies the log level, flag first
func initConfig(cmd *cobra.Command, args []string) error {
	config.SetConfigPath(configFile)
	if err := config.Init(); err != nil {
		return err
	}

	level := logLevel
	if level == "" {
		level = config.Get().Logging.LogLevel
	}
	if level != "" && !logger.SetLevel(level) {
		return fmt.Errorf("unknown log level %q", level)
	}
	return nil
}
