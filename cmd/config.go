package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bnema/wayidle/internal/config"
	"github.com/bnema/wayidle/internal/ipc"
	"github.com/bnema/wayidle/internal/logger"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage wayidle configuration",
	Long:  `Show, locate and initialize the wayidle configuration file.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()

		socketPath := cfg.IPC.SocketPath
		if socketPath == "" {
			path, err := ipc.DefaultSocketPath()
			if err != nil {
				return err
			}
			socketPath = path + " (default)"
		}
		level := cfg.Logging.LogLevel
		if level == "" {
			level = "from LOG_LEVEL"
		}
		pauseAfter := cfg.Watch.PauseAfter.String()
		if cfg.Watch.PauseAfter == 0 {
			pauseAfter = "disabled"
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Config file:\t%s\n", config.GetConfigPath())
		fmt.Fprintln(w, "\n[idle]")
		fmt.Fprintf(w, "  timeout_seconds:\t%d\n", cfg.Idle.TimeoutSeconds)
		fmt.Fprintf(w, "  input_idle:\t%v\n", cfg.Idle.InputIdle)
		fmt.Fprintf(w, "  roundtrip_timeout:\t%s\n", cfg.Idle.RoundtripTimeout)
		fmt.Fprintln(w, "\n[watch]")
		fmt.Fprintf(w, "  interval:\t%s\n", cfg.Watch.Interval)
		fmt.Fprintf(w, "  pause_after:\t%s\n", pauseAfter)
		fmt.Fprintln(w, "\n[ipc]")
		fmt.Fprintf(w, "  socket_path:\t%s\n", socketPath)
		fmt.Fprintln(w, "\n[logging]")
		fmt.Fprintf(w, "  log_level:\t%s\n", level)
		return w.Flush()
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), config.GetConfigPath())
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file with defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.GetConfigPath()
		if _, err := os.Stat(configPath); err == nil {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				logger.Infof("Configuration file already exists at: %s", configPath)
				logger.Info("Use --force to overwrite")
				return nil
			}
			if err := os.Remove(configPath); err != nil {
				return fmt.Errorf("failed to remove existing config: %w", err)
			}
		}

		if err := config.WriteDefault(configPath); err != nil {
			return err
		}

		logger.Infof("Configuration initialized at: %s", configPath)
		logger.Info("You can now:")
		logger.Info("  - Edit the configuration file directly")
		logger.Info("  - Use 'wayidle config show' to view current settings")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().Bool("force", false, "Overwrite existing configuration")

	rootCmd.AddCommand(configCmd)
}
