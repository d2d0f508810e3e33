package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/wayidle/internal/config"
	"github.com/bnema/wayidle/internal/ipc"
	"github.com/bnema/wayidle/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Ask the running daemon for the idle state",
	Long:  `Query the idle state from a running 'wayidle serve' over its unix socket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := ipc.NewClient(config.Get().IPC.SocketPath)
		if err != nil {
			return fmt.Errorf("failed to create IPC client: %w", err)
		}

		status, err := client.Status()
		if errors.Is(err, ipc.ErrNotRunning) {
			fmt.Fprintln(cmd.OutOrStdout(), "wayidle daemon is not running")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get daemon status: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), renderStatus(status))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func renderStatus(status ipc.Status) string {
	var content strings.Builder
	content.WriteString(ui.FormatIdleStatus(status.Idle, status.IdleSeconds))
	content.WriteString("\n")
	timeout := time.Duration(status.TimeoutSeconds) * time.Second
	content.WriteString(ui.SubtleStyle.Render(fmt.Sprintf("Compositor timeout: %s", timeout)))

	var output strings.Builder
	output.WriteString(ui.HeaderStyle.Render("wayidle status"))
	output.WriteString("\n")
	output.WriteString(ui.BoxStyle.Render(content.String()))
	return output.String()
}
