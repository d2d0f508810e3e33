package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/bnema/wayidle/internal/config"
	"github.com/bnema/wayidle/internal/logger"
	"github.com/bnema/wayidle/internal/ui"
	"github.com/bnema/wayidle/internal/watch"
)

var watchTUI bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow idle state changes",
	Long: `Poll the idle time at watch.interval and report every transition between
active and idle. Once the idle time reaches watch.pause_after the watcher reports a
pause, and a resume when the user comes back.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchTUI, "tui", false, "show a live terminal view")
	rootCmd.AddCommand(watchCmd)
}

func watchConfig(cfg *config.Config) watch.Config {
	return watch.Config{
		Interval:   cfg.Watch.Interval,
		PauseAfter: cfg.Watch.PauseAfter,
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	session, display, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer closeSession(session, display)

	watcher, err := watch.New(session, watchConfig(cfg))
	if err != nil {
		return err
	}

	if watchTUI {
		model := ui.NewWatchModel(watcher, session.Timeout())
		if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
			return fmt.Errorf("failed to run UI: %w", err)
		}
		return model.Err()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("Watching idle state (timeout %s)", session.Timeout())
	return watcher.Run(ctx, func(ev watch.Event) {
		logger.Info("Idle state changed", "event", ev.Kind.String(), "idle_seconds", ev.IdleSeconds)
	})
}
