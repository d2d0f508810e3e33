package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/wayidle/idle_notify"
	"github.com/bnema/wayidle/internal/config"
	"github.com/bnema/wayidle/internal/ipc"
	"github.com/bnema/wayidle/internal/logger"
	"github.com/bnema/wayidle/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the idle daemon",
	Long: `Keep an idle session open and answer status queries on a local unix socket.
The daemon stops when the compositor connection fails.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// lockedSession serializes access to a Session shared by the watcher and IPC clients
type lockedSession struct {
	mu sync.Mutex
	s  *idle_notify.Session
}

func (l *lockedSession) IdleSeconds() (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.IdleSeconds()
}

func (l *lockedSession) Changed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.Changed()
}

func (l *lockedSession) State() idle_notify.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.State()
}

// Status implements ipc.StatusHandler
func (l *lockedSession) Status() (ipc.Status, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	secs, err := l.s.IdleSeconds()
	if err != nil {
		return ipc.Status{}, err
	}
	return ipc.Status{
		Idle:           l.s.State().Idle,
		IdleSeconds:    secs,
		TimeoutSeconds: uint64(l.s.Timeout() / time.Second),
	}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	session, display, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer closeSession(session, display)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, &lockedSession{s: session}, cfg)
}

// serve exports src over IPC and watches it until ctx ends or the session fails
func serve(ctx context.Context, src *lockedSession, cfg *config.Config) error {
	watcher, err := watch.New(src, watchConfig(cfg))
	if err != nil {
		return err
	}

	server, err := ipc.NewSocketServer(cfg.IPC.SocketPath, src)
	if err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start IPC server: %w", err)
	}
	defer server.Stop()

	logger.Infof("Serving idle state on %s", server.SocketPath())
	err = watcher.Run(ctx, func(ev watch.Event) {
		logger.Info("Idle state changed", "event", ev.Kind.String(), "idle_seconds", ev.IdleSeconds)
	})
	if err != nil {
		return fmt.Errorf("idle session failed: %w", err)
	}

	logger.Info("Shutting down")
	return nil
}
