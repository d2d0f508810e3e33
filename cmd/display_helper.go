package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bnema/wayidle/idle_notify"
	"github.com/bnema/wayidle/internal/config"
	"github.com/bnema/wayidle/internal/logger"
)

var displayHelperCmd = &cobra.Command{
	Use:    "display-helper",
	Hidden: true, // Hidden from normal help
	Short:  "Internal helper printing how the compositor socket is found",
	RunE:   runDisplayHelper,
}

func init() {
	rootCmd.AddCommand(displayHelperCmd)
}

// DisplayInfo is the JSON structure printed by display-helper
type DisplayInfo struct {
	Socket    string `json:"socket,omitempty"`
	Inherited bool   `json:"inherited"`
	Error     string `json:"error,omitempty"`
}

func runDisplayHelper(cmd *cobra.Command, args []string) error {
	var info DisplayInfo
	if os.Getenv("WAYLAND_SOCKET") != "" {
		info.Inherited = true
	} else if path, err := displaySocketPath(); err != nil {
		info.Error = err.Error()
	} else {
		info.Socket = path
	}

	if err := json.NewEncoder(cmd.OutOrStdout()).Encode(info); err != nil {
		return fmt.Errorf("failed to encode display info: %w", err)
	}
	return nil
}

// hostDisplay stands in for the host windowing layer: it owns the compositor socket
// and lends it to the idle session.
type hostDisplay struct {
	conn *net.UnixConn
}

// WaylandConn implements idle_notify.DisplayProvider
func (d *hostDisplay) WaylandConn() (*net.UnixConn, error) {
	if d.conn == nil {
		return nil, errors.New("display is closed")
	}
	return d.conn, nil
}

func (d *hostDisplay) Close() error {
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

// openDisplay connects to the compositor the way libwayland clients do: an inherited
// WAYLAND_SOCKET fd first, then WAYLAND_DISPLAY.
func openDisplay() (*hostDisplay, error) {
	if fdStr := os.Getenv("WAYLAND_SOCKET"); fdStr != "" {
		// the fd can only be adopted once
		os.Unsetenv("WAYLAND_SOCKET")
		conn, err := adoptSocket(fdStr)
		if err != nil {
			return nil, fmt.Errorf("WAYLAND_SOCKET: %w", err)
		}
		logger.Debugf("Using inherited compositor socket fd %s", fdStr)
		return &hostDisplay{conn: conn}, nil
	}

	path, err := displaySocketPath()
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Wayland display: %w", err)
	}
	logger.Debugf("Connected to compositor at %s", path)
	return &hostDisplay{conn: conn}, nil
}

func adoptSocket(fdStr string) (*net.UnixConn, error) {
	fd, err := strconv.Atoi(fdStr)
	if err != nil || fd < 0 {
		return nil, fmt.Errorf("invalid fd %q", fdStr)
	}

	f := os.NewFile(uintptr(fd), "wayland-socket")
	defer f.Close()

	conn, err := net.FileConn(f)
	if err != nil {
		return nil, err
	}
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("fd %d is not a unix socket", fd)
	}
	return uc, nil
}

// displaySocketPath resolves WAYLAND_DISPLAY, relative names living in XDG_RUNTIME_DIR
func displaySocketPath() (string, error) {
	name := os.Getenv("WAYLAND_DISPLAY")
	if name == "" {
		name = "wayland-0"
	}
	if filepath.IsAbs(name) {
		return name, nil
	}

	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set, cannot locate the Wayland display")
	}
	return filepath.Join(runtimeDir, name), nil
}

// sessionOptions maps the configuration to session options
func sessionOptions(cfg *config.Config) []idle_notify.Option {
	opts := []idle_notify.Option{
		idle_notify.WithRoundtripTimeout(cfg.Idle.RoundtripTimeout),
	}
	if cfg.Idle.InputIdle {
		opts = append(opts, idle_notify.WithInputIdle())
	}
	return opts
}

// openSession connects to the compositor and starts an idle session. The returned
// display must be closed after the session.
func openSession(cfg *config.Config) (*idle_notify.Session, *hostDisplay, error) {
	display, err := openDisplay()
	if err != nil {
		return nil, nil, err
	}

	session, err := idle_notify.New(display, cfg.Idle.TimeoutSeconds, sessionOptions(cfg)...)
	if err != nil {
		display.Close()
		return nil, nil, fmt.Errorf("failed to start idle session: %w", err)
	}
	return session, display, nil
}

// closeSession tears the session down before closing the socket it borrowed
func closeSession(session *idle_notify.Session, display *hostDisplay) {
	if err := session.Close(); err != nil {
		logger.Warnf("Failed to close idle session: %v", err)
	}
	if err := display.Close(); err != nil {
		logger.Debugf("Failed to close compositor socket: %v", err)
	}
}
