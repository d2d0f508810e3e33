package cmd

import (
	"encoding/json"
	"net"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/bnema/wayidle/idle_notify"
	"github.com/bnema/wayidle/internal/config"
	"github.com/bnema/wayidle/internal/testutil"
)

func TestDisplaySocketPath(t *testing.T) {
	tests := []struct {
		name       string
		display    string
		runtimeDir string
		want       string
		wantErr    bool
	}{
		{name: "default display", runtimeDir: "/run/user/1000", want: "/run/user/1000/wayland-0"},
		{name: "named display", display: "wayland-1", runtimeDir: "/run/user/1000", want: "/run/user/1000/wayland-1"},
		{name: "absolute display", display: "/tmp/compositor.sock", want: "/tmp/compositor.sock"},
		{name: "no runtime dir", display: "wayland-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("WAYLAND_DISPLAY", tt.display)
			t.Setenv("XDG_RUNTIME_DIR", tt.runtimeDir)

			got, err := displaySocketPath()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdoptSocket(t *testing.T) {
	t.Run("rejects a malformed fd", func(t *testing.T) {
		_, err := adoptSocket("not-a-number")
		assert.Error(t, err)

		_, err = adoptSocket("-3")
		assert.Error(t, err)
	})

	t.Run("adopts an inherited unix socket", func(t *testing.T) {
		client, _ := testutil.SocketPair(t)
		f, err := client.File()
		require.NoError(t, err)
		defer f.Close()
		// adoptSocket takes ownership of the fd it is given
		fd, err := unix.Dup(int(f.Fd()))
		require.NoError(t, err)

		conn, err := adoptSocket(strconv.Itoa(fd))
		require.NoError(t, err)
		assert.NoError(t, conn.Close())
	})
}

func TestOpenDisplayDialsWaylandDisplay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wayland-test")
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer ln.Close()

	t.Setenv("WAYLAND_SOCKET", "")
	t.Setenv("WAYLAND_DISPLAY", "wayland-test")
	t.Setenv("XDG_RUNTIME_DIR", dir)

	display, err := openDisplay()
	require.NoError(t, err)

	conn, err := display.WaylandConn()
	require.NoError(t, err)
	assert.NotNil(t, conn)

	assert.NoError(t, display.Close())
	assert.NoError(t, display.Close())
	_, err = display.WaylandConn()
	assert.Error(t, err)
}

func TestOpenDisplayMissingCompositor(t *testing.T) {
	t.Setenv("WAYLAND_SOCKET", "")
	t.Setenv("WAYLAND_DISPLAY", "wayland-missing")
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	_, err := openDisplay()
	assert.ErrorContains(t, err, "failed to connect to Wayland display")
}

func TestSessionOverHostDisplay(t *testing.T) {
	c := testutil.NewCompositor(t, testutil.Options{})
	display := &hostDisplay{conn: c.Client}

	cfg := config.DefaultConfig
	cfg.Idle.TimeoutSeconds = 10
	s, err := idle_notify.New(display, cfg.Idle.TimeoutSeconds, sessionOptions(&cfg)...)
	require.NoError(t, err)

	_, timeoutMs := c.Notification()
	assert.Equal(t, uint32(10000), timeoutMs)
	assert.False(t, s.InputIdle())

	closeSession(s, display)
	_, err = s.IdleSeconds()
	assert.ErrorIs(t, err, idle_notify.ErrClosed)
}

func TestDisplayHelperOutput(t *testing.T) {
	t.Setenv("WAYLAND_SOCKET", "")
	t.Setenv("WAYLAND_DISPLAY", "wayland-5")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")

	out, err := executeCommand(t, "display-helper", "--config", filepath.Join(t.TempDir(), "wayidle.toml"))
	require.NoError(t, err)

	var info DisplayInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, DisplayInfo{Socket: "/run/user/1000/wayland-5"}, info)
}
