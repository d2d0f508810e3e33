package cmd

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/wayidle/idle_notify"
	"github.com/bnema/wayidle/internal/config"
	"github.com/bnema/wayidle/internal/ipc"
	"github.com/bnema/wayidle/internal/testutil"
)

func newLockedSession(t *testing.T, c *testutil.Compositor, timeout uint32) *lockedSession {
	t.Helper()
	s, err := idle_notify.New(c.Client, timeout)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return &lockedSession{s: s}
}

func serveConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig
	cfg.IPC.SocketPath = filepath.Join(t.TempDir(), "wayidle.sock")
	cfg.Watch.Interval = 10 * time.Millisecond
	return &cfg
}

func TestLockedSessionStatus(t *testing.T) {
	c := testutil.NewCompositor(t, testutil.Options{})
	src := newLockedSession(t, c, 120)

	status, err := src.Status()
	require.NoError(t, err)
	assert.Equal(t, ipc.Status{Idle: false, IdleSeconds: 0, TimeoutSeconds: 120}, status)

	c.SendIdled()
	assert.Eventually(t, func() bool {
		status, err := src.Status()
		return err == nil && status.Idle
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, src.Changed())
	assert.True(t, src.State().Idle)
}

func TestServeExportsStatus(t *testing.T) {
	c := testutil.NewCompositor(t, testutil.Options{})
	src := newLockedSession(t, c, 60)
	cfg := serveConfig(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- serve(ctx, src, cfg) }()

	client, err := ipc.NewClient(cfg.IPC.SocketPath)
	require.NoError(t, err)
	require.Eventually(t, client.IsRunning, 2*time.Second, 10*time.Millisecond)

	status, err := client.Status()
	require.NoError(t, err)
	assert.False(t, status.Idle)
	assert.Equal(t, uint64(60), status.TimeoutSeconds)

	c.SendIdled()
	assert.Eventually(t, func() bool {
		status, err := client.Status()
		return err == nil && status.Idle
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
	assert.False(t, client.IsRunning())
}

func TestServeStopsWhenCompositorGoesAway(t *testing.T) {
	c := testutil.NewCompositor(t, testutil.Options{})
	src := newLockedSession(t, c, 60)
	cfg := serveConfig(t)

	done := make(chan error, 1)
	go func() { done <- serve(context.Background(), src, cfg) }()

	client, err := ipc.NewClient(cfg.IPC.SocketPath)
	require.NoError(t, err)
	require.Eventually(t, client.IsRunning, 2*time.Second, 10*time.Millisecond)

	c.Disconnect()
	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "idle session failed")
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not stop after the compositor disconnected")
	}
}

func TestRenderStatus(t *testing.T) {
	out := renderStatus(ipc.Status{Idle: true, IdleSeconds: 75, TimeoutSeconds: 300})
	assert.Contains(t, out, "wayidle status")
	assert.Contains(t, out, "1m15s")
	assert.Contains(t, out, "5m0s")
}
