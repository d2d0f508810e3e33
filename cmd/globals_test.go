package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderRequired(t *testing.T) {
	globals := []advertisedGlobal{
		{name: 1, iface: "wl_compositor", version: 6},
		{name: 2, iface: "wl_seat", version: 9},
	}

	out := renderRequired(globals)
	assert.Contains(t, out, "wl_seat")
	assert.Contains(t, out, "9 (using 9)")
	assert.Contains(t, out, "ext_idle_notifier_v1")
	assert.NotContains(t, out, "wl_compositor")

	_, ok := findGlobal(globals, "ext_idle_notifier_v1")
	assert.False(t, ok)
}

func TestRenderRequiredClampsVersion(t *testing.T) {
	out := renderRequired([]advertisedGlobal{
		{name: 7, iface: "ext_idle_notifier_v1", version: 5},
	})
	assert.Contains(t, out, "5 (using 2)")
}

func TestRenderGlobals(t *testing.T) {
	out := renderGlobals([]advertisedGlobal{
		{name: 1, iface: "wl_compositor", version: 6},
		{name: 12, iface: "xdg_wm_base", version: 5},
	})
	assert.Contains(t, out, "wl_compositor")
	assert.Contains(t, out, "xdg_wm_base")
	assert.Contains(t, out, "12")
}
