package cmd

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rajveermalviya/go-wayland/wayland/client"
	"github.com/spf13/cobra"

	"github.com/bnema/wayidle/internal/logger"
	"github.com/bnema/wayidle/internal/protocols"
	"github.com/bnema/wayidle/internal/ui"
)

var globalsAll bool

var globalsCmd = &cobra.Command{
	Use:   "globals",
	Short: "Check which globals the compositor advertises",
	Long: `List the globals advertised by the compositor and check that the seat and idle
notifier needed by wayidle are present. Use --all to list every global.`,
	RunE: runGlobals,
}

func init() {
	globalsCmd.Flags().BoolVarP(&globalsAll, "all", "a", false, "list every advertised global")
	rootCmd.AddCommand(globalsCmd)
}

type advertisedGlobal struct {
	name    uint32
	iface   string
	version uint32
}

// requiredGlobals are the interfaces an idle session binds, with the newest version
// wayidle speaks.
var requiredGlobals = []struct {
	iface      string
	maxVersion uint32
}{
	{protocols.SeatInterface, protocols.SeatMaxVersion},
	{protocols.IdleNotifierInterface, protocols.IdleNotifierMaxVersion},
}

func runGlobals(cmd *cobra.Command, args []string) error {
	globals, err := listGlobals()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderRequired(globals))
	if globalsAll {
		fmt.Fprintln(out, renderGlobals(globals))
	}

	for _, req := range requiredGlobals {
		if _, ok := findGlobal(globals, req.iface); !ok {
			return fmt.Errorf("compositor does not advertise %s", req.iface)
		}
	}
	return nil
}

// listGlobals opens its own connection through go-wayland and collects the registry
func listGlobals() ([]advertisedGlobal, error) {
	display, err := client.Connect("")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Wayland display: %w", err)
	}
	defer func() {
		if err := display.Context().Close(); err != nil {
			logger.Debugf("Failed to close display: %v", err)
		}
	}()

	registry, err := display.GetRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to get registry: %w", err)
	}

	var globals []advertisedGlobal
	registry.SetGlobalHandler(func(e client.RegistryGlobalEvent) {
		globals = append(globals, advertisedGlobal{name: e.Name, iface: e.Interface, version: e.Version})
	})

	if err := roundtrip(display); err != nil {
		return nil, err
	}

	sort.Slice(globals, func(i, j int) bool { return globals[i].name < globals[j].name })
	logger.Debugf("Compositor advertised %d globals", len(globals))
	return globals, nil
}

func roundtrip(display *client.Display) error {
	callback, err := display.Sync()
	if err != nil {
		return fmt.Errorf("failed to sync display: %w", err)
	}
	defer func() {
		if err := callback.Destroy(); err != nil {
			logger.Debugf("Failed to destroy callback: %v", err)
		}
	}()

	done := false
	callback.SetDoneHandler(func(client.CallbackDoneEvent) {
		done = true
	})

	for !done {
		if err := display.Context().Dispatch(); err != nil {
			return fmt.Errorf("failed to dispatch events: %w", err)
		}
	}
	return nil
}

func findGlobal(globals []advertisedGlobal, iface string) (advertisedGlobal, bool) {
	for _, g := range globals {
		if g.iface == iface {
			return g, true
		}
	}
	return advertisedGlobal{}, false
}

func renderRequired(globals []advertisedGlobal) string {
	rows := make([][]string, 0, len(requiredGlobals))
	for _, req := range requiredGlobals {
		g, ok := findGlobal(globals, req.iface)
		version := "-"
		if ok {
			version = fmt.Sprintf("%d (using %d)", g.version, min(g.version, req.maxVersion))
		}
		rows = append(rows, []string{ui.FormatCheck(ok), req.iface, version})
	}

	return newTable().
		Headers("", "Interface", "Version").
		Rows(rows...).
		String()
}

func renderGlobals(globals []advertisedGlobal) string {
	rows := make([][]string, 0, len(globals))
	for _, g := range globals {
		rows = append(rows, []string{strconv.FormatUint(uint64(g.name), 10), g.iface, strconv.FormatUint(uint64(g.version), 10)})
	}

	return newTable().
		Headers("Name", "Interface", "Version").
		Rows(rows...).
		String()
}

func newTable() *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ui.ColorSubtle)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return ui.TableHeaderStyle
			}
			return ui.TableCellStyle
		})
}
