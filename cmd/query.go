package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/wayidle/internal/config"
)

var (
	queryTimeout uint32
	queryWait    time.Duration
	queryJSON    bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Print the idle time once",
	Long: `Connect to the compositor, subscribe to idle notifications and print how many
seconds the seat has been idle. Idle time is counted from the moment the compositor
reports the seat idle, so use --wait to observe it over a short window.`,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().Uint32VarP(&queryTimeout, "timeout", "t", 0, "idle timeout in seconds (default from config)")
	queryCmd.Flags().DurationVarP(&queryWait, "wait", "w", 0, "keep the subscription open this long before reading")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(queryCmd)
}

type queryResult struct {
	Idle           bool   `json:"idle"`
	IdleSeconds    uint64 `json:"idle_seconds"`
	TimeoutSeconds uint32 `json:"timeout_seconds"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := *config.Get()
	if cmd.Flags().Changed("timeout") {
		cfg.Idle.TimeoutSeconds = queryTimeout
	}

	session, display, err := openSession(&cfg)
	if err != nil {
		return err
	}
	defer closeSession(session, display)

	if queryWait > 0 {
		time.Sleep(queryWait)
	}

	secs, err := session.IdleSeconds()
	if err != nil {
		return fmt.Errorf("failed to read idle time: %w", err)
	}

	out := cmd.OutOrStdout()
	if queryJSON {
		return json.NewEncoder(out).Encode(queryResult{
			Idle:           session.State().Idle,
			IdleSeconds:    secs,
			TimeoutSeconds: cfg.Idle.TimeoutSeconds,
		})
	}
	fmt.Fprintln(out, secs)
	return nil
}
