package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/reflectd/internal/client"
)

var (
	// status command flags
	statusJSON    bool
	statusTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(ensureCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output status as JSON")
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 2*time.Second, "Status call budget")
}

var ensureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Make sure a daemon is running, spawning one if needed",
	Long: `Ensure checks the daemon socket and spawns reflectd when nothing is
listening. It returns once the socket accepts connections; the model
may still be loading behind it.

Examples:
  reflectctl ensure`,
	RunE: runEnsure,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	Long: `Stop signals the daemon from its PID file with SIGTERM. Stopping a
daemon that is not running is not an error; the goal state is reached
either way.

Examples:
  reflectctl stop`,
	RunE: runStop,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long: `Status reports the daemon lifecycle state, the loaded model, the
anchor count, and uptime.

Examples:
  reflectctl status
  reflectctl status --json`,
	RunE: runStatus,
}

func runEnsure(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cli := newClient(cfg, newLogger())

	if err := cli.Ensure(context.Background()); err != nil {
		return fmt.Errorf("failed to ensure daemon: %w", err)
	}
	fmt.Printf("%s %s\n", healthyStyle.Render("●"), "daemon listening on "+cfg.Daemon.SocketPath)
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cli := newClient(cfg, newLogger())

	if err := cli.Stop(); err != nil {
		if errors.Is(err, client.ErrNotRunning) {
			fmt.Println("daemon not running")
			return nil
		}
		return err
	}
	fmt.Println("stop signal sent")
	return nil
}

// statusView is the JSON shape of the status command.
type statusView struct {
	Running     bool   `json:"running"`
	State       string `json:"state,omitempty"`
	Model       string `json:"model,omitempty"`
	AnchorCount int    `json:"anchor_count,omitempty"`
	UptimeMS    int64  `json:"uptime_ms,omitempty"`
	Socket      string `json:"socket"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cli := newClient(cfg, newLogger())

	st := cli.Status(statusTimeout)

	if statusJSON {
		return outputJSON(statusView{
			Running:     st.Running,
			State:       st.State,
			Model:       st.Model,
			AnchorCount: st.AnchorCount,
			UptimeMS:    st.Uptime.Milliseconds(),
			Socket:      cfg.Daemon.SocketPath,
		})
	}

	fmt.Println(statusLine(st))
	if st.Running {
		fmt.Printf("%s %s\n", labelStyle.Render("Model:  "), valueStyle.Render(st.Model))
		fmt.Printf("%s %s\n", labelStyle.Render("Anchors:"), valueStyle.Render(fmt.Sprintf("%d", st.AnchorCount)))
		fmt.Printf("%s %s\n", labelStyle.Render("Uptime: "), valueStyle.Render(formatUptime(st.Uptime)))
	}
	fmt.Printf("%s %s\n", labelStyle.Render("Socket: "), dimStyle.Render(cfg.Daemon.SocketPath))
	return nil
}

// statusLine renders the one-line state summary with a colored badge.
func statusLine(st client.Status) string {
	switch {
	case !st.Running:
		return errorStyle.Render("○") + " not running"
	case st.State == "ready":
		return healthyStyle.Render("●") + " ready"
	default:
		return warningStyle.Render("●") + " " + st.State
	}
}

// formatUptime renders a duration in coarse human units.
func formatUptime(d time.Duration) string {
	switch {
	case d >= time.Hour:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	case d >= time.Minute:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
}
