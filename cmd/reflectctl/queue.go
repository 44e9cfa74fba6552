package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/reflectd/internal/queue"
)

var (
	// queue command flags
	queueJSON bool
)

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueClearCmd)

	queueListCmd.Flags().BoolVar(&queueJSON, "json", false, "Output queue items as JSON")
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the learning queue",
	Long: `Inspect and manage the local learning queue.

Examples:
  # List queued learnings
  reflectctl queue list

  # Dump the queue as JSON
  reflectctl queue list --json

  # Drop everything
  reflectctl queue clear`,
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued learnings",
	RunE:  runQueueList,
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all queued learnings",
	RunE:  runQueueClear,
}

func openQueue() (*queue.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := queue.Open(cfg.Capture.QueuePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue: %w", err)
	}
	return store, nil
}

func runQueueList(cmd *cobra.Command, args []string) error {
	store, err := openQueue()
	if err != nil {
		return err
	}
	items := store.Items()

	if queueJSON {
		return outputJSON(items)
	}

	if len(items) == 0 {
		fmt.Println("Queue is empty")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCATEGORY\tCONF\tSOURCE\tPROJECT\tAGE\tMESSAGE")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%.0f%%\t%s\t%s\t%s\t%s\n",
			truncate(item.ID, 11),
			item.Category,
			item.Confidence*100,
			item.Source,
			item.Project.Name,
			humanAge(time.Since(item.CapturedAt)),
			truncate(oneLine(item.Message), 60),
		)
	}
	w.Flush()

	fmt.Printf("\n%s\n", dimStyle.Render(fmt.Sprintf("%d item(s) in %s", len(items), store.Path())))
	return nil
}

func runQueueClear(cmd *cobra.Command, args []string) error {
	store, err := openQueue()
	if err != nil {
		return err
	}
	n := store.Len()
	if err := store.Clear(); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	fmt.Printf("Removed %d item(s)\n", n)
	return nil
}

// oneLine flattens newlines so a message stays on its table row.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// humanAge renders an age in its largest sensible unit.
func humanAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
