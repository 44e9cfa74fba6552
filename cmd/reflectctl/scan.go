package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/reflectd/internal/capture"
	"github.com/fyrsmithlabs/reflectd/internal/session"
)

// scanClassifyTimeout is the per-text classify budget for bulk scans.
// Nobody is waiting at a prompt, so it trades latency for fewer
// degraded results while the daemon warms up.
const scanClassifyTimeout = 2 * time.Second

var (
	// scan command flags
	scanFollow  bool
	scanJSON    bool
	scanSpawn   bool
	scanWorkDir string
)

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().BoolVar(&scanFollow, "follow", false, "Keep watching the transcript for new lines")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Output scan results as JSON")
	scanCmd.Flags().BoolVar(&scanSpawn, "spawn", true, "Spawn the daemon if it is not running")
	scanCmd.Flags().StringVar(&scanWorkDir, "work-dir", "", "Directory for project detection (default current directory)")
}

var scanCmd = &cobra.Command{
	Use:   "scan <path>...",
	Short: "Scan session transcripts for learnings",
	Long: `Scan extracts user messages and tool rejections from JSONL session
transcripts and runs each through the capture pipeline. Directories
are expanded to the transcripts they contain.

With --follow, a single transcript is watched and new lines are
captured as they are written, until interrupted.

Examples:
  # Scan one transcript
  reflectctl scan ~/.claude/projects/myproject/session.jsonl

  # Scan every transcript under a directory
  reflectctl scan ~/.claude/projects

  # Follow a live session
  reflectctl scan --follow ~/.claude/projects/myproject/current.jsonl`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

// expandPaths resolves each argument to transcript files, descending
// into directories.
func expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", arg, err)
		}
		if info.IsDir() {
			found, err := session.FindTranscripts(arg)
			if err != nil {
				return nil, err
			}
			paths = append(paths, found...)
			continue
		}
		paths = append(paths, arg)
	}
	return paths, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	paths, err := expandPaths(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Println("No transcripts found")
		return nil
	}
	if scanFollow && len(paths) != 1 {
		return fmt.Errorf("--follow watches exactly one transcript, got %d", len(paths))
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()
	cli := newClient(cfg, logger)

	if scanSpawn {
		if err := cli.Ensure(ctx); err != nil {
			warnf("daemon unavailable, scanning through prefilter only: %v", err)
		}
	}

	// Bulk work gets a wider classify budget than the interactive default.
	cls := timeoutClassifier{cli: cli, timeout: scanClassifyTimeout}
	pipeline, _, err := buildPipeline(ctx, cfg, cli, cls, logger, scanWorkDir, capture.SourceScan)
	if err != nil {
		return err
	}

	scanner := session.NewScanner(pipeline, logger)

	if scanFollow {
		err := scanner.Follow(ctx, paths[0])
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	res, err := scanner.ScanFiles(ctx, paths)
	if err != nil {
		return err
	}

	if scanJSON {
		return outputJSON(res)
	}

	fmt.Printf("%s %s\n", labelStyle.Render("Transcripts:"), valueStyle.Render(fmt.Sprintf("%d", res.Files)))
	fmt.Printf("%s %s\n", labelStyle.Render("Entries:    "), valueStyle.Render(fmt.Sprintf("%d", res.Entries)))
	fmt.Printf("%s %s\n", labelStyle.Render("Captured:   "), healthyStyle.Render(fmt.Sprintf("%d", res.Captured)))
	fmt.Printf("%s %s\n", labelStyle.Render("Duplicates: "), dimStyle.Render(fmt.Sprintf("%d", res.Duplicates)))
	return nil
}
