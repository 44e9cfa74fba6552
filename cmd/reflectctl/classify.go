package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/reflectd/internal/capture"
	"github.com/fyrsmithlabs/reflectd/internal/category"
	"github.com/fyrsmithlabs/reflectd/internal/client"
)

var (
	// classify command flags
	classifyJSON    bool
	classifySpawn   bool
	classifyTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "Output result as JSON")
	classifyCmd.Flags().BoolVar(&classifySpawn, "spawn", false, "Spawn the daemon if it is not running")
	classifyCmd.Flags().DurationVar(&classifyTimeout, "timeout", 0, "Per-call budget (default from config)")
}

var classifyCmd = &cobra.Command{
	Use:   "classify [text]",
	Short: "Classify text as correction, guardrail, positive, or noise",
	Long: `Classify text through the structural prefilter and, when the prefilter
is undecided, the embedding daemon. Without a reachable daemon the
result degrades to unknown with confidence zero.

Examples:
  # Classify an argument
  reflectctl classify "remember: always run the linter before pushing"

  # Classify stdin
  echo "use pnpm instead of npm here" | reflectctl classify -

  # Spawn the daemon first and emit JSON
  reflectctl classify --spawn --json "nunca subas directamente a main"`,
	Args: cobra.ArbitraryArgs,
	RunE: runClassify,
}

// timeoutClassifier widens the per-call budget beyond the interactive
// default, for manual runs and bulk scans.
type timeoutClassifier struct {
	cli     *client.Client
	timeout time.Duration
}

func (t timeoutClassifier) Classify(text string) category.Result {
	return t.cli.ClassifyTimeout(text, t.timeout)
}

// readText collects input text from args or stdin.
func readText(args []string) (string, error) {
	if len(args) > 0 && args[0] != "-" {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read from stdin: %w", err)
	}
	return string(data), nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	text, err := readText(args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("no text to classify")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()
	cli := newClient(cfg, logger)

	if classifySpawn {
		if err := cli.Ensure(context.Background()); err != nil {
			warnf("daemon unavailable: %v", err)
		}
	}

	var cls capture.Classifier = cli
	if classifyTimeout > 0 {
		cls = timeoutClassifier{cli: cli, timeout: classifyTimeout}
	}
	res := capture.Detect(text, cls)

	if classifyJSON {
		return outputJSON(res)
	}

	fmt.Printf("%s  %s\n", categoryBadge(string(res.Category)), dimStyle.Render(fmt.Sprintf("%.0f%%", res.Confidence*100)))
	fmt.Printf("%s %s\n", labelStyle.Render("Source: "), res.Source)
	if res.TopAnchor != "" {
		fmt.Printf("%s %s\n", labelStyle.Render("Anchor: "), res.TopAnchor)
	}
	fmt.Printf("%s %s\n", labelStyle.Render("Latency:"), fmt.Sprintf("%.1fms", res.LatencyMS))

	return nil
}
