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
	"github.com/fyrsmithlabs/reflectd/internal/client"
	"github.com/fyrsmithlabs/reflectd/internal/config"
	"github.com/fyrsmithlabs/reflectd/internal/logging"
	"github.com/fyrsmithlabs/reflectd/internal/queue"
	"github.com/fyrsmithlabs/reflectd/internal/secrets"
)

// dedupEmbedTimeout is the embedding budget for duplicate checks. The
// capture path is off the interactive hot path, so it can wait longer
// than a classify call.
const dedupEmbedTimeout = 2 * time.Second

var (
	// capture command flags
	captureSpawn   bool
	captureWorkDir string
)

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().BoolVar(&captureSpawn, "spawn", true, "Spawn the daemon if it is not running")
	captureCmd.Flags().StringVar(&captureWorkDir, "work-dir", "", "Directory for project detection (default current directory)")
}

var captureCmd = &cobra.Command{
	Use:   "capture [text]",
	Short: "Capture a learning into the queue",
	Long: `Capture classifies input and appends learnings to the local queue.

Without arguments it reads a hook payload from stdin, a JSON object
carrying the user text in a "prompt", "message", or "text" field, and
prints an acknowledgement line when something was captured. This mode
never exits nonzero: a broken capture must not break the conversation
it observes.

With an argument the text is captured directly.

Examples:
  # Hook mode: payload on stdin
  echo '{"prompt":"remember: never commit directly to main"}' | reflectctl capture

  # Direct text
  reflectctl capture "usa pnpm en lugar de npm aqui"`,
	Args: cobra.ArbitraryArgs,
	RunE: runCapture,
}

// buildPipeline assembles the capture pipeline from configuration: the
// queue store, the secret redactor, and the dedup index seeded from
// items already queued. The classifier is passed separately so bulk
// commands can widen the per-call budget.
func buildPipeline(ctx context.Context, cfg *config.Config, cli *client.Client, cls capture.Classifier, logger *logging.Logger, workDir, source string) (*capture.Pipeline, *queue.Store, error) {
	store, err := queue.Open(cfg.Capture.QueuePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open queue: %w", err)
	}

	var redactor *secrets.Redactor
	if cfg.Capture.RedactSecrets {
		redactor, err = secrets.New()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build redactor: %w", err)
		}
	}

	embed := func(text string) []float32 { return cli.Embed(text, dedupEmbedTimeout) }
	dedup, err := queue.NewDeduper(embed, cfg.Capture.DedupThreshold, logger)
	if err != nil {
		return nil, nil, err
	}
	dedup.Seed(ctx, store.Items())

	if workDir == "" {
		workDir, err = os.Getwd()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get current directory: %w", err)
		}
	}

	pipeline, err := capture.New(capture.Options{
		Store:      store,
		Classifier: cls,
		Redactor:   redactor,
		Dedup:      dedup,
		WorkDir:    workDir,
		Source:     source,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return pipeline, store, nil
}

// runCapture always returns nil: hook mode must exit zero no matter
// what went wrong, and direct mode follows the same discipline so both
// behave identically in scripts.
func runCapture(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		warnf("capture skipped: %v", err)
		return nil
	}
	logger := newLogger()
	cli := newClient(cfg, logger)

	if captureSpawn {
		if err := cli.Ensure(ctx); err != nil {
			// Degraded capture still works through the prefilter.
			warnf("daemon unavailable: %v", err)
		}
	}

	pipeline, _, err := buildPipeline(ctx, cfg, cli, cli, logger, captureWorkDir, capture.SourceHook)
	if err != nil {
		warnf("capture skipped: %v", err)
		return nil
	}

	var out capture.Outcome
	if len(args) > 0 && args[0] != "-" {
		out, err = pipeline.Capture(ctx, strings.Join(args, " "))
	} else {
		var payload []byte
		payload, err = io.ReadAll(os.Stdin)
		if err == nil {
			out, err = pipeline.CaptureHook(ctx, payload)
		}
	}
	if err != nil {
		warnf("capture failed: %v", err)
		return nil
	}

	if out.Ack != "" {
		fmt.Println(out.Ack)
	}
	return nil
}
