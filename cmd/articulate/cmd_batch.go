package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"articulate/internal/batch"
	"articulate/internal/format"
	"articulate/internal/report"
)

var batchFlags struct {
	config       string
	workers      int
	degreeLimits bool
	toMJCF       []string
	toScene      []string
	timeout      time.Duration
	markdown     bool
}

var batchCmd = &cobra.Command{
	Use:   "batch <root-dir>",
	Short: "Convert every object subdirectory of a root directory",
	Long: `Run the conversion pipeline over each subdirectory of the root, one object
per subdirectory, across a bounded worker pool. A failing object is recorded
in the summary and never stops its siblings. Interrupting the run (Ctrl-C)
cancels cooperatively: objects already in flight finish, queued ones are
marked cancelled.

Settings can come from a YAML/JSON config file (--config); flags override it.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	f := batchCmd.Flags()
	f.StringVar(&batchFlags.config, "config", "", "Batch config file (YAML or JSON)")
	f.IntVar(&batchFlags.workers, "workers", 0, "Worker pool size (default: number of CPUs)")
	f.BoolVar(&batchFlags.degreeLimits, "degree-limits", false, "Treat revolute limits in the descriptions as degrees")
	f.StringSliceVar(&batchFlags.toMJCF, "to-mjcf", nil, "External converter command for description → physics XML")
	f.StringSliceVar(&batchFlags.toScene, "to-scene", nil, "External converter command for physics XML → scene")
	f.DurationVar(&batchFlags.timeout, "timeout", 0, "Per-converter timeout (default 60s)")
	f.BoolVar(&batchFlags.markdown, "markdown", false, "Render the summary as Markdown")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg := batch.Config{}
	if batchFlags.config != "" {
		loaded, err := batch.LoadConfig(batchFlags.config)
		if err != nil {
			return err
		}
		cfg = *loaded
	}
	if batchFlags.workers > 0 {
		cfg.Workers = batchFlags.workers
	}
	if batchFlags.degreeLimits {
		cfg.DegreeLimits = true
	}
	if len(batchFlags.toMJCF) > 0 {
		cfg.ToMJCF = batchFlags.toMJCF
	}
	if len(batchFlags.toScene) > 0 {
		cfg.ToScene = batchFlags.toScene
	}
	if batchFlags.timeout > 0 {
		cfg.SetTimeout(batchFlags.timeout)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := batch.Run(ctx, args[0], cfg)
	if err != nil {
		return err
	}

	mode := format.ASCII
	if batchFlags.markdown {
		mode = format.Markdown
	}
	fmt.Println(report.Batch(summary, mode))

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d objects failed", summary.Failed, summary.Total)
	}
	return nil
}
