package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gleaner/internal/browser"
	"gleaner/internal/driver"
	"gleaner/internal/emit"
	"gleaner/internal/logging"
	"gleaner/internal/pipeline"
	"gleaner/internal/sink"
	"gleaner/internal/task"
)

var version = "dev"

var (
	urlOverride string
	budget      time.Duration
	maxRecords  int
	emitEvery   int
	outputFile  string
	sample      bool
	markers     bool
	showUI      bool
	proxyURL    string
	userAgent   string
	logFile     string
	verbose     bool
)

func main() {
	var rootCmd = &cobra.Command{
		Use:     "gleaner [TASK_FILE]",
		Short:   "Structured extraction from dynamic web pages",
		Version: version,
		Long: `gleaner runs a declarative scraping task against a JavaScript-rendered
page: it extracts candidate records, validates them against the task's
schema, deduplicates, paginates until the source is exhausted or the time
budget runs out, and emits a JSON result envelope on stdout.`,
		Example: `  # Run a task and print the result envelope
  gleaner tasks/plumbers.yaml

  # Same task, different city page, capped at 50 records
  gleaner tasks/plumbers.yaml --url "https://example.com/search?city=austin" --max-records 50

  # Quick structure check: one page only, no pagination
  gleaner tasks/plumbers.yaml --sample

  # Persist records to CSV alongside the envelope
  gleaner tasks/plumbers.yaml -o leads.csv

  # Wrap the final envelope in markers for a supervising executor
  gleaner tasks/plumbers.yaml --markers --log-file run.log`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				cmd.Help()
				os.Exit(0)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE:         run,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVarP(&urlOverride, "url", "u", "", "Override the task's primary URL")
	rootCmd.Flags().DurationVarP(&budget, "budget", "t", 0, "Override the task's time budget (e.g. 90s, 5m)")
	rootCmd.Flags().IntVarP(&maxRecords, "max-records", "n", 0, "Stop after this many validated records (0 uses the task's limit)")
	rootCmd.Flags().IntVar(&emitEvery, "emit-every", 0, "Partial-envelope interval in records (0 uses the task's setting)")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Also write records to a file (.csv, .json, or .db)")
	rootCmd.Flags().BoolVar(&sample, "sample", false, "Extract the first page only and stop")
	rootCmd.Flags().BoolVar(&markers, "markers", false, "Wrap the final envelope in result markers")
	rootCmd.Flags().BoolVar(&showUI, "showui", false, "Show browser UI (disable headless mode)")
	rootCmd.Flags().StringVarP(&proxyURL, "proxy", "p", os.Getenv("GLEANER_PROXY"), "Proxy URL, defaults to GLEANER_PROXY env var")
	rootCmd.Flags().StringVar(&userAgent, "user-agent", "", "Override the browser user agent")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "Also write logs to this rotating file")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	flush := logging.Setup(verbose, logFile)
	defer flush()

	t, err := task.Load(args[0])
	if err != nil {
		return err
	}
	applyOverrides(t)

	emitter := emit.NewEmitter(os.Stdout, t.EmitEvery, markers)

	b, err := browser.New(browser.Config{
		ProxyURL:  proxyURL,
		Headless:  !showUI,
		UserAgent: userAgent,
	})
	if err != nil {
		return fail(emitter, fmt.Errorf("failed to start browser: %w", err))
	}
	defer b.Close()

	page, err := driver.NewRodPage(b)
	if err != nil {
		return fail(emitter, fmt.Errorf("failed to open page: %w", err))
	}
	defer page.Close()

	runner := pipeline.NewRunner(t, emitter, nil, sample)

	if outputFile != "" {
		out, err := sink.Open(outputFile, runner.RunID(), t.ColumnOrder())
		if err != nil {
			return fail(emitter, err)
		}
		defer out.Close()
		runner.AttachSink(out)
	}

	summary, err := runner.Run(cmd.Context(), page)
	if err != nil {
		return fail(emitter, err)
	}

	if outputFile != "" {
		fmt.Fprintf(os.Stderr, "Records written to: %s\n", outputFile)
	}
	zap.L().Debug("exiting", zap.String("runId", summary.RunID))
	return nil
}

func applyOverrides(t *task.Task) {
	if urlOverride != "" {
		t.URL = urlOverride
	}
	if budget > 0 {
		t.Budget = task.Duration(budget)
	}
	if maxRecords > 0 {
		t.MaxRecords = maxRecords
	}
	if emitEvery > 0 {
		t.EmitEvery = emitEvery
	}
}

// fail reports a fatal setup error through both channels: a success:false
// envelope for the consumer and a non-nil error for the exit code.
func fail(emitter *emit.Emitter, err error) error {
	zap.L().Error("run failed", zap.Error(err))
	if emitErr := emitter.Failure([]string{err.Error()}, 0, nil); emitErr != nil {
		zap.L().Warn("could not emit failure envelope", zap.Error(emitErr))
	}
	return err
}
