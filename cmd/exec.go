package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smazurov/superprocess/internal/jobs"
	"github.com/smazurov/superprocess/internal/logging"
	"github.com/smazurov/superprocess/internal/process"
	"github.com/smazurov/superprocess/internal/supervisor"
	"github.com/smazurov/superprocess/internal/systemd"
)

type execOptions struct {
	JobsFile string
	Bus      string
	Count    int
	JSON     bool
	Logs     bool
}

type execResult struct {
	ID         string  `json:"id"`
	Success    bool    `json:"success"`
	Value      any     `json:"value,omitempty"`
	Attempts   int     `json:"attempts"`
	DurationMs float64 `json:"duration_ms"`
	State      string  `json:"state"`
	Optimized  bool    `json:"optimized"`
	Error      string  `json:"error,omitempty"`
}

type execReport struct {
	Job     string          `json:"job"`
	Results []execResult    `json:"results"`
	Metrics process.Metrics `json:"metrics"`
}

// CreateExecCmd creates the exec command.
func CreateExecCmd() *cobra.Command {
	var opts execOptions

	cmd := &cobra.Command{
		Use:   "exec [job]",
		Short: "Run a job once and print the result",
		Long: `Builds the named job from the jobs file and runs it as a single logical invocation ` +
			`with the job's retry policy, then prints the result and the collected metrics. ` +
			`Continuous mode is never started.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(c *cobra.Command, args []string) error {
			logging.Initialize(logging.Config{Level: "info", Format: logging.FormatText, Quiet: true})

			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runExec(ctx, c.OutOrStdout(), opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.JobsFile, "jobs", "j", "jobs.toml", "Jobs file (.toml, .yaml)")
	cmd.Flags().StringVar(&opts.Bus, "systemd-bus", string(systemd.BusSystem), "systemd bus for unit jobs (system, user)")
	cmd.Flags().IntVarP(&opts.Count, "count", "n", 1, "Number of invocations")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Print a JSON report")
	cmd.Flags().BoolVar(&opts.Logs, "logs", false, "Print the job's log lines after the results")
	return cmd
}

func runExec(ctx context.Context, w io.Writer, opts execOptions, name string) error {
	file, err := jobs.Load(opts.JobsFile)
	if err != nil {
		return err
	}
	job, ok := file.Get(name)
	if !ok {
		return fmt.Errorf("job %q not found in %s", name, opts.JobsFile)
	}

	svcOpts := supervisor.Options{
		Logger:        logging.GetLogger("exec"),
		ProcessLogger: logging.GetLogger("process"),
	}
	if job.EffectiveKind() == jobs.KindUnit {
		units, err := systemd.NewManager(ctx, systemd.Bus(opts.Bus))
		if err != nil {
			return err
		}
		defer units.Close()
		svcOpts.Units = units
	}

	p, err := supervisor.New(svcOpts).Build(job)
	if err != nil {
		return err
	}
	defer p.Stop()

	report := execReport{Job: name, Results: []execResult{}}
	var lastErr error
	for i := range max(opts.Count, 1) {
		res, err := p.Execute(ctx)
		if res == nil {
			return err
		}
		lastErr = err

		r := toExecResult(res)
		report.Results = append(report.Results, r)
		if !opts.JSON {
			printResult(w, i+1, r)
		}
	}
	report.Metrics = p.Metrics()

	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printMetrics(w, report.Metrics)
		if opts.Logs {
			printLogs(w, name)
		}
	}

	if lastErr != nil {
		return fmt.Errorf("job %q failed: %w", name, lastErr)
	}
	return nil
}

func toExecResult(res *process.Result) execResult {
	r := execResult{
		ID:         res.ID.String(),
		Success:    res.Err == nil,
		Value:      res.Value,
		Attempts:   res.Attempts,
		DurationMs: float64(res.Duration.Microseconds()) / 1000,
		State:      string(res.State),
		Optimized:  res.Optimized,
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
	}
	return r
}

func printResult(w io.Writer, n int, r execResult) {
	status := "ok"
	if !r.Success {
		status = "FAILED"
	}
	fmt.Fprintf(w, "#%d %s attempts=%d duration=%.1fms state=%s", n, status, r.Attempts, r.DurationMs, r.State)
	if r.Optimized {
		fmt.Fprint(w, " optimized")
	}
	fmt.Fprintln(w)
	if r.Value != nil {
		fmt.Fprintf(w, "   value: %v\n", r.Value)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "   error: %s\n", r.Error)
	}
}

func printMetrics(w io.Writer, m process.Metrics) {
	fmt.Fprintf(w, "executions=%d successes=%d failures=%d success_rate=%.2f avg_duration=%s optimization_level=%.1f\n",
		m.ExecutionCount, m.SuccessCount, m.FailureCount, m.SuccessRate(), m.AverageDuration(), m.OptimizationLevel)
}

// printLogs prints the buffered entries that mention the job.
func printLogs(w io.Writer, name string) {
	for _, entry := range logging.GetBuffer().ReadAll() {
		if entry.Attributes["process"] == name {
			fmt.Fprintln(w, logging.FormatLogLine(entry))
		}
	}
}
