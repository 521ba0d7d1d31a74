package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/smazurov/superprocess/internal/jobs"
)

// CreateValidateCmd creates the validate command.
func CreateValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [jobs-file]",
		Short: "Validate a jobs file",
		Long: `Parses a TOML or YAML jobs file and reports every invalid job. ` +
			`Defaults to jobs.toml in the working directory.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(c *cobra.Command, args []string) error {
			path := "jobs.toml"
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(c.OutOrStdout(), path)
		},
	}
}

func runValidate(w io.Writer, path string) error {
	file, err := jobs.Load(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s: %d jobs (version %d)\n", path, len(file.Jobs), file.Version)
	for _, name := range file.Names() {
		job := file.Jobs[name]
		target := job.Command
		if job.EffectiveKind() == jobs.KindUnit {
			target = job.Unit
		}
		line := fmt.Sprintf("  %-20s %-8s %s", name, job.EffectiveKind(), target)
		if !job.IsEnabled() {
			line += " (disabled)"
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
