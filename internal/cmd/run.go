package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/reactome/release-qa-sub001/domain/checks"
	"github.com/reactome/release-qa-sub001/pkg/report"
)

// ErrAnomaliesFound is returned by run --fail-on-anomalies.
var ErrAnomaliesFound = errors.New("anomalies found")

func addSourceFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("schema", "", "schema YAML file (QA_SCHEMA_PATH)")
	f.String("schema-source", "", "schema source: file or database (QA_SCHEMA_SOURCE)")
	f.String("snapshot", "", "instance snapshot YAML; omit to read PostgreSQL (QA_SNAPSHOT_PATH)")
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	var (
		only            []string
		failOnAnomalies bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the check suite once and print the reports",
		Example: `  release-qa run --schema configs/schema.yaml --snapshot snapshot.yaml
  release-qa run --check InferredToCycles --check AttributeCollisions -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			log := opts.logger()
			ctx := cmd.Context()

			env, err := openEnvironment(ctx, cfg, log, true)
			if err != nil {
				return err
			}
			defer env.Close()

			suite, err := checks.ProvideSuite(cfg)
			if err != nil {
				return err
			}
			suite, err = suite.Select(only)
			if err != nil {
				return err
			}
			built, err := suite.Build(env.model, log)
			if err != nil {
				return err
			}

			runner := checks.NewRunner(log,
				checks.WithParallelism(suite.Parallelism),
				checks.WithAuthors(suite.Resolver()),
			)
			run := runner.Run(ctx, env.store, built)

			if err := writeRun(cmd.OutOrStdout(), run, opts.output, newStyles(opts.noColor)); err != nil {
				return err
			}
			if failOnAnomalies && run.Anomalies() > 0 {
				return fmt.Errorf("%w: %d", ErrAnomaliesFound, run.Anomalies())
			}
			return nil
		},
	}

	addSourceFlags(cmd)
	f := cmd.Flags()
	f.String("suite", "", "check suite YAML; defaults to the built-in suite (QA_SUITE_PATH)")
	f.Int("parallelism", 0, "checks to run at once (QA_PARALLELISM)")
	f.StringSliceVar(&only, "check", nil, "run only the named checks (repeatable)")
	f.BoolVar(&failOnAnomalies, "fail-on-anomalies", false, "exit non-zero when any check reports rows")
	return cmd
}

func writeRun(w io.Writer, run *checks.Run, output string, st styles) error {
	switch output {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	case OutputTable, "":
	default:
		return fmt.Errorf("unknown output format %q", output)
	}

	for _, res := range run.Results {
		var badge string
		switch {
		case res.Status == checks.StatusFailed:
			badge = st.failed.Render("failed: " + res.Error)
		case res.Report.Empty():
			badge = st.ok.Render("ok")
		default:
			badge = st.warn.Render(fmt.Sprintf("%d anomalies", res.Report.Len()))
		}
		fmt.Fprintf(w, "%s  %s %s\n", st.title.Render(res.Check), badge, st.muted.Render(fmt.Sprintf("(%dms)", res.DurationMS)))
		if !res.Report.Empty() {
			if err := report.WriteTable(w, res.Report); err != nil {
				return err
			}
		}
		fmt.Fprintln(w)
	}

	lines := []string{
		fmt.Sprintf("run %s", run.ID),
		fmt.Sprintf("checks: %d  anomalies: %d  failed: %d", len(run.Results), run.Anomalies(), len(run.Failed())),
		fmt.Sprintf("took: %s", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond)),
	}
	if failed := run.Failed(); len(failed) > 0 {
		lines = append(lines, "failed checks: "+strings.Join(failed, ", "))
	}
	_, err := fmt.Fprintln(w, st.summary.Render(strings.Join(lines, "\n")))
	return err
}
