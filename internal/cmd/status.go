package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/reactome/release-qa-sub001/domain/checks"
)

// DefaultServer is the API address used when --server is not set.
const DefaultServer = "http://localhost:3002"

// apiError mirrors the server's error body.
type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newAPIClient(server string) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(server, "/")).
		SetTimeout(30*time.Minute).
		SetHeader("Accept", "application/json")
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	var trigger bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the latest run of a release-qa server",
		RunE: func(cmd *cobra.Command, args []string) error {
			server := opts.v.GetString("server")
			if server == "" {
				server = DefaultServer
			}
			client := newAPIClient(server)
			ctx := cmd.Context()

			var summary checks.RunSummary
			var apiErr apiError
			var (
				resp *resty.Response
				err  error
			)
			if trigger {
				resp, err = client.R().SetContext(ctx).SetResult(&summary).SetError(&apiErr).Post("/api/runs")
			} else {
				resp, err = client.R().SetContext(ctx).
					SetQueryParam("summary", "true").
					SetResult(&summary).SetError(&apiErr).
					Get("/api/runs/latest")
			}
			if err != nil {
				return fmt.Errorf("request %s: %w", server, err)
			}

			out := cmd.OutOrStdout()
			st := newStyles(opts.noColor)
			if resp.StatusCode() == http.StatusNotFound && !trigger {
				_, err := fmt.Fprintln(out, st.muted.Render("no run yet"))
				return err
			}
			if resp.IsError() {
				msg := apiErr.Error.Message
				if msg == "" {
					msg = resp.Status()
				}
				return fmt.Errorf("server returned %d: %s", resp.StatusCode(), msg)
			}

			if opts.output == OutputJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			return writeSummary(out, summary, st)
		},
	}

	cmd.Flags().String("server", "", "release-qa server URL (default "+DefaultServer+")")
	cmd.Flags().BoolVar(&trigger, "trigger", false, "start a run and wait for it instead of reading the latest")
	return cmd
}

func writeSummary(w io.Writer, s checks.RunSummary, st styles) error {
	fmt.Fprintln(w, st.title.Render("run "+s.ID)+"  "+st.muted.Render(s.StartedAt))

	names := make([]string, 0, len(s.Checks))
	for name := range s.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := make(map[string]bool, len(s.Failed))
	for _, f := range s.Failed {
		failed[f] = true
	}

	table := tablewriter.NewWriter(w)
	table.Header("Check", "Anomalies", "Status")
	for _, name := range names {
		status := "ok"
		if failed[name] {
			status = "failed"
		}
		if err := table.Append(name, fmt.Sprint(s.Checks[name]), status); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, st.summary.Render(fmt.Sprintf("anomalies: %d  failed: %d", s.Anomalies, len(s.Failed))))
	return err
}
