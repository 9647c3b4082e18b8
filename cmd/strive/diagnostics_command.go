package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/al0nec0der/StrIve-sub000/internal/api"
)

func newDiagnosticsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var reset bool

	cmd := &cobra.Command{
		Use:     "diagnostics",
		Aliases: []string{"diag"},
		Short:   "Show request metrics, recommendations and credential health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				if reset {
					resp, err := client.ResetDiagnostics(cmd.Context())
					if err != nil {
						return err
					}
					if jsonOut {
						return writeJSON(cmd, resp)
					}
					fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
					return nil
				}
				resp, err := client.Diagnostics(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp)
				}
				printDiagnostics(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&reset, "reset", false, "Reset request metrics instead of printing them")
	return cmd
}

func printDiagnostics(out io.Writer, resp *api.DiagnosticsResponse) {
	m := resp.Metrics
	rows := [][]string{
		{"Requests", strconv.FormatInt(m.TotalRequests, 10)},
		{"Cache hits", strconv.FormatInt(m.CacheHits, 10)},
		{"Cache misses", strconv.FormatInt(m.CacheMisses, 10)},
		{"Hit rate", fmt.Sprintf("%.1f%%", m.HitRate*100)},
		{"Provider calls", strconv.FormatInt(m.ExternalCalls, 10)},
		{"Fallbacks", strconv.FormatInt(m.Fallbacks, 10)},
		{"Errors", strconv.FormatInt(m.Errors, 10)},
		{"Average latency", fmt.Sprintf("%.1f ms", m.AverageLatencyMS)},
	}
	if m.Since != "" {
		rows = append(rows, []string{"Since", m.Since})
	}
	if resp.CatalogBreaker != "" {
		rows = append(rows, []string{"Catalog breaker", resp.CatalogBreaker})
	}
	if resp.CachedRatings != nil {
		rows = append(rows, []string{"Cached ratings", strconv.Itoa(*resp.CachedRatings)})
	}
	fmt.Fprintln(out, renderTable(out, []string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))

	if len(m.CredentialUsage) > 0 {
		usage := make([][]string, 0, len(m.CredentialUsage))
		for _, id := range slices.Sorted(maps.Keys(m.CredentialUsage)) {
			usage = append(usage, []string{id, strconv.FormatInt(m.CredentialUsage[id], 10)})
		}
		fmt.Fprintln(out, renderTable(out, []string{"Credential", "Uses"}, usage, []columnAlignment{alignLeft, alignRight}))
	}
	if len(resp.Credentials) > 0 {
		fmt.Fprintln(out, renderCredentials(out, resp.Credentials))
	}

	if len(resp.Recommendations) == 0 {
		fmt.Fprintln(out, "No recommendations.")
		return
	}
	fmt.Fprintln(out, "Recommendations:")
	for _, rec := range resp.Recommendations {
		fmt.Fprintf(out, "  - %s\n", rec)
	}
}
