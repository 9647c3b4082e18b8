package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/al0nec0der/StrIve-sub000/internal/api"
)

func newKeysCommand(ctx *commandContext) *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Inspect and reset rating credentials",
	}
	keysCmd.AddCommand(newKeysListCommand(ctx))
	keysCmd.AddCommand(newKeysResetCommand(ctx))
	return keysCmd
}

func newKeysListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show credential usage and status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Keys(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderCredentials(out, resp.Credentials))
				fmt.Fprintf(out, "%d of %d credentials usable\n", resp.Usable, len(resp.Credentials))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newKeysResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Start a new daily quota period for every credential",
		Long: "Clears daily usage, quota exhaustion and authorization deactivation on the\n" +
			"daemon's credentials. Schedule it at the provider's quota rollover.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.ResetKeys(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			})
		},
	}
}

func renderCredentials(out io.Writer, creds []api.Credential) string {
	rows := make([][]string, 0, len(creds))
	for _, c := range creds {
		status := "active"
		switch {
		case !c.Active && c.DeactivatedUntil != "":
			status = "unauthorized until " + c.DeactivatedUntil
		case !c.Active:
			status = "inactive"
		case c.QuotaExceeded:
			status = "quota exceeded"
		}
		rows = append(rows, []string{
			c.ID,
			c.Masked,
			strconv.Itoa(c.DailyUsage) + "/" + strconv.Itoa(c.DailyQuota),
			strconv.Itoa(c.Remaining),
			strconv.Itoa(c.Failures),
			status,
		})
	}
	return renderTable(out, []string{"ID", "Key", "Used", "Remaining", "Failures", "Status"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft})
}
