package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/oldmoneygit/MARCOLA-sub004/internal/lead"
	"github.com/oldmoneygit/MARCOLA-sub004/internal/store"
)

var leadsOwner string

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Browse and edit the lead base",
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads, hottest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		owner, err := resolveOwner(leadsOwner)
		if err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		classification, _ := cmd.Flags().GetString("classification")
		status, _ := cmd.Flags().GetString("status")
		city, _ := cmd.Flags().GetString("city")
		limit, _ := cmd.Flags().GetInt("limit")

		f := store.LeadFilter{
			Classification: lead.Classification(classification),
			Status:         lead.Status(status),
			City:           city,
			Limit:          limit,
		}
		if minScore, _ := cmd.Flags().GetInt("min-score"); minScore > 0 {
			f.MinScore = &minScore
		}

		leads, err := st.ListLeads(ctx, owner, f)
		if err != nil {
			return eris.Wrap(err, "leads list")
		}

		if len(leads) == 0 {
			fmt.Fprintln(os.Stderr, "No leads found.")
			return nil
		}

		formatLeadsList(os.Stdout, leads)
		return nil
	},
}

var leadsShowCmd = &cobra.Command{
	Use:   "show <lead-id>",
	Short: "Show full details of a lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		owner, err := resolveOwner(leadsOwner)
		if err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		l, err := st.GetLead(ctx, owner, args[0])
		if err != nil {
			return eris.Wrap(err, "leads show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(l)
	},
}

func init() {
	leadsCmd.PersistentFlags().StringVar(&leadsOwner, "owner", "", "owner id (default from config)")
	leadsListCmd.Flags().String("classification", "", "filter by tier (HOT, WARM, COOL, COLD)")
	leadsListCmd.Flags().String("status", "", "filter by status (NOVO, CONTATADO, ...)")
	leadsListCmd.Flags().String("city", "", "filter by city, accent-insensitive")
	leadsListCmd.Flags().Int("min-score", 0, "minimum score")
	leadsListCmd.Flags().Int("limit", 50, "max number of leads to display")

	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsShowCmd)
	rootCmd.AddCommand(leadsCmd)
}

// formatLeadsList writes a tabular list of leads to w.
func formatLeadsList(out io.Writer, leads []lead.Lead) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tCITY\tSCORE\tTIER\tSTATUS\tVERIFIED")
	_, _ = fmt.Fprintln(w, "--\t----\t----\t-----\t----\t------\t--------")

	for _, l := range leads {
		name := l.Name
		if len(name) > 28 {
			name = name[:25] + "..."
		}
		verified := ""
		if l.Verified() {
			verified = string(l.Verification.Level)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			truncateID(l.ID),
			name,
			l.City,
			l.Score,
			l.Classification,
			l.Status,
			verified,
		)
	}
	_ = w.Flush()
}
