package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oldmoneygit/MARCOLA-sub004/internal/research"
)

var (
	researchOwner    string
	researchType     string
	researchCity     string
	researchState    string
	researchQuantity int
	researchTone     string
)

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Run a discovery search and persist the scored leads",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("research"); err != nil {
			return err
		}
		owner, err := resolveOwner(researchOwner)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		res, err := newOrchestrator(st).Run(ctx, owner, research.Params{
			BusinessType: researchType,
			City:         researchCity,
			State:        researchState,
			Quantity:     researchQuantity,
			Tone:         researchTone,
		})
		if err != nil {
			return eris.Wrap(err, "research run")
		}

		zap.L().Info("research complete",
			zap.String("run_id", res.RunID),
			zap.Int("found", res.Stats.TotalFound),
			zap.Int("new", res.Stats.NewLeads),
			zap.Int("duplicates", res.Stats.Duplicates),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	researchCmd.Flags().StringVar(&researchOwner, "owner", "", "owner id (default from config)")
	researchCmd.Flags().StringVar(&researchType, "type", "", "business type, e.g. padaria (required)")
	researchCmd.Flags().StringVar(&researchCity, "city", "", "city to search in (required)")
	researchCmd.Flags().StringVar(&researchState, "state", "", "two-letter state code")
	researchCmd.Flags().IntVar(&researchQuantity, "quantity", 0, "how many businesses to fetch (default from config)")
	researchCmd.Flags().StringVar(&researchTone, "tone", "", "icebreaker tone (default from config)")
	_ = researchCmd.MarkFlagRequired("type")
	_ = researchCmd.MarkFlagRequired("city")
	rootCmd.AddCommand(researchCmd)
}
