package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var verifyOwner string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check lead websites for marketing-stack signals",
}

var verifyLeadCmd = &cobra.Command{
	Use:   "lead <lead-id>",
	Short: "Verify a single lead and re-score it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("verify"); err != nil {
			return err
		}
		owner, err := resolveOwner(verifyOwner)
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

		l, err := newVerifyService(st).VerifyLead(ctx, owner, args[0])
		if err != nil {
			return eris.Wrap(err, "verify lead")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(l)
	},
}

var verifyBatchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Verify every unverified lead with a website",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("verify"); err != nil {
			return err
		}
		owner, err := resolveOwner(verifyOwner)
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

		summary, err := newVerifyService(st).RunBatch(ctx, owner)
		if err != nil {
			return eris.Wrap(err, "verify batch")
		}

		zap.L().Info("batch complete",
			zap.Int("total", summary.Total),
			zap.Int("succeeded", summary.Succeeded),
			zap.Int("failed", summary.Failed),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

var verifyPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Count leads still waiting for verification",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("verify"); err != nil {
			return err
		}
		owner, err := resolveOwner(verifyOwner)
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

		n, err := newVerifyService(st).CountPending(ctx, owner)
		if err != nil {
			return eris.Wrap(err, "verify pending")
		}

		fmt.Fprintf(os.Stdout, "%d lead(s) pending verification\n", n)
		return nil
	},
}

func init() {
	verifyCmd.PersistentFlags().StringVar(&verifyOwner, "owner", "", "owner id (default from config)")
	verifyCmd.AddCommand(verifyLeadCmd)
	verifyCmd.AddCommand(verifyBatchCmd)
	verifyCmd.AddCommand(verifyPendingCmd)
	rootCmd.AddCommand(verifyCmd)
}
