package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/oldmoneygit/MARCOLA-sub004/internal/outreach"
)

var (
	outreachOwner   string
	outreachMessage string
)

var outreachCmd = &cobra.Command{
	Use:   "send <lead-id>",
	Short: "Send a WhatsApp message to a lead",
	Long:  "Sends via the configured WhatsApp gateway when available, otherwise prints a wa.me link to send manually. Either way the contact is logged.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("outreach"); err != nil {
			return err
		}
		owner, err := resolveOwner(outreachOwner)
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

		delivery, err := newDispatcher(st).Send(ctx, owner, outreach.Request{
			LeadID:  args[0],
			Message: outreachMessage,
		})
		if err != nil {
			return eris.Wrap(err, "outreach send")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(delivery)
	},
}

func init() {
	outreachCmd.Flags().StringVar(&outreachOwner, "owner", "", "owner id (default from config)")
	outreachCmd.Flags().StringVar(&outreachMessage, "message", "", "message text (default: the lead's stored icebreaker)")
	rootCmd.AddCommand(outreachCmd)
}
