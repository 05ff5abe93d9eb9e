package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(playerCmd)
	playerCmd.AddCommand(playerShowCmd)
	rootCmd.AddCommand(leaderboardCmd)
}

var playerCmd = &cobra.Command{
	Use:   "player",
	Short: "Inspect player documents",
}

// ─── player show ────────────────────────────────────────────────────────────

var playerShowCmd = &cobra.Command{
	Use:   "show CODE",
	Short: "Print a player document and its invite stats",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlayerShow,
}

func runPlayerShow(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := context.Background()
	p, err := d.Presale.Player(ctx, args[0])
	if err != nil {
		return err
	}
	stats, err := d.Presale.Stats(ctx, args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{
		"code":   args[0],
		"player": p,
		"stats":  stats,
	})
}

// ─── leaderboard ────────────────────────────────────────────────────────────

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Print the top referrers",
	Args:  cobra.NoArgs,
	RunE:  runLeaderboard,
}

func runLeaderboard(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	top, err := d.Leaderboard.Top(context.Background())
	if err != nil {
		return err
	}
	if len(top) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No referrers yet.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tREFERRER\tREFERRALS\tVALID\tELIGIBLE\tVOLUME (TON)")
	for _, e := range top {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%s\n",
			e.Rank, e.Referrer, e.ReferralCount, e.ValidInvites, e.EligibleInvites, e.TotalAmount.StringFixed(2))
	}
	return w.Flush()
}
