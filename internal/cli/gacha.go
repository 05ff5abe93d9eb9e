package cli

import (
	"fmt"
	"math/rand/v2"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spider-presale/presale/internal/app/gacha"
	"github.com/spider-presale/presale/internal/domain"
)

// ─── Gacha CLI ──────────────────────────────────────────────────────────────
// Both commands read only the [gacha] config; the store is never opened.

func init() {
	rootCmd.AddCommand(gachaCmd)
	gachaCmd.AddCommand(gachaOddsCmd)
	gachaCmd.AddCommand(gachaSimulateCmd)

	gachaSimulateCmd.Flags().IntP("draws", "n", 100_000, "number of draws")
	gachaSimulateCmd.Flags().Uint64("seed", 0, "RNG seed (0 = random)")
}

var gachaCmd = &cobra.Command{
	Use:   "gacha",
	Short: "Inspect the gacha configuration",
}

var gachaOddsCmd = &cobra.Command{
	Use:   "odds",
	Short: "Print the per-roll odds and pity thresholds",
	Args:  cobra.NoArgs,
	RunE:  runGachaOdds,
}

func runGachaOdds(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	gcfg := cfg.GachaEngine()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RARITY\tODDS")
	for _, o := range gcfg.Odds() {
		fmt.Fprintf(w, "%s\t%.6f%%\n", o.Rarity, o.Percent)
	}
	w.Flush()
	fmt.Fprintf(cmd.OutOrStdout(), "\nrare guaranteed after %d draws without one\n", gcfg.RarePity)
	fmt.Fprintf(cmd.OutOrStdout(), "epic guaranteed after %d draws without one\n", gcfg.EpicPity)
	return nil
}

var gachaSimulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run draws for one fresh player and report observed rates",
	Args:  cobra.NoArgs,
	RunE:  runGachaSimulate,
}

func runGachaSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	n, _ := cmd.Flags().GetInt("draws")
	if n <= 0 {
		return fmt.Errorf("--draws must be positive")
	}
	seed, _ := cmd.Flags().GetUint64("seed")

	rng := gacha.DefaultRNG()
	if seed != 0 {
		rng = rand.New(rand.NewPCG(seed, seed)).Float64
	}
	engine := gacha.NewEngine(cfg.GachaEngine(), rng)
	rep := engine.Simulate(n)

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RARITY\tCOUNT\tRATE")
	for _, r := range domain.Rarities {
		fmt.Fprintf(w, "%s\t%d\t%.4f%%\n", r, rep.Counts[r], rep.Rate(r))
	}
	w.Flush()
	fmt.Fprintf(out, "\ndraws: %d\n", rep.Draws)
	fmt.Fprintf(out, "rare pity hits: %d (longest gap %d)\n", rep.RarePityHits, rep.MaxRareGap)
	fmt.Fprintf(out, "epic pity hits: %d (longest gap %d)\n", rep.EpicPityHits, rep.MaxEpicGap)
	return nil
}
