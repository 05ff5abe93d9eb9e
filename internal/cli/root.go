// Package cli implements the presaled command line.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spider-presale/presale/internal/daemon"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "presaled",
	Short: "SPIDER token presale backend",
	Long: `presaled runs the SPIDER presale ledger: purchases, referral tiers,
Feeders rewards, gacha draws and the referral leaderboard.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to presale.toml")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	if p := os.Getenv("PRESALE_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "presale.toml"
	}
	return filepath.Join(home, ".presale", "presale.toml")
}

func loadConfig() (daemon.Config, error) {
	cfg, err := daemon.LoadConfig(configPath)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// openDaemon loads the config and opens the store. The caller closes it.
func openDaemon() (*daemon.Daemon, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return daemon.New(cfg)
}
