package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfig points the store at a temp dir and returns the config path.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "presale.toml")
	body := "[store]\ndir = \"" + filepath.ToSlash(dir) + "\"\n\n[log]\nlevel = \"error\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", writeConfig(t)}, args...))
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestGachaOdds(t *testing.T) {
	out := run(t, "gacha", "odds")
	for _, want := range []string{"tryAgain", "epic", "95.000000%", "after 50 draws", "after 100 draws"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestGachaSimulate(t *testing.T) {
	out := run(t, "gacha", "simulate", "--draws", "500", "--seed", "7")
	if !strings.Contains(out, "draws: 500") {
		t.Errorf("output missing draw count:\n%s", out)
	}
	// 500 draws cross the rare threshold ten times.
	if strings.Contains(out, "rare pity hits: 0 ") {
		t.Errorf("expected rare pity to fire:\n%s", out)
	}
}

func TestLeaderboard_Empty(t *testing.T) {
	out := run(t, "leaderboard")
	if !strings.Contains(out, "No referrers yet.") {
		t.Errorf("output = %q", out)
	}
}

func TestPlayerShow_Missing(t *testing.T) {
	out := run(t, "player", "show", "0:nobody")
	if !strings.Contains(out, `"code": "0:nobody"`) || !strings.Contains(out, `"total_invites": 0`) {
		t.Errorf("output = %s", out)
	}
}
