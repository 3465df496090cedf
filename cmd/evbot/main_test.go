package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/zulandar/evbot/internal/config"
)

// writeTestConfig writes a sqlite config into a temp dir and returns its path.
func writeTestConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "evbot.yaml")
	body := "database:\n  driver: sqlite\n  path: " + filepath.Join(dir, "evbot.db") + "\n" + extra
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// runCmd executes the root command with args and returns its combined output.
func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := runCmd(t, "", "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "evbot dev") {
		t.Errorf("expected output to contain 'evbot dev', got: %s", out)
	}
	if !strings.Contains(out, "commit: none") {
		t.Errorf("expected output to contain 'commit: none', got: %s", out)
	}
}

func TestVersionCmdWithCustomValues(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = "1.0.0", "abc123", "2026-01-01"
	defer func() { Version, Commit, Date = origVersion, origCommit, origDate }()

	out, err := runCmd(t, "", "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	want := "evbot 1.0.0 (commit: abc123, built: 2026-01-01)\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestRootCmdHelp(t *testing.T) {
	out, err := runCmd(t, "", "--help")
	if err != nil {
		t.Fatalf("help command failed: %v", err)
	}
	for _, sub := range []string{"EV charging", "version", "db", "serve", "telegraph", "chat"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected help output to contain %q, got: %s", sub, out)
		}
	}
}

func TestRootCmdNoArgs(t *testing.T) {
	out, err := runCmd(t, "")
	if err != nil {
		t.Fatalf("root command failed: %v", err)
	}
	if !strings.Contains(out, "Usage") {
		t.Errorf("expected usage output, got: %s", out)
	}
}

func TestExecute_Error(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"no-such-command"})
	if got := execute(cmd); got != 1 {
		t.Errorf("execute = %d, want 1", got)
	}
}

// --- loadConfig tests ---

func TestLoadConfig_DefaultFallback(t *testing.T) {
	var path string
	cmd := &cobra.Command{Use: "x"}
	addConfigFlag(cmd, &path)
	buf := new(bytes.Buffer)
	cmd.SetErr(buf)

	cfg, err := loadConfig(cmd, filepath.Join(t.TempDir(), "evbot.yaml"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Database.Driver != "sqlite" || cfg.City != "Jaipur" {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
	if !strings.Contains(buf.String(), "using defaults") {
		t.Errorf("stderr = %q", buf.String())
	}
}

func TestLoadConfig_ExplicitMissing(t *testing.T) {
	out, err := runCmd(t, "", "db", "seed", "--config", "/nonexistent/evbot.yaml")
	if err == nil {
		t.Fatalf("expected error for missing config file, output: %s", out)
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "load config")
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := writeTestConfig(t, "telegraph:\n  platform: irc\n")
	_, err := runCmd(t, "", "db", "init", "-c", path)
	if err == nil || !strings.Contains(err.Error(), "telegraph.platform") {
		t.Errorf("err = %v, want a platform validation error", err)
	}
}

func TestAddConfigFlag(t *testing.T) {
	for _, cmd := range []*cobra.Command{newDBInitCmd(), newDBSeedCmd(), newDBResetCmd(), newServeCmd(), newTelegraphStartCmd(), newChatCmd()} {
		f := cmd.Flags().Lookup("config")
		if f == nil {
			t.Errorf("%s: expected --config flag", cmd.Name())
			continue
		}
		if f.Shorthand != "c" || f.DefValue != "evbot.yaml" {
			t.Errorf("%s: --config = -%s %q", cmd.Name(), f.Shorthand, f.DefValue)
		}
	}
}

func TestBuildApp_FormsAreSweptAndCleared(t *testing.T) {
	path := writeTestConfig(t, "")
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	gormDB, err := openDB(cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	a, err := buildApp(cfg, gormDB)
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	ctx := context.Background()

	removed := a.sweeper.RunOnce(ctx)
	if _, ok := removed["forms"]; !ok {
		t.Errorf("sweep tasks = %v, want a forms task", removed)
	}

	if _, _, err := a.forms.Open(ctx, "cli"); err != nil {
		t.Fatalf("open form: %v", err)
	}
	if err := a.bot.Clear(ctx, "cli"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if a.forms.Len() != 0 {
		t.Errorf("open forms after clear = %d, want 0", a.forms.Len())
	}
}
