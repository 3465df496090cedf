package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zulandar/evbot/internal/config"
)

func TestDBCmd_Help(t *testing.T) {
	out, err := runCmd(t, "", "db", "--help")
	if err != nil {
		t.Fatalf("db --help failed: %v", err)
	}
	for _, sub := range []string{"Database management", "init", "seed", "reset"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected help to contain %q, got: %s", sub, out)
		}
	}
}

func TestDBInit_Sqlite(t *testing.T) {
	path := writeTestConfig(t, "")
	out, err := runCmd(t, "", "db", "init", "-c", path)
	if err != nil {
		t.Fatalf("db init: %v\n%s", err, out)
	}
	for _, want := range []string{
		"Migrated 6 tables",
		"Seeded 6 stations from built-in directory",
		"evbot database initialized successfully.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Database evbot ready") {
		t.Error("sqlite init should not create a mysql database")
	}

	// Re-running is an upsert, not a duplicate.
	if out, err := runCmd(t, "", "db", "init", "-c", path); err != nil {
		t.Fatalf("second db init: %v\n%s", err, out)
	}
}

func TestDBSeed_File(t *testing.T) {
	path := writeTestConfig(t, "")
	seedPath := filepath.Join(t.TempDir(), "stations.yaml")
	seed := "stations:\n  - name: Test Hub\n    slots: 2\n"
	if err := os.WriteFile(seedPath, []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCmd(t, "", "db", "seed", "-c", path, "--file", seedPath)
	if err != nil {
		t.Fatalf("db seed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Seeded 1 stations from "+seedPath) {
		t.Errorf("output = %s", out)
	}
}

func TestDBSeed_BadFile(t *testing.T) {
	path := writeTestConfig(t, "")
	_, err := runCmd(t, "", "db", "seed", "-c", path, "-f", "/nonexistent/stations.yaml")
	if err == nil || !strings.Contains(err.Error(), "read seed") {
		t.Errorf("err = %v, want a read seed error", err)
	}
}

func TestDBReset_Aborted(t *testing.T) {
	path := writeTestConfig(t, "")
	out, err := runCmd(t, "no\n", "db", "reset", "-c", path)
	if err != nil {
		t.Fatalf("db reset: %v", err)
	}
	if !strings.Contains(out, "WARNING") || !strings.Contains(out, "Aborted.") {
		t.Errorf("output = %s", out)
	}
	if strings.Contains(out, "Dropped") {
		t.Error("aborted reset should not drop tables")
	}
}

func TestDBReset_Confirmed(t *testing.T) {
	path := writeTestConfig(t, "")
	if _, err := runCmd(t, "", "db", "init", "-c", path); err != nil {
		t.Fatalf("db init: %v", err)
	}

	out, err := runCmd(t, "yes\n", "db", "reset", "-c", path)
	if err != nil {
		t.Fatalf("db reset: %v\n%s", err, out)
	}
	for _, want := range []string{"Dropped all tables in sqlite database", "Seeded 6 stations", "Database reset successfully."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDBReset_SkipConfirm(t *testing.T) {
	path := writeTestConfig(t, "")
	for _, flag := range []string{"-y", "--force"} {
		out, err := runCmd(t, "", "db", "reset", "-c", path, flag)
		if err != nil {
			t.Fatalf("db reset %s: %v", flag, err)
		}
		if strings.Contains(out, "WARNING") {
			t.Errorf("%s should skip the prompt:\n%s", flag, out)
		}
	}
}

func TestDescribeDB(t *testing.T) {
	mysql := config.DatabaseConfig{Driver: "mysql", Name: "evbot", Host: "db", Port: 3307}
	if got := describeDB(mysql); got != "mysql database evbot at db:3307" {
		t.Errorf("describeDB(mysql) = %q", got)
	}
	sqlite := config.DatabaseConfig{Driver: "sqlite", Path: "ev.db"}
	if got := describeDB(sqlite); got != "sqlite database ev.db" {
		t.Errorf("describeDB(sqlite) = %q", got)
	}
}
