package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/evbot/internal/config"
	"github.com/zulandar/evbot/internal/db"
	"gorm.io/gorm"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBSeedCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the evbot database",
		Long:  "Creates the database (mysql), migrates all tables, and seeds the station directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd, configPath)
	if err != nil {
		return err
	}

	if cfg.Database.Driver == "mysql" {
		adminDB, err := db.ConnectAdmin(cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to mysql at %s:%d: %w", cfg.Database.Host, cfg.Database.Port, err)
		}
		if err := db.CreateDatabase(adminDB, cfg.Database.Name); err != nil {
			return err
		}
		fmt.Fprintf(out, "Database %s ready\n", cfg.Database.Name)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", describeDB(cfg.Database), err)
	}
	if err := migrateAndSeed(cmd, gormDB, cfg.SeedFile); err != nil {
		return err
	}

	fmt.Fprintln(out, "\nevbot database initialized successfully.")
	return nil
}

func newDBSeedCmd() *cobra.Command {
	var (
		configPath string
		seedFile   string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load stations into the directory",
		Long: `Upserts stations by name from a YAML seed file.

Uses --file when given, otherwise seed_file from the config, otherwise the
built-in Jaipur directory. Existing reviews are never duplicated.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBSeed(cmd, configPath, seedFile)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&seedFile, "file", "f", "", "station seed file (overrides seed_file)")
	return cmd
}

func runDBSeed(cmd *cobra.Command, configPath, seedFile string) error {
	cfg, err := loadConfig(cmd, configPath)
	if err != nil {
		return err
	}
	if seedFile == "" {
		seedFile = cfg.SeedFile
	}
	gormDB, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", describeDB(cfg.Database), err)
	}
	return seed(cmd, gormDB, seedFile)
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-initialize the evbot database",
		Long: `Drops every evbot table, then migrates and seeds again.

Bookings, reviews, transcripts, and user preferences are lost.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes || force)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	cmd.Flags().BoolVar(&force, "force", false, "skip confirmation prompt (alias for --yes)")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd, configPath)
	if err != nil {
		return err
	}
	target := describeDB(cfg.Database)

	if !skipConfirm {
		if !confirmReset(cmd, target) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", target, err)
	}
	if err := db.DropAll(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Dropped all tables in %s\n", target)

	if err := migrateAndSeed(cmd, gormDB, cfg.SeedFile); err != nil {
		return err
	}
	fmt.Fprintln(out, "\nDatabase reset successfully.")
	return nil
}

func migrateAndSeed(cmd *cobra.Command, gormDB *gorm.DB, seedFile string) error {
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d tables\n", len(db.AllModels()))
	return seed(cmd, gormDB, seedFile)
}

func seed(cmd *cobra.Command, gormDB *gorm.DB, seedFile string) error {
	stations, err := db.LoadSeed(seedFile)
	if err != nil {
		return err
	}
	n, err := db.SeedStations(gormDB, stations)
	if err != nil {
		return err
	}
	source := seedFile
	if source == "" {
		source = "built-in directory"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d stations from %s\n", n, source)
	return nil
}

// describeDB names the database for operator messages.
func describeDB(c config.DatabaseConfig) string {
	if c.Driver == "mysql" {
		return fmt.Sprintf("mysql database %s at %s:%d", c.Name, c.Host, c.Port)
	}
	return fmt.Sprintf("sqlite database %s", c.Path)
}

// confirmReset prompts the user to type "yes" to confirm the reset.
func confirmReset(cmd *cobra.Command, target string) bool {
	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()

	fmt.Fprintf(out, "WARNING: This will permanently delete all data in %s.\n", target)
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
