package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/evbot/internal/booking"
	"github.com/zulandar/evbot/internal/chat"
	"github.com/zulandar/evbot/internal/config"
	"github.com/zulandar/evbot/internal/db"
	"github.com/zulandar/evbot/internal/station"
	"gorm.io/gorm"
)

const defaultConfigPath = "evbot.yaml"

func addConfigFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", defaultConfigPath, "path to evbot config file")
}

// loadConfig reads the config file. A missing default file falls back to
// built-in defaults; a missing file named on the command line is an error.
func loadConfig(cmd *cobra.Command, path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		fmt.Fprintf(cmd.ErrOrStderr(), "No %s found, using defaults\n", path)
		return config.Default(), nil
	}
	return nil, fmt.Errorf("load config: %w", err)
}

// openDB connects to the configured database and brings the schema up to date.
func openDB(cfg *config.Config) (*gorm.DB, error) {
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return nil, err
	}
	return gormDB, nil
}

// app is the wired conversational stack shared by every long-running command.
type app struct {
	bot     *chat.Bot
	dir     *station.Store
	forms   *booking.Registry
	sweeper *chat.Sweeper
}

func buildApp(cfg *config.Config, gormDB *gorm.DB) (*app, error) {
	dir, err := station.NewStore(gormDB)
	if err != nil {
		return nil, err
	}
	avail, err := booking.NewAvailability(gormDB)
	if err != nil {
		return nil, err
	}
	forms, err := booking.NewRegistry(booking.RegistryOpts{Directory: dir, Availability: avail})
	if err != nil {
		return nil, err
	}
	pending, err := booking.NewPendingStore(booking.PendingStoreOpts{DB: gormDB, TTL: cfg.Chat.PendingTTL()})
	if err != nil {
		return nil, err
	}
	bridge, err := chat.NewBridge(chat.BridgeOpts{
		Locator:           forms,
		Pending:           pending,
		SlotsReadyTimeout: cfg.Chat.SlotsReadyTimeout(),
	})
	if err != nil {
		return nil, err
	}
	disp, err := chat.NewDispatcher(chat.DispatcherOpts{
		Directory:    dir,
		Bridge:       bridge,
		Availability: avail,
		Timeout:      cfg.Chat.DirectoryTimeout(),
		MaxList:      cfg.Chat.MaxList,
		City:         cfg.City,
	})
	if err != nil {
		return nil, err
	}
	profiles, err := chat.NewProfileStore(gormDB)
	if err != nil {
		return nil, err
	}
	transcripts, err := chat.NewTranscriptStore(chat.TranscriptStoreOpts{DB: gormDB, TTL: cfg.Chat.TranscriptTTL()})
	if err != nil {
		return nil, err
	}
	sessions := chat.NewSessions(chat.SessionsOpts{Prefs: profiles})
	bot, err := chat.NewBot(chat.BotOpts{
		Dispatcher:  disp,
		Sessions:    sessions,
		Transcripts: transcripts,
		Forms:       forms,
	})
	if err != nil {
		return nil, err
	}

	sweeper, err := chat.NewSweeper(chat.SweeperOpts{
		Cron: cfg.Chat.SweepCron,
		Tasks: []chat.SweepTask{
			{Name: "transcripts", Run: transcripts.PurgeExpired},
			{Name: "pending", Run: pending.PurgeExpired},
			{Name: "sessions", Run: func(ctx context.Context) (int64, error) {
				return int64(sessions.Evict(cfg.Chat.TranscriptTTL())), nil
			}},
			{Name: "forms", Run: func(ctx context.Context) (int64, error) {
				return int64(forms.Evict(cfg.Chat.TranscriptTTL())), nil
			}},
		},
	})
	if err != nil {
		return nil, err
	}

	return &app{bot: bot, dir: dir, forms: forms, sweeper: sweeper}, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(out io.Writer) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
