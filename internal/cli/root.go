// Package cli provides the fjord command line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fjordchat/fjord/internal/config"
	"github.com/fjordchat/fjord/internal/event"
	"github.com/fjordchat/fjord/internal/feed"
	"github.com/fjordchat/fjord/internal/groups"
	"github.com/fjordchat/fjord/internal/logging"
	"github.com/fjordchat/fjord/internal/store"
	"github.com/fjordchat/fjord/internal/timeline"
	"github.com/fjordchat/fjord/internal/tui"
)

var (
	cfgFile  string
	logLevel string
	dbPath   string
	roomFlag string
	liveDemo bool
)

var rootCmd = &cobra.Command{
	Use:   "fjord",
	Short: "Terminal chat timeline viewer",
	Long:  "fjord renders a live, paginated chat room timeline with collapsible small-event groups.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTimeline(cmd.Context())
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file path")
	rootCmd.PersistentFlags().StringVar(&roomFlag, "room", "general", "room to open")

	rootCmd.Flags().BoolVar(&liveDemo, "live-demo", false, "publish synthetic messages while running")
}

// Execute runs the CLI.
func Execute(version string) error {
	rootCmd.Version = version
	return rootCmd.Execute()
}

// loadConfig loads configuration and applies flag overrides.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoader()
	if cfgFile != "" {
		loader.SetConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	return cfg, nil
}

// openDatabase opens and migrates the configured database.
func openDatabase(ctx context.Context, cfg *config.Config) (*store.DB, error) {
	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func runTimeline(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logCfg := logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		EnableCaller: cfg.Logging.EnableCaller,
	}
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logCfg.Output = f
	}
	logging.Init(logCfg)

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	roomID := event.RoomID(roomFlag)
	repo := store.NewTimelineRepository(db)
	receipts := store.NewReceiptRepository(db)

	producer := feed.NewProducer(repo, feed.WithProducerPageSize(cfg.Timeline.PageSize))
	engine := timeline.NewEngine(producer,
		timeline.WithPageSize(cfg.Timeline.PageSize),
		timeline.WithSearchBudget(cfg.Timeline.SearchBudget),
		timeline.WithReceiptSink(feed.NewStoreReceipts(receipts)),
	)
	registry := timeline.NewRegistry(
		groups.WithCollapseThreshold(cfg.Timeline.CollapseThreshold),
		groups.WithNameCap(cfg.Timeline.NameCap),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go producer.Run(runCtx)

	if err := producer.Bootstrap(runCtx, roomID); err != nil {
		return fmt.Errorf("failed to load room %q: %w", roomID, err)
	}

	model := tui.New(roomID, engine, registry, producer.Updates(roomID), tui.Theme(cfg.TUI.Theme))
	if marker, err := receipts.Get(runCtx, roomID); err == nil {
		model.SetMarkerEvent(marker.EventID)
		model.SetLastFullyRead(marker.Timestamp)
	}

	if liveDemo {
		go publishDemoTraffic(runCtx, producer, roomID)
	}

	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

// publishDemoTraffic appends a synthetic message every few seconds so
// appends, unread indicators and re-anchoring can be watched live.
func publishDemoTraffic(ctx context.Context, producer *feed.Producer, roomID event.RoomID) {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()
	n := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		n++
		ev := &event.Event{
			EventID:    event.EventID(fmt.Sprintf("$live-%d-%d", time.Now().UnixNano(), n)),
			Sender:     "@echo:fjord.local",
			SenderName: "Echo",
			Timestamp:  time.Now().UTC(),
			Content:    event.Content{Kind: event.ContentMessage, Body: fmt.Sprintf("live message #%d", n)},
		}
		if err := producer.Publish(ctx, roomID, ev); err != nil {
			logging.Warn().Err(err).Msg("demo publish failed")
			return
		}
	}
}
