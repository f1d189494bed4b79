package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/latoulicious/kenny/internal/commands"
	"github.com/latoulicious/kenny/internal/config"
	"github.com/latoulicious/kenny/internal/handlers"
	"github.com/latoulicious/kenny/internal/presence"
	"github.com/latoulicious/kenny/pkg/cron"
	"github.com/latoulicious/kenny/pkg/database"
	"github.com/latoulicious/kenny/pkg/gist"
	"github.com/latoulicious/kenny/pkg/logging"
	"github.com/latoulicious/kenny/pkg/music"
	"github.com/latoulicious/kenny/pkg/search"
	"github.com/latoulicious/kenny/pkg/sources/soundcloud"
	"github.com/latoulicious/kenny/pkg/sources/youtube"
)

const (
	historyRetention = 90 * 24 * time.Hour
	startupTimeout   = 15 * time.Second
)

func runBot(ctx context.Context, envFile string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Caller: cfg.LogLevel == "debug"})
	// discordgo reports gateway problems through the standard logger
	logging.NewStdLogAdapter(logger.With(logging.String("component", "discordgo"))).Install()

	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()
	if n, err := db.CloseOpenPlays(startCtx); err != nil {
		logger.Warn("Failed to close interrupted plays", logging.Err(err))
	} else if n > 0 {
		logger.Info("Closed interrupted plays", logging.Int64("count", n))
	}

	opts := commands.Options{
		Prefix: cfg.Prefix,
		Volume: db.GetFloat(startCtx, commands.SettingVolume, cfg.Volume),
	}
	if p, err := db.GetSetting(startCtx, commands.SettingPrefix); err == nil && strings.TrimSpace(p) != "" {
		opts.Prefix = p
	}
	shuffle := db.GetBool(startCtx, commands.SettingShuffle, cfg.Shuffle)

	player, err := buildPlayer(ctx, cfg, db, shuffle, logger)
	if err != nil {
		return err
	}

	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create Discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsMessageContent

	pm := presence.NewPresenceManager(dg, cfg.PresenceGames, nil, logger.With(logging.String("component", "presence")))
	bot := commands.NewBot(cfg, player, db, pm, logger, opts)
	dg.AddHandler(handlers.MessageHandler(bot, logger))
	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		logger.Info("Connected to Discord", logging.String("user", r.User.Username), logging.Int("guilds", len(r.Guilds)))
		pm.Start()
	})

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}

	scheduler := cron.NewScheduler(logger.With(logging.String("component", "cron")))
	if len(cfg.PresenceGames) > 1 {
		if err := scheduler.Every(cfg.PresenceInterval, "presence", pm.Rotate); err != nil {
			logger.Warn("Presence rotation disabled", logging.Err(err))
		}
	}
	if err := scheduler.Every(24*time.Hour, "history-prune", func(ctx context.Context) error {
		n, err := db.PruneHistory(ctx, time.Now().Add(-historyRetention))
		if err != nil {
			return err
		}
		logger.Debug("Pruned play history", logging.Int64("count", n))
		return nil
	}); err != nil {
		logger.Warn("History pruning disabled", logging.Err(err))
	}

	logger.Info("Bot is running. Type exit or press CTRL-C to quit.",
		logging.String("prefix", opts.Prefix),
		logging.Int("songs", len(player.Tracks())),
		logging.Bool("shuffle", shuffle),
	)
	waitForExit(ctx, os.Stdin, logger)

	logger.Info("Shutting down")
	scheduler.Stop()
	bot.Shutdown(dg)
	if err := dg.Close(); err != nil {
		logger.Warn("Failed to close Discord session", logging.Err(err))
	}
	return nil
}

// buildPlayer assembles the catalog, providers, search and mirror around a Player
func buildPlayer(ctx context.Context, cfg *config.Config, db *database.Database, shuffle bool, logger logging.Logger) (*music.Player, error) {
	catalog, err := music.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	if n := catalog.Dropped(); n > 0 {
		logger.Warn("Dropped invalid catalog entries", logging.String("path", cfg.CatalogPath), logging.Int("count", n))
	}

	sources := []music.Source{
		youtube.New(),
		soundcloud.New(cfg.SoundCloudClientID),
	}

	var backend search.Backend
	if cfg.SearchEnabled() {
		cse, err := search.NewCSE(ctx, cfg.SearchAPIKey, cfg.SearchEngineID, cfg.SearchSafe)
		if err != nil {
			return nil, fmt.Errorf("failed to create search client: %w", err)
		}
		backend = cse
	} else {
		logger.Info("CSE credentials not set, searching with DuckDuckGo")
		backend = search.NewDuckDuckGo("", nil)
	}
	searcher := search.New(backend, cfg.SearchInterval, cfg.TitleSuffixes)

	library := music.NewLibrary(catalog, sources, searcher, logger.With(logging.String("component", "library")))

	opts := []music.PlayerOption{
		music.WithHistory(db),
		music.WithShuffle(shuffle),
		music.WithLogger(logger.With(logging.String("component", "player"))),
	}
	if cfg.MirrorEnabled() {
		mirror, err := gist.New(cfg.GistToken, cfg.GistUser)
		switch {
		case err == nil:
			opts = append(opts, music.WithMirror(mirror))
		case errors.Is(err, music.ErrMirrorDisabled):
		default:
			return nil, fmt.Errorf("failed to create gist mirror: %w", err)
		}
	}

	return music.NewPlayer(library, opts...), nil
}

// waitForExit blocks until ctx ends, a termination signal arrives, or "exit" is read from in
func waitForExit(ctx context.Context, in io.Reader, logger logging.Logger) {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lines := make(chan struct{})
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			if isExit(scanner.Text()) {
				close(lines)
				return
			}
		}
		if err := scanner.Err(); err != nil {
			logger.Debug("Console closed", logging.Err(err))
		}
	}()

	select {
	case <-sigCtx.Done():
	case <-lines:
	}
}

func isExit(line string) bool {
	return strings.EqualFold(strings.TrimSpace(line), "exit")
}

// formatCatalog renders tracks as numbered "title <locator>" lines
func formatCatalog(tracks []music.Track) string {
	var sb strings.Builder
	width := len(strconv.Itoa(len(tracks)))
	for i, t := range tracks {
		fmt.Fprintf(&sb, "%*d. %s <%s>\n", width, i+1, t.Title, t.Locator)
	}
	return sb.String()
}
