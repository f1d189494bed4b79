// Package commands implements the chat commands over the music player.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/latoulicious/kenny/internal/config"
	"github.com/latoulicious/kenny/pkg/common"
	"github.com/latoulicious/kenny/pkg/database"
	"github.com/latoulicious/kenny/pkg/logging"
	"github.com/latoulicious/kenny/pkg/music"
)

// Keys of the settings persisted across restarts
const (
	SettingPrefix  = "prefix"
	SettingVolume  = "volume"
	SettingShuffle = "shuffle"
)

const (
	colorError   = 0xff0000
	colorSuccess = 0x00ff00
	colorNeutral = 0x808080
	colorMusic   = 0x1db954

	footerText     = "KennyBot"
	commandTimeout = 30 * time.Second
	historyLimit   = 10
)

// Store persists settings and reads play history
type Store interface {
	SetSetting(ctx context.Context, key, value string) error
	RecentPlays(ctx context.Context, guildID string, limit int) ([]database.Play, error)
}

// Presence shows the current song in the bot's status
type Presence interface {
	UpdateMusicPresence(songTitle string)
	ClearMusicPresence()
}

// Bot holds the state shared by every command
type Bot struct {
	cfg      *config.Config
	player   *music.Player
	store    Store
	presence Presence
	logger   logging.Logger
	registry *Registry

	mu     sync.RWMutex
	prefix string
	volume float64

	// playMu orders playback transitions; current is the playback the sink is draining
	playMu    sync.Mutex
	current   *music.Playback
	pipeline  *common.AudioPipeline
	channelID string
}

// Options are the runtime values restored from the settings table
type Options struct {
	Prefix string
	Volume float64
}

// NewBot wires the command layer. presence may be nil.
func NewBot(cfg *config.Config, player *music.Player, store Store, presence Presence, logger logging.Logger, opts Options) *Bot {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Bot{
		cfg:      cfg,
		player:   player,
		store:    store,
		presence: presence,
		logger:   logger.With(logging.String("component", "commands")),
		registry: NewRegistry(DefaultCommands()...),
		prefix:   opts.Prefix,
		volume:   opts.Volume,
	}
}

// Registry returns the command table
func (b *Bot) Registry() *Registry {
	return b.registry
}

// Player returns the music player
func (b *Bot) Player() *music.Player {
	return b.player
}

// Prefixes returns the prefixes commands are recognised by, custom prefix first
func (b *Bot) Prefixes() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.prefix == "" || b.prefix == b.cfg.Prefix {
		return []string{b.cfg.Prefix}
	}
	return []string{b.prefix, b.cfg.Prefix}
}

// IsAdmin reports whether userID may run admin commands
func (b *Bot) IsAdmin(userID string) bool {
	return common.IsAdmin(b.cfg.AdminID, userID)
}

// Dispatch runs the command name with args. Unknown names are ignored.
func (b *Bot) Dispatch(s *discordgo.Session, m *discordgo.MessageCreate, name string, args []string) bool {
	cmd, ok := b.registry.Lookup(name)
	if !ok {
		return false
	}

	c := &Context{
		Session: s,
		Message: m,
		Name:    name,
		Args:    args,
		Admin:   b.IsAdmin(m.Author.ID),
	}
	if cmd.Admin && !c.Admin {
		sendEmbedMessage(s, m.ChannelID, "❌ Permission Denied", "This command is restricted to the bot owner.", colorError)
		return true
	}

	cmd.Run(b, c)
	return true
}

// Shutdown stops playback and leaves voice
func (b *Bot) Shutdown(s *discordgo.Session) {
	b.playMu.Lock()
	defer b.playMu.Unlock()

	b.stopLocked(s)
	b.player.Close()
}

func (b *Bot) usage(cmd *Command) string {
	return fmt.Sprintf("`Usage: %s%s`", b.Prefixes()[0], cmd.Usage)
}

func (b *Bot) sendUsage(c *Context) {
	cmd, ok := b.registry.Lookup(c.Name)
	if !ok {
		return
	}
	sendEmbedMessage(c.Session, c.Message.ChannelID, "❌ Invalid Usage", b.usage(cmd), colorError)
}

func (b *Bot) currentVolume() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.volume
}

func (b *Bot) persist(key, value string) {
	if b.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := b.store.SetSetting(ctx, key, value); err != nil {
		b.logger.Warn("Failed to persist setting", logging.String("key", key), logging.Err(err))
	}
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), commandTimeout)
}

// describeError turns a player error into a user-facing sentence
func describeError(err error, query string) string {
	switch {
	case errors.Is(err, music.ErrInvalidIndex):
		return fmt.Sprintf("`%s` is not a playlist index", query)
	case errors.Is(err, music.ErrEmptyCatalog):
		return "There are no songs in the playlist"
	case errors.Is(err, music.ErrEmptyQueue):
		return "The song queue is empty"
	case errors.Is(err, music.ErrNotPlaying):
		return "Nothing is playing"
	case errors.Is(err, music.ErrInvalidTrack):
		return fmt.Sprintf("`%s` did not resolve to a playable song", query)
	case errors.Is(err, context.DeadlineExceeded):
		return "That took too long, try again"
	}

	var perr *music.ProviderError
	if errors.As(err, &perr) {
		return fmt.Sprintf("Could not get `%s` from %s, try again later", query, perr.Provider)
	}
	if errors.Is(err, music.ErrNotFound) {
		return fmt.Sprintf("Could not find `%s`", query)
	}
	return "Something went wrong"
}

func formatVolume(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// sendEmbedMessage sends a single-section embed
func sendEmbedMessage(s *discordgo.Session, channelID, title, description string, color int) *discordgo.Message {
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: footerText,
		},
	}
	msg, err := s.ChannelMessageSendEmbed(channelID, embed)
	if err != nil {
		return nil
	}
	return msg
}
