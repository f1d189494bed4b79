package commands

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/latoulicious/kenny/pkg/common"
	"github.com/latoulicious/kenny/pkg/logging"
	"github.com/latoulicious/kenny/pkg/music"
)

var errNoVoice = errors.New("not connected to a voice channel")

// JoinCommand joins the caller's voice channel
func JoinCommand(b *Bot, c *Context) {
	b.join(c)
}

// join connects to the caller's voice channel and reports the result in chat
func (b *Bot) join(c *Context) (*discordgo.VoiceConnection, bool) {
	s, m := c.Session, c.Message

	vc, err := common.FindAndJoinUserVoiceChannel(s, m.Author.ID, m.GuildID, b.logger)
	if err != nil {
		msg := "Failed to join your voice channel."
		if errors.Is(err, common.ErrNotInVoice) {
			msg = "You must be in a voice channel first."
		}
		sendEmbedMessage(s, m.ChannelID, "❌ Voice", msg, colorError)
		return nil, false
	}

	name := vc.ChannelID
	if ch, err := s.State.Channel(vc.ChannelID); err == nil {
		name = ch.Name
	}
	sendEmbedMessage(s, m.ChannelID, "🔊 Voice", "Connected to `"+name+"`", colorSuccess)
	return vc, true
}

// PlayCommand starts a song, joining the caller's channel first if needed
func PlayCommand(b *Bot, c *Context) {
	s, m := c.Session, c.Message

	if voiceConnection(s, m.GuildID) == nil {
		if _, ok := b.join(c); !ok {
			return
		}
	}

	query := c.Query()
	b.playMu.Lock()
	defer b.playMu.Unlock()

	if query == "" && b.current != nil {
		sendEmbedMessage(s, m.ChannelID, "🎵 Now Playing", "Already playing `"+b.current.Track.Title+"`", colorNeutral)
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	pb, err := b.player.Play(ctx, query)
	if err != nil {
		sendEmbedMessage(s, m.ChannelID, "❌ Play", describeError(err, query), colorError)
		return
	}
	b.begin(s, m.ChannelID, pb)
}

// SkipCommand moves on to the next song
func SkipCommand(b *Bot, c *Context) {
	s, m := c.Session, c.Message

	b.playMu.Lock()
	defer b.playMu.Unlock()

	ctx, cancel := commandContext()
	defer cancel()

	pb, err := b.player.Skip(ctx)
	if err != nil {
		if errors.Is(err, music.ErrNotPlaying) {
			sendEmbedMessage(s, m.ChannelID, "🔇 No Audio", "Nothing is playing", colorNeutral)
			return
		}
		sendEmbedMessage(s, m.ChannelID, "❌ Skip", describeError(err, "next song"), colorError)
		return
	}
	b.begin(s, m.ChannelID, pb)
}

// StopCommand stops playback, clears the queue and leaves voice
func StopCommand(b *Bot, c *Context) {
	s, m := c.Session, c.Message

	b.playMu.Lock()
	connected := voiceConnection(s, m.GuildID) != nil
	b.stopLocked(s)
	b.playMu.Unlock()

	if !connected {
		sendEmbedMessage(s, m.ChannelID, "🔇 No Audio", "Not connected to a voice channel", colorNeutral)
		return
	}
	sendEmbedMessage(s, m.ChannelID, "⏹️ Stopped", "Disconnected", colorSuccess)
}

// SongCommand shows the current song
func SongCommand(b *Bot, c *Context) {
	s, m := c.Session, c.Message

	t, ok := b.player.NowPlaying()
	if !ok {
		sendEmbedMessage(s, m.ChannelID, "🔇 No Audio", "Nothing is playing", colorNeutral)
		return
	}
	sendEmbedMessage(s, m.ChannelID, "🎵 Now Playing", "Now playing `"+t.Title+"`", colorMusic)
}

// VolumeCommand shows the volume, or sets it for the bot owner
func VolumeCommand(b *Bot, c *Context) {
	s, m := c.Session, c.Message

	if len(c.Args) == 0 {
		sendEmbedMessage(s, m.ChannelID, "🔊 Volume", "Volume is `"+formatVolume(b.currentVolume())+"`", colorNeutral)
		return
	}
	if !c.Admin {
		sendEmbedMessage(s, m.ChannelID, "❌ Permission Denied", "Only the bot owner can change the volume.", colorError)
		return
	}

	v, ok := parseVolume(c.Args[0])
	if !ok {
		b.sendUsage(c)
		return
	}

	b.mu.Lock()
	b.volume = v
	b.mu.Unlock()

	b.playMu.Lock()
	if b.pipeline != nil {
		b.pipeline.SetVolume(v)
	}
	b.playMu.Unlock()

	b.persist(SettingVolume, formatVolume(v))
	sendEmbedMessage(s, m.ChannelID, "🔊 Volume", "Volume updated to `"+formatVolume(v)+"`", colorSuccess)
}

// ShuffleCommand toggles shuffle and persists it
func ShuffleCommand(b *Bot, c *Context) {
	on := b.player.ToggleShuffle()
	b.persist(SettingShuffle, strconv.FormatBool(on))
	sendEmbedMessage(c.Session, c.Message.ChannelID, "🔀 Shuffle", "Shuffle is now `"+onOff(on)+"`", colorSuccess)
}

// parseVolume reads a number and clamps it to [0, common.MaxVolume]
func parseVolume(arg string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(arg), 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return math.Max(0, math.Min(common.MaxVolume, v)), true
}

// begin hands pb to the audio sink. playMu must be held.
func (b *Bot) begin(s *discordgo.Session, channelID string, pb *music.Playback) {
	vc := voiceConnection(s, b.player.GuildID())
	if vc == nil {
		b.logger.Warn("Lost voice connection, stopping playback")
		b.stopLocked(s)
		sendEmbedMessage(s, channelID, "❌ Voice", errNoVoice.Error(), colorError)
		return
	}

	// anything still draining belongs to a replaced playback
	b.current = pb
	b.channelID = channelID
	if b.pipeline != nil {
		b.pipeline.Stop()
	}
	if b.pipeline == nil || b.pipeline.VoiceConnection() != vc {
		b.pipeline = common.NewAudioPipeline(vc, b.currentVolume(), b.logger)
	}

	if err := b.pipeline.Play(pb.Stream, func(natural bool) {
		if natural {
			b.advance(s, pb)
			return
		}
		b.abandon(s, pb)
	}); err != nil {
		b.logger.Error("Failed to start audio", logging.Err(err))
		b.current = nil
		ctx, cancel := commandContext()
		b.stopPlayer(ctx)
		cancel()
		sendEmbedMessage(s, channelID, "❌ Audio", "Failed to start audio playback.", colorError)
		return
	}

	if b.presence != nil {
		b.presence.UpdateMusicPresence(pb.Track.Title)
	}
	sendEmbedMessage(s, channelID, "🎵 Now Playing", fmt.Sprintf("Now playing `%s`", pb.Track.Title), colorMusic)
}

// advance follows a stream that ended on its own with the next song
func (b *Bot) advance(s *discordgo.Session, ended *music.Playback) {
	b.playMu.Lock()
	defer b.playMu.Unlock()

	if b.current != ended {
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	next, err := b.player.Finished(ctx)
	if err != nil {
		b.current = nil
		if b.presence != nil {
			b.presence.ClearMusicPresence()
		}
		if !errors.Is(err, music.ErrNotPlaying) {
			b.logger.Warn("Could not continue playback", logging.Err(err))
			sendEmbedMessage(s, b.channelID, "❌ Playback", describeError(err, "next song"), colorError)
		}
		return
	}
	b.begin(s, b.channelID, next)
}

// abandon handles a stream that broke off. Streams the bot replaced or stopped
// itself are no longer current and are ignored.
func (b *Bot) abandon(s *discordgo.Session, failed *music.Playback) {
	b.playMu.Lock()
	defer b.playMu.Unlock()

	if b.current != failed {
		return
	}
	b.current = nil

	ctx, cancel := commandContext()
	defer cancel()
	b.stopPlayer(ctx)
	if b.presence != nil {
		b.presence.ClearMusicPresence()
	}
	sendEmbedMessage(s, b.channelID, "❌ Playback", fmt.Sprintf("Playback of `%s` failed", failed.Track.Title), colorError)
}

// stopLocked ends playback and leaves voice. playMu must be held.
func (b *Bot) stopLocked(s *discordgo.Session) {
	b.current = nil
	if b.pipeline != nil {
		b.pipeline.Stop()
		b.pipeline = nil
	}

	ctx, cancel := commandContext()
	defer cancel()
	b.stopPlayer(ctx)

	if guildID := b.player.GuildID(); guildID != "" {
		common.DisconnectFromVoiceChannel(s, guildID, b.logger)
	}
	if b.presence != nil {
		b.presence.ClearMusicPresence()
	}
}

// stopPlayer idles the player, logging anything but an already idle session
func (b *Bot) stopPlayer(ctx context.Context) {
	if _, err := b.player.Stop(ctx); err != nil && !errors.Is(err, music.ErrNotPlaying) {
		b.logger.Warn("Failed to stop player", logging.Err(err))
	}
}

func voiceConnection(s *discordgo.Session, guildID string) *discordgo.VoiceConnection {
	s.RLock()
	defer s.RUnlock()
	return s.VoiceConnections[guildID]
}
