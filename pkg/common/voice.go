package common

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/latoulicious/kenny/pkg/logging"
)

// ErrNotInVoice means the caller is not in any voice channel of the guild
var ErrNotInVoice = errors.New("you must be in a voice channel")

// UserVoiceChannel returns the id of the voice channel userID is connected to in guildID
func UserVoiceChannel(s *discordgo.Session, userID, guildID string) (string, error) {
	guild, err := s.State.Guild(guildID)
	if err != nil {
		return "", fmt.Errorf("could not find guild: %w", err)
	}

	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return vs.ChannelID, nil
		}
	}
	return "", ErrNotInVoice
}

// FindAndJoinUserVoiceChannel joins the caller's voice channel, retrying the handshake
func FindAndJoinUserVoiceChannel(s *discordgo.Session, userID, guildID string, logger logging.Logger) (*discordgo.VoiceConnection, error) {
	channelID, err := UserVoiceChannel(s, userID, guildID)
	if err != nil {
		return nil, err
	}

	channelName := "Unknown"
	if channel, err := s.State.Channel(channelID); err == nil {
		channelName = channel.Name
	}
	logger.Info("Joining voice channel",
		logging.String("channel", channelName),
		logging.String("channel_id", channelID),
		logging.String("guild_id", guildID))

	var vc *discordgo.VoiceConnection
	maxRetries := 3

	for i := 0; i < maxRetries; i++ {
		vc, err = s.ChannelVoiceJoin(guildID, channelID, false, true)
		if err == nil {
			break
		}

		logger.Warn("Voice join attempt failed",
			logging.Int("attempt", i+1),
			logging.Int("max", maxRetries),
			logging.Err(err))
		if i < maxRetries-1 {
			time.Sleep(time.Duration(i+1) * time.Second)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to join voice channel after %d attempts: %w", maxRetries, err)
	}

	timeout := time.After(10 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			vc.Disconnect()
			return nil, fmt.Errorf("voice connection timed out")
		case <-ticker.C:
			vc.RLock()
			ready := vc.Ready
			vc.RUnlock()
			if ready {
				logger.Info("Voice connection ready", logging.String("guild_id", guildID))
				return vc, nil
			}
		}
	}
}

// DisconnectFromVoiceChannel leaves the voice channel in guildID, if any
func DisconnectFromVoiceChannel(s *discordgo.Session, guildID string, logger logging.Logger) {
	s.RLock()
	vc, ok := s.VoiceConnections[guildID]
	s.RUnlock()

	if !ok {
		logger.Debug("No voice connection to leave", logging.String("guild_id", guildID))
		return
	}
	if err := vc.Disconnect(); err != nil {
		logger.Warn("Voice disconnect failed", logging.Err(err))
		return
	}
	logger.Info("Disconnected from voice channel", logging.String("guild_id", guildID))
}
