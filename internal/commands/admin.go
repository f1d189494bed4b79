package commands

import (
	"strings"

	"github.com/latoulicious/kenny/pkg/logging"
)

// PrefixCommand sets and persists the custom command prefix
func PrefixCommand(b *Bot, c *Context) {
	if len(c.Args) == 0 || strings.TrimSpace(c.Args[0]) == "" {
		b.sendUsage(c)
		return
	}

	prefix := strings.TrimSpace(c.Args[0])
	b.mu.Lock()
	b.prefix = prefix
	b.mu.Unlock()
	b.persist(SettingPrefix, prefix)

	sendEmbedMessage(c.Session, c.Message.ChannelID, "✅ Prefix Updated", "Prefix updated to `"+prefix+"`", colorSuccess)
}

// RestartCommand stops playback, leaves voice and reconnects the gateway session
func RestartCommand(b *Bot, c *Context) {
	s := c.Session
	sendEmbedMessage(s, c.Message.ChannelID, "🔄 Restarting", "Restarting", colorNeutral)

	b.playMu.Lock()
	b.stopLocked(s)
	b.playMu.Unlock()

	if err := s.Close(); err != nil {
		b.logger.Warn("Failed to close session", logging.Err(err))
	}
	if err := s.Open(); err != nil {
		b.logger.Error("Failed to reopen session", logging.Err(err))
		return
	}
	b.logger.Info("Session restarted")
}
