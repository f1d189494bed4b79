// Package handlers routes gateway events to the command layer.
package handlers

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/latoulicious/kenny/internal/commands"
	"github.com/latoulicious/kenny/pkg/logging"
)

// MessageHandler returns the MessageCreate handler dispatching to bot
func MessageHandler(bot *commands.Bot, logger logging.Logger) func(*discordgo.Session, *discordgo.MessageCreate) {
	if logger == nil {
		logger = logging.Nop()
	}
	return func(s *discordgo.Session, m *discordgo.MessageCreate) {
		// Ignore all messages created by bots, including this one
		if m.Author == nil || m.Author.Bot {
			return
		}
		// Direct messages have no guild to play in
		if m.GuildID == "" {
			return
		}

		botID := ""
		if s.State != nil && s.State.User != nil {
			botID = s.State.User.ID
		}

		name, args, ok := ParseCommand(m.Content, bot.Prefixes(), botID)
		if !ok {
			return
		}

		// the session serves the first guild it hears from
		bot.Player().SetGuild(m.GuildID)
		if bot.Player().GuildID() != m.GuildID {
			return
		}
		if !bot.Dispatch(s, m, name, args) {
			return
		}
		logger.Info(logging.CommandLine(m.Author.Username, bot.IsAdmin(m.Author.ID), m.Content))
	}
}

// ParseCommand strips one of prefixes, or a mention of botID, from content and
// splits the rest into a command name and its arguments
func ParseCommand(content string, prefixes []string, botID string) (name string, args []string, ok bool) {
	rest, ok := stripPrefix(strings.TrimSpace(content), prefixes, botID)
	if !ok {
		return "", nil, false
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

func stripPrefix(content string, prefixes []string, botID string) (string, bool) {
	if botID != "" {
		for _, mention := range []string{"<@" + botID + ">", "<@!" + botID + ">"} {
			if rest, found := strings.CutPrefix(content, mention); found {
				return rest, true
			}
		}
	}
	for _, p := range prefixes {
		if p == "" {
			continue
		}
		if rest, found := strings.CutPrefix(content, p); found {
			return rest, true
		}
	}
	return "", false
}
