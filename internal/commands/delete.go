package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	maxPrune       = 100
	bulkDeleteAge  = 14 * 24 * time.Hour
	confirmTimeout = 5 * time.Second
)

// PruneCommand bulk deletes recent messages, optionally only from a mentioned user
func PruneCommand(b *Bot, c *Context) {
	s, m := c.Session, c.Message

	if !c.Admin && !hasManageMessagesPermission(s, m.GuildID, m.Author.ID) {
		sendEmbedMessage(s, m.ChannelID, "❌ Permission Denied", "You need 'Manage Messages' permission to use this command.", colorError)
		return
	}

	count, userID, problem := parsePruneArgs(c.Args, m.Mentions)
	if problem != "" {
		if problem == "usage" {
			b.sendUsage(c)
			return
		}
		sendEmbedMessage(s, m.ChannelID, "❌ Invalid Usage", problem, colorError)
		return
	}

	messages, err := s.ChannelMessages(m.ChannelID, count, m.ID, "", "")
	if err != nil {
		sendEmbedMessage(s, m.ChannelID, "❌ Error", "Failed to fetch messages from the channel.", colorError)
		return
	}

	ids, skipped := selectPrunable(messages, userID, count, time.Now())
	if len(ids) > 0 {
		// bulk delete needs at least two ids
		del := func() error { return s.ChannelMessagesBulkDelete(m.ChannelID, ids) }
		if len(ids) == 1 {
			del = func() error { return s.ChannelMessageDelete(m.ChannelID, ids[0]) }
		}
		if err := del(); err != nil {
			sendEmbedMessage(s, m.ChannelID, "❌ Error", "Failed to delete messages. Make sure I have 'Manage Messages' permission.", colorError)
			return
		}
	}

	s.ChannelMessageDelete(m.ChannelID, m.ID)

	embed := &discordgo.MessageEmbed{
		Title:       "🗑️ Messages Deleted",
		Color:       colorSuccess,
		Timestamp:   time.Now().Format(time.RFC3339),
		Footer:      &discordgo.MessageEmbedFooter{Text: footerText},
		Description: "Messages have been successfully deleted.",
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Messages Deleted",
				Value:  fmt.Sprintf("%d messages", len(ids)),
				Inline: true,
			},
			{
				Name:   "Deleted By",
				Value:  m.Author.Username,
				Inline: true,
			},
		},
	}
	if skipped > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Messages Skipped",
			Value:  fmt.Sprintf("%d messages (older than 14 days)", skipped),
			Inline: true,
		})
	}

	confirm, err := s.ChannelMessageSendEmbed(m.ChannelID, embed)
	if err != nil {
		return
	}
	time.AfterFunc(confirmTimeout, func() {
		s.ChannelMessageDelete(m.ChannelID, confirm.ID)
	})
}

// parsePruneArgs validates "<number> [@user]". problem is "usage" for a malformed
// count, or a message for the user.
func parsePruneArgs(args []string, mentions []*discordgo.User) (count int, userID, problem string) {
	if len(args) == 0 {
		return 0, "", "usage"
	}

	f, err := strconv.ParseFloat(args[0], 64)
	if err != nil || f < 1 {
		return 0, "", "usage"
	}
	count = int(f)
	if count > maxPrune {
		return 0, "", fmt.Sprintf("Number cannot exceed %d", maxPrune)
	}

	if len(args) > 1 {
		for _, u := range mentions {
			if strings.Contains(args[1], u.ID) {
				userID = u.ID
				break
			}
		}
		if userID == "" {
			return 0, "", fmt.Sprintf("User `%s` not found", args[1])
		}
	}
	return count, userID, ""
}

// selectPrunable picks up to count message ids, newest first, that are from userID
// (any author when empty) and young enough for bulk deletion
func selectPrunable(messages []*discordgo.Message, userID string, count int, now time.Time) (ids []string, skipped int) {
	for _, msg := range messages {
		if len(ids) >= count {
			break
		}
		if userID != "" && (msg.Author == nil || msg.Author.ID != userID) {
			continue
		}
		if now.Sub(msg.Timestamp) > bulkDeleteAge {
			skipped++
			continue
		}
		ids = append(ids, msg.ID)
	}
	return ids, skipped
}

// hasManageMessagesPermission checks if a user owns the guild or has a role with Manage Messages
func hasManageMessagesPermission(s *discordgo.Session, guildID, userID string) bool {
	member, err := s.GuildMember(guildID, userID)
	if err != nil {
		return false
	}

	guild, err := s.State.Guild(guildID)
	if err != nil {
		guild, err = s.Guild(guildID)
	}
	if err == nil && guild.OwnerID == userID {
		return true
	}

	for _, roleID := range member.Roles {
		role, err := s.State.Role(guildID, roleID)
		if err != nil {
			continue
		}
		if role.Permissions&discordgo.PermissionManageMessages != 0 {
			return true
		}
	}

	return false
}
