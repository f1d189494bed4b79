package commands

import (
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// HelpCommand lists the public commands, or describes one command
func HelpCommand(b *Bot, c *Context) {
	s, m := c.Session, c.Message

	if len(c.Args) > 0 {
		cmd, ok := b.registry.Lookup(c.Args[0])
		if !ok {
			sendEmbedMessage(s, m.ChannelID, "❌ Unknown Command", "There is no command `"+c.Args[0]+"`.", colorError)
			return
		}
		sendEmbedMessage(s, m.ChannelID, cmd.Name, b.describeCommand(cmd), colorNeutral)
		return
	}

	embed := &discordgo.MessageEmbed{
		Title:       "KennyBot",
		Description: "Here are all the available commands:",
		Color:       colorSuccess,
		Timestamp:   time.Now().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: footerText,
		},
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Commands",
				Value:  b.commandList(false),
				Inline: false,
			},
		},
	}
	if c.Admin {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Admin Commands (Bot Owner Only)",
			Value:  b.commandList(true),
			Inline: false,
		})
	}

	s.ChannelMessageSendEmbed(m.ChannelID, embed)
}

func (b *Bot) describeCommand(cmd *Command) string {
	var sb strings.Builder
	sb.WriteString(b.usage(cmd))
	if len(cmd.Aliases) > 0 {
		sb.WriteString("\nAliases: ")
		for i, a := range cmd.Aliases {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("`" + a + "`")
		}
	}
	sb.WriteString("\n")
	sb.WriteString(cmd.Description)
	return sb.String()
}

// commandList renders one line per command; admin selects the owner-only ones
func (b *Bot) commandList(admin bool) string {
	prefix := b.Prefixes()[0]
	var lines []string
	for _, cmd := range b.registry.Commands() {
		if cmd.Admin != admin {
			continue
		}
		lines = append(lines, "• `"+prefix+cmd.Usage+"` - "+firstSentence(cmd.Description))
	}
	return strings.Join(lines, "\n")
}

func firstSentence(s string) string {
	if i := strings.Index(s, ". "); i >= 0 {
		return s[:i+1]
	}
	return s
}
