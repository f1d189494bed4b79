package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/latoulicious/kenny/pkg/database"
	"github.com/latoulicious/kenny/pkg/logging"
)

// HistoryCommand shows the most recent plays in this guild
func HistoryCommand(b *Bot, c *Context) {
	s, m := c.Session, c.Message
	if b.store == nil {
		sendEmbedMessage(s, m.ChannelID, "📜 History", "Play history is not available", colorNeutral)
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	plays, err := b.store.RecentPlays(ctx, m.GuildID, historyLimit)
	if err != nil {
		b.logger.Warn("Failed to read history", logging.Err(err))
		sendEmbedMessage(s, m.ChannelID, "❌ History", "Could not read the play history", colorError)
		return
	}
	if len(plays) == 0 {
		sendEmbedMessage(s, m.ChannelID, "📜 History", "Nothing has been played yet", colorNeutral)
		return
	}
	sendEmbedMessage(s, m.ChannelID, "📜 History", renderHistory(plays, time.Now()), colorMusic)
}

func renderHistory(plays []database.Play, now time.Time) string {
	lines := make([]string, len(plays))
	for i, p := range plays {
		status := p.EndReason
		if p.Playing() {
			status = "playing"
		}
		lines[i] = fmt.Sprintf("`%d.` %s (%s, %s ago)", i+1, p.Title, status, humanizeAge(now.Sub(p.StartedAt)))
	}
	return strings.Join(lines, "\n")
}

func humanizeAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
