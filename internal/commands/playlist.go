package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/latoulicious/kenny/pkg/logging"
	"github.com/latoulicious/kenny/pkg/music"
	"github.com/samber/lo"
)

// messageLimit is Discord's cap on message content length
const messageLimit = 2000

// ListCommand links the mirrored playlist, or prints it when mirroring is off
func ListCommand(b *Bot, c *Context) {
	s, m := c.Session, c.Message
	ctx, cancel := commandContext()
	defer cancel()

	url, err := b.player.List(ctx)
	switch {
	case err == nil:
		s.ChannelMessageSend(m.ChannelID, url)
	case errors.Is(err, music.ErrMirrorDisabled):
		titles := trackTitles(b.player.Tracks())
		if len(titles) == 0 {
			sendEmbedMessage(s, m.ChannelID, "📃 Playlist", "There are no songs in the playlist", colorNeutral)
			return
		}
		s.ChannelMessageSend(m.ChannelID, renderCodeList(numbered(titles), messageLimit))
	default:
		b.logger.Warn("Failed to list playlist", logging.Err(err))
		sendEmbedMessage(s, m.ChannelID, "❌ Error", "Could not fetch the playlist link, try again later", colorError)
	}
}

// AddCommand catalogues a song
func AddCommand(b *Bot, c *Context) {
	s, m := c.Session, c.Message
	query := c.Query()
	if query == "" {
		b.sendUsage(c)
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	res, err := b.player.Add(ctx, query)
	if err != nil {
		sendEmbedMessage(s, m.ChannelID, "❌ Not Found", describeError(err, query), colorError)
		return
	}
	if res.Existed {
		sendEmbedMessage(s, m.ChannelID, "📃 Playlist", fmt.Sprintf("`%s` is already in the playlist", res.Track.Title), colorNeutral)
		return
	}
	sendEmbedMessage(s, m.ChannelID, "✅ Song Added", fmt.Sprintf("Added `%s` to the playlist (#%d)", res.Track.Title, res.Index+1), colorSuccess)
}

// RemoveCommand deletes a song from the playlist
func RemoveCommand(b *Bot, c *Context) {
	s, m := c.Session, c.Message
	query := c.Query()
	if query == "" {
		b.sendUsage(c)
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	t, err := b.player.Remove(ctx, query)
	if err != nil {
		msg := describeError(err, query)
		if errors.Is(err, music.ErrNotFound) && !isProviderError(err) {
			msg = fmt.Sprintf("Could not find `%s` in the playlist", query)
		}
		sendEmbedMessage(s, m.ChannelID, "❌ Not Found", msg, colorError)
		return
	}
	sendEmbedMessage(s, m.ChannelID, "🗑️ Song Removed", fmt.Sprintf("Removed `%s` from the playlist", t.Title), colorSuccess)
}

func isProviderError(err error) bool {
	var perr *music.ProviderError
	return errors.As(err, &perr)
}

func trackTitles(tracks []music.Track) []string {
	return lo.Map(tracks, func(t music.Track, _ int) string { return t.Title })
}

// numbered prefixes each line with its 1-based position
func numbered(lines []string) []string {
	out := make([]string, len(lines))
	width := len(fmt.Sprint(len(lines)))
	for i, l := range lines {
		out[i] = fmt.Sprintf("%*d. %s", width, i+1, l)
	}
	return out
}

// renderCodeList wraps lines in a code block, dropping trailing lines until it fits in limit
func renderCodeList(lines []string, limit int) string {
	const fenceOpen, fenceClose = "```\n", "```"
	budget := limit - len(fenceOpen) - len(fenceClose)

	var sb strings.Builder
	for _, l := range lines {
		// keep room for the newline separator
		extra := len(l)
		if sb.Len() > 0 {
			extra++
		}
		if sb.Len()+extra > budget {
			break
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(l)
	}
	return fenceOpen + sb.String() + fenceClose
}
