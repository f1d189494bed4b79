package commands

import (
	"errors"
	"fmt"

	"github.com/latoulicious/kenny/pkg/music"
)

// QueueCommand lists the song queue, or appends a song to it
func QueueCommand(b *Bot, c *Context) {
	s, m := c.Session, c.Message
	if !b.requireVoice(c) {
		return
	}

	query := c.Query()
	if query == "" {
		titles := trackTitles(b.player.Upcoming())
		if len(titles) == 0 {
			sendEmbedMessage(s, m.ChannelID, "📭 Queue", "The song queue is empty", colorNeutral)
			return
		}
		s.ChannelMessageSend(m.ChannelID, renderCodeList(titles, messageLimit))
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	t, existed, err := b.player.Enqueue(ctx, query)
	if err != nil {
		sendEmbedMessage(s, m.ChannelID, "❌ Queue", describeError(err, query), colorError)
		return
	}
	if existed {
		sendEmbedMessage(s, m.ChannelID, "📋 Queue", fmt.Sprintf("`%s` is already in the song queue", t.Title), colorNeutral)
		return
	}
	sendEmbedMessage(s, m.ChannelID, "✅ Queued", fmt.Sprintf("Added `%s` to the queue", t.Title), colorSuccess)
}

// DequeueCommand removes a song from the song queue
func DequeueCommand(b *Bot, c *Context) {
	s, m := c.Session, c.Message
	if !b.requireVoice(c) {
		return
	}

	query := c.Query()
	if query == "" {
		b.sendUsage(c)
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	t, err := b.player.Dequeue(ctx, query)
	if err != nil {
		msg := describeError(err, query)
		if errors.Is(err, music.ErrNotFound) {
			msg = fmt.Sprintf("Could not find `%s` in the song queue", query)
		}
		sendEmbedMessage(s, m.ChannelID, "❌ Queue", msg, colorError)
		return
	}
	sendEmbedMessage(s, m.ChannelID, "🗑️ Dequeued", fmt.Sprintf("Removed `%s` from the queue", t.Title), colorSuccess)
}

// NextCommand puts a song at the front of the song queue
func NextCommand(b *Bot, c *Context) {
	s, m := c.Session, c.Message
	if !b.requireVoice(c) {
		return
	}

	query := c.Query()
	if query == "" {
		b.sendUsage(c)
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	t, err := b.player.Next(ctx, query)
	if err != nil {
		sendEmbedMessage(s, m.ChannelID, "❌ Queue", describeError(err, query), colorError)
		return
	}
	sendEmbedMessage(s, m.ChannelID, "⏭️ Up Next", fmt.Sprintf("Added `%s` to the front of the queue", t.Title), colorSuccess)
}

// requireVoice tells the caller to join first when the bot is not in a voice channel
func (b *Bot) requireVoice(c *Context) bool {
	if voiceConnection(c.Session, c.Message.GuildID) != nil {
		return true
	}
	sendEmbedMessage(c.Session, c.Message.ChannelID, "🔇 Voice",
		fmt.Sprintf("I'm not in a voice channel. Use `%sjoin` first.", b.Prefixes()[0]), colorNeutral)
	return false
}
