package commands

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Context is one invocation of a command
type Context struct {
	Session *discordgo.Session
	Message *discordgo.MessageCreate
	// Name is the alias the user typed
	Name  string
	Args  []string
	Admin bool
}

// Query returns the arguments joined back into one string
func (c *Context) Query() string {
	return strings.Join(c.Args, " ")
}

// Command is a chat command and its help text
type Command struct {
	Name        string
	Aliases     []string
	Usage       string
	Description string
	// Admin commands are only run for the configured bot owner
	Admin bool
	Run   func(b *Bot, c *Context)
}

// Registry resolves command names and aliases
type Registry struct {
	commands []*Command
	index    map[string]*Command
}

// NewRegistry indexes cmds by name and alias. Later entries win on conflicts.
func NewRegistry(cmds ...Command) *Registry {
	r := &Registry{index: make(map[string]*Command)}
	for i := range cmds {
		cmd := &cmds[i]
		r.commands = append(r.commands, cmd)
		r.index[strings.ToLower(cmd.Name)] = cmd
		for _, alias := range cmd.Aliases {
			r.index[strings.ToLower(alias)] = cmd
		}
	}
	return r
}

// Lookup finds a command by name or alias, ignoring case
func (r *Registry) Lookup(name string) (*Command, bool) {
	cmd, ok := r.index[strings.ToLower(name)]
	return cmd, ok
}

// Commands returns the commands in registration order
func (r *Registry) Commands() []*Command {
	return r.commands
}

// DefaultCommands is the bot's full command set
func DefaultCommands() []Command {
	return []Command{
		{
			Name:        "help",
			Aliases:     []string{"h"},
			Usage:       "help [command]",
			Description: "Displays a command list or describes a specific command. <> denotes a required parameter, [] an optional one.",
			Run:         HelpCommand,
		},
		{
			Name:        "prefix",
			Usage:       "prefix <prefix>",
			Description: "Sets a custom command prefix. The default prefix and mentioning the bot always work.",
			Admin:       true,
			Run:         PrefixCommand,
		},
		{
			Name:        "restart",
			Usage:       "restart",
			Description: "Stops playback and reconnects to Discord.",
			Admin:       true,
			Run:         RestartCommand,
		},
		{
			Name:        "prune",
			Aliases:     []string{"delete"},
			Usage:       "prune <number> [@user]",
			Description: "Deletes up to 100 recent messages, optionally only those from a mentioned user. Messages older than 14 days are skipped.",
			Run:         PruneCommand,
		},
		{
			Name:        "list",
			Aliases:     []string{"playlist"},
			Usage:       "list",
			Description: "Drops a link to the playlist.",
			Run:         ListCommand,
		},
		{
			Name:        "add",
			Usage:       "add <query|url>",
			Description: "Adds a song to the playlist from a search query or a URL.",
			Run:         AddCommand,
		},
		{
			Name:        "remove",
			Aliases:     []string{"rm"},
			Usage:       "remove <index|query>",
			Description: "Removes a song from the playlist.",
			Run:         RemoveCommand,
		},
		{
			Name:        "join",
			Usage:       "join",
			Description: "Joins your voice channel.",
			Run:         JoinCommand,
		},
		{
			Name:        "volume",
			Aliases:     []string{"vol"},
			Usage:       "volume [0-1.5]",
			Description: "Shows the music volume. Setting it is bot owner only.",
			Run:         VolumeCommand,
		},
		{
			Name:        "shuffle",
			Usage:       "shuffle",
			Description: "Toggles shuffle.",
			Run:         ShuffleCommand,
		},
		{
			Name:        "play",
			Aliases:     []string{"p"},
			Usage:       "play [index|query|url]",
			Description: "Starts playing in your voice channel. A query or URL that is not in the playlist is added first.",
			Run:         PlayCommand,
		},
		{
			Name:        "queue",
			Aliases:     []string{"q"},
			Usage:       "queue [index|query|url]",
			Description: "Shows the song queue or adds a song to it.",
			Run:         QueueCommand,
		},
		{
			Name:        "dequeue",
			Aliases:     []string{"dq"},
			Usage:       "dequeue <index|query>",
			Description: "Removes a song from the song queue.",
			Run:         DequeueCommand,
		},
		{
			Name:        "next",
			Usage:       "next <index|query|url>",
			Description: "Puts a song at the front of the song queue.",
			Run:         NextCommand,
		},
		{
			Name:        "skip",
			Aliases:     []string{"s"},
			Usage:       "skip",
			Description: "Skips the current song.",
			Run:         SkipCommand,
		},
		{
			Name:        "stop",
			Usage:       "stop",
			Description: "Stops playing and leaves the voice channel.",
			Run:         StopCommand,
		},
		{
			Name:        "song",
			Aliases:     []string{"np", "playing"},
			Usage:       "song",
			Description: "Shows the current song.",
			Run:         SongCommand,
		},
		{
			Name:        "history",
			Usage:       "history",
			Description: "Shows the last songs played in this server.",
			Run:         HistoryCommand,
		},
	}
}
