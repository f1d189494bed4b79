package presence

import (
	"context"
	"math/rand"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/latoulicious/kenny/pkg/logging"
)

const (
	modeIdle  = "idle"
	modeGame  = "game"
	modeMusic = "music"
)

// StatusUpdater is the part of *discordgo.Session the manager drives
type StatusUpdater interface {
	UpdateStatusComplex(usd discordgo.UpdateStatusData) error
}

// PresenceManager switches the bot's status between a rotating game and the current song
type PresenceManager struct {
	session StatusUpdater
	logger  logging.Logger
	games   []string

	mu      sync.Mutex
	rng     *rand.Rand
	last    int
	current string
}

// NewPresenceManager creates a manager rotating through games. rng may be nil.
func NewPresenceManager(session StatusUpdater, games []string, rng *rand.Rand, logger logging.Logger) *PresenceManager {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &PresenceManager{
		session: session,
		logger:  logger,
		games:   games,
		rng:     rng,
		last:    -1,
		current: modeIdle,
	}
}

// Start shows a random game, if any are configured
func (pm *PresenceManager) Start() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.showGame()
}

// Rotate moves to another game unless a song is being shown. It matches the scheduler's
// job signature.
func (pm *PresenceManager) Rotate(context.Context) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.current == modeMusic {
		return nil
	}
	pm.showGame()
	return nil
}

// UpdateMusicPresence shows "Listening to <title>"
func (pm *PresenceManager) UpdateMusicPresence(songTitle string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.update(&discordgo.Activity{Name: songTitle, Type: discordgo.ActivityTypeListening})
	pm.current = modeMusic
}

// ClearMusicPresence returns to the game rotation
func (pm *PresenceManager) ClearMusicPresence() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.current != modeMusic {
		return
	}
	pm.showGame()
}

// GetCurrentPresence returns idle, game or music
func (pm *PresenceManager) GetCurrentPresence() string {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.current
}

// showGame must be called with mu held
func (pm *PresenceManager) showGame() {
	if len(pm.games) == 0 {
		if pm.current != modeIdle {
			pm.update(nil)
		}
		pm.current = modeIdle
		return
	}

	pm.last = pm.nextGame(pm.last)
	pm.update(&discordgo.Activity{Name: pm.games[pm.last], Type: discordgo.ActivityTypeGame})
	pm.current = modeGame
	pm.logger.Debug("Set new presence", logging.String("game", pm.games[pm.last]))
}

// nextGame draws a random game, stepping forward if it equals last
func (pm *PresenceManager) nextGame(last int) int {
	n := len(pm.games)
	p := pm.rng.Intn(n)
	if p == last && n > 1 {
		p = (p + 1) % n
	}
	return p
}

func (pm *PresenceManager) update(activity *discordgo.Activity) {
	status := discordgo.UpdateStatusData{Status: string(discordgo.StatusOnline)}
	if activity != nil {
		status.Activities = []*discordgo.Activity{activity}
	}
	if err := pm.session.UpdateStatusComplex(status); err != nil {
		pm.logger.Warn("Failed to update presence", logging.Err(err))
	}
}
