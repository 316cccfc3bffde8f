package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pants721/mao/models"
	"go.uber.org/zap"
)

// DefaultMintAttempts bounds how often CreateLobby retries a colliding id.
const DefaultMintAttempts = 8

// IDMinter hands out lobby ids that are not in use elsewhere.
type IDMinter interface {
	Mint(ctx context.Context) (string, error)
}

// LobbyManager is the registry of every lobby in the process. Its lock only
// guards the map; lobby operations run under the lobby's own lock after the
// registry lock has been released.
type LobbyManager struct {
	lobbies      map[string]*Lobby
	mu           sync.RWMutex
	minter       IDMinter
	mintAttempts int
	newRNG       func() *rand.Rand
	logger       *zap.Logger

	eventChannel chan models.Event
	eventMu      sync.RWMutex
	closed       bool
}

type Option func(*LobbyManager)

// WithEventBuffer sets the capacity of the event channel.
func WithEventBuffer(n int) Option {
	return func(lm *LobbyManager) {
		lm.eventChannel = make(chan models.Event, n)
	}
}

// WithRandSource replaces the per-lobby shuffle source, mainly for tests.
func WithRandSource(newRNG func() *rand.Rand) Option {
	return func(lm *LobbyManager) {
		lm.newRNG = newRNG
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(lm *LobbyManager) {
		lm.logger = logger
	}
}

func WithMintAttempts(n int) Option {
	return func(lm *LobbyManager) {
		lm.mintAttempts = n
	}
}

func NewLobbyManager(minter IDMinter, opts ...Option) *LobbyManager {
	var seq int64
	lm := &LobbyManager{
		lobbies:      make(map[string]*Lobby),
		minter:       minter,
		mintAttempts: DefaultMintAttempts,
		logger:       zap.NewNop(),
		eventChannel: make(chan models.Event, 100),
		newRNG: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano() + atomic.AddInt64(&seq, 1)))
		},
	}
	for _, opt := range opts {
		opt(lm)
	}
	lm.logger = lm.logger.Named("lobby")
	return lm
}

func (lm *LobbyManager) CreateLobby(ctx context.Context, playerName string, handSize int) (models.LobbyState, error) {
	if err := ValidatePlayerName(playerName); err != nil {
		return models.LobbyState{}, err
	}
	if err := ValidateHandSize(handSize); err != nil {
		return models.LobbyState{}, err
	}

	for attempt := 0; attempt < lm.mintAttempts; attempt++ {
		id, err := lm.minter.Mint(ctx)
		if err != nil {
			return models.LobbyState{}, fmt.Errorf("%w: %v", ErrLobbyIDExhausted, err)
		}

		lobby := NewLobby(id, playerName, handSize, lm.newRNG())
		lobby.publish = lm.emit
		state := lobby.Snapshot()

		lm.mu.Lock()
		if _, exists := lm.lobbies[id]; exists {
			lm.mu.Unlock()
			lm.logger.Warn("lobby id collision, retrying", zap.String("lobby_id", id), zap.Int("attempt", attempt+1))
			continue
		}
		lm.lobbies[id] = lobby
		// emitted before the lobby can be reached so it precedes every
		// event of the lobby
		lm.emit(models.Event{
			Event:   models.EventLobbyCreated,
			LobbyID: id,
			Version: state.Version,
			Player:  playerName,
			Data:    map[string]interface{}{"handSize": handSize},
		})
		lm.mu.Unlock()

		lm.logger.Info("lobby created",
			zap.String("lobby_id", id),
			zap.String("player", playerName),
			zap.Int("hand_size", handSize))
		return state, nil
	}

	return models.LobbyState{}, fmt.Errorf("%w after %d attempts", ErrLobbyIDExhausted, lm.mintAttempts)
}

// Get looks a lobby up without touching the lobby lock.
func (lm *LobbyManager) Get(lobbyID string) (*Lobby, error) {
	lm.mu.RLock()
	lobby, exists := lm.lobbies[lobbyID]
	lm.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrLobbyNotFound, lobbyID)
	}
	return lobby, nil
}

// Snapshot returns the current state of a lobby.
func (lm *LobbyManager) Snapshot(lobbyID string) (models.LobbyState, error) {
	lobby, err := lm.Get(lobbyID)
	if err != nil {
		return models.LobbyState{}, err
	}
	return lobby.Snapshot(), nil
}

func (lm *LobbyManager) JoinLobby(lobbyID, playerName string) (models.LobbyState, error) {
	if err := ValidatePlayerName(playerName); err != nil {
		return models.LobbyState{}, err
	}
	lobby, err := lm.Get(lobbyID)
	if err != nil {
		return models.LobbyState{}, err
	}

	state, err := lobby.Join(playerName)
	if err != nil {
		return models.LobbyState{}, err
	}
	lm.logger.Info("player joined",
		zap.String("lobby_id", lobbyID),
		zap.String("player", playerName),
		zap.Int("players", len(state.Players)),
		zap.Bool("late", state.Started()))
	return state, nil
}

func (lm *LobbyManager) StartGame(lobbyID string) (models.LobbyState, error) {
	lobby, err := lm.Get(lobbyID)
	if err != nil {
		return models.LobbyState{}, err
	}

	state, err := lobby.StartGame()
	if err != nil {
		return models.LobbyState{}, err
	}

	lm.logger.Info("game started",
		zap.String("lobby_id", lobbyID),
		zap.Strings("players", state.Players),
		zap.Stringer("top_card", state.Game.TopCard()))
	return state, nil
}

func (lm *LobbyManager) PlayCard(lobbyID, playerName string, card models.Card) (models.LobbyState, error) {
	lobby, err := lm.Get(lobbyID)
	if err != nil {
		return models.LobbyState{}, err
	}

	state, err := lobby.PlayCard(card, playerName)
	if err != nil {
		return models.LobbyState{}, err
	}

	lm.logger.Debug("card played",
		zap.String("lobby_id", lobbyID),
		zap.String("player", playerName),
		zap.Stringer("card", card))
	return state, nil
}

// DrawCard returns a nil card when the deck and pile are exhausted.
func (lm *LobbyManager) DrawCard(lobbyID, playerName string) (*models.Card, models.LobbyState, error) {
	lobby, err := lm.Get(lobbyID)
	if err != nil {
		return nil, models.LobbyState{}, err
	}

	card, state, err := lobby.DrawCard(playerName)
	if err != nil {
		return nil, models.LobbyState{}, err
	}

	if card == nil {
		lm.logger.Info("deck exhausted", zap.String("lobby_id", lobbyID), zap.String("player", playerName))
		return nil, state, nil
	}

	lm.logger.Debug("card drawn",
		zap.String("lobby_id", lobbyID),
		zap.String("player", playerName),
		zap.Int("deck_size", len(state.Game.Deck)))
	return card, state, nil
}

// ListLobbies returns a public view of every lobby, sorted by id.
func (lm *LobbyManager) ListLobbies() []models.LobbyView {
	lm.mu.RLock()
	lobbies := make([]*Lobby, 0, len(lm.lobbies))
	for _, lobby := range lm.lobbies {
		lobbies = append(lobbies, lobby)
	}
	lm.mu.RUnlock()

	views := make([]models.LobbyView, 0, len(lobbies))
	for _, lobby := range lobbies {
		views = append(views, lobby.Snapshot().View())
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views
}

func (lm *LobbyManager) Count() int {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return len(lm.lobbies)
}

// Events delivers lobby events. Events of one lobby arrive in the order its
// changes happened. Events are dropped rather than blocking a request when
// nobody keeps up with the channel.
func (lm *LobbyManager) Events() <-chan models.Event {
	return lm.eventChannel
}

func (lm *LobbyManager) emit(event models.Event) {
	lm.eventMu.RLock()
	defer lm.eventMu.RUnlock()

	if lm.closed {
		return
	}
	select {
	case lm.eventChannel <- event:
	default:
		lm.logger.Warn("event channel full, dropping event",
			zap.String("event", string(event.Event)),
			zap.String("lobby_id", event.LobbyID))
	}
}

// Close stops event delivery. Lobby operations keep working afterwards.
func (lm *LobbyManager) Close() {
	lm.eventMu.Lock()
	defer lm.eventMu.Unlock()

	if lm.closed {
		return
	}
	lm.closed = true
	close(lm.eventChannel)
}
