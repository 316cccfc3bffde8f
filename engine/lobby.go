package engine

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/pants721/mao/models"
)

// Lobby groups players around at most one game. Every method holds the lobby
// lock for its whole duration and returns a snapshot taken inside it.
type Lobby struct {
	id       string
	handSize int
	players  []string
	game     *Game
	rng      *rand.Rand
	version  uint64
	mu       sync.Mutex

	// publish receives each change's event while the lock is held, so events
	// leave a lobby in the order its changes happened. It must not block.
	publish func(models.Event)
}

func NewLobby(id, firstPlayer string, handSize int, rng *rand.Rand) *Lobby {
	return &Lobby{
		id:       id,
		handSize: handSize,
		players:  []string{firstPlayer},
		rng:      rng,
		version:  1,
	}
}

func (l *Lobby) ID() string {
	return l.id
}

// Join adds a player. Joining after the game started only adds the name to
// the lobby; the running game deals nobody in. Names are unique per lobby.
func (l *Lobby) Join(playerName string) (models.LobbyState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, name := range l.players {
		if name == playerName {
			return models.LobbyState{}, fmt.Errorf("%w: %s in %s", ErrPlayerNameTaken, playerName, l.id)
		}
	}

	l.players = append(l.players, playerName)
	state := l.commit()
	l.notify(state, models.Event{
		Event:  models.EventPlayerJoined,
		Player: playerName,
		Data:   map[string]interface{}{"late": state.Started()},
	})
	return state, nil
}

// StartGame deals a game for the current players. It can succeed only once.
func (l *Lobby) StartGame() (models.LobbyState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.game != nil {
		return models.LobbyState{}, fmt.Errorf("%w: %s", ErrLobbyAlreadyStarted, l.id)
	}

	game, err := NewGame(l.handSize, append([]string(nil), l.players...), l.rng)
	if err != nil {
		return models.LobbyState{}, err
	}
	l.game = game

	state := l.commit()
	l.notify(state, models.Event{
		Event: models.EventGameStarted,
		Data: map[string]interface{}{
			"players": state.Players,
			"topCard": state.Game.TopCard().Name(),
		},
	})
	return state, nil
}

func (l *Lobby) PlayCard(card models.Card, playerName string) (models.LobbyState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.game == nil {
		return models.LobbyState{}, fmt.Errorf("%w: %s", ErrGameNotStarted, l.id)
	}
	if err := l.game.PlayCard(card, playerName); err != nil {
		return models.LobbyState{}, err
	}

	state := l.commit()
	l.notify(state, models.Event{
		Event:  models.EventCardPlayed,
		Player: playerName,
		Data:   map[string]interface{}{"card": card.Name()},
	})
	return state, nil
}

// DrawCard returns the drawn card, or nil when nothing was left to draw. An
// exhausted draw changes nothing and keeps the version.
func (l *Lobby) DrawCard(playerName string) (*models.Card, models.LobbyState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.game == nil {
		return nil, models.LobbyState{}, fmt.Errorf("%w: %s", ErrGameNotStarted, l.id)
	}
	card, err := l.game.DrawCard(playerName)
	if err != nil {
		return nil, models.LobbyState{}, err
	}

	if card == nil {
		state := l.snapshot()
		l.notify(state, models.Event{Event: models.EventDeckExhausted, Player: playerName})
		return nil, state, nil
	}

	state := l.commit()
	l.notify(state, models.Event{
		Event:  models.EventCardDrawn,
		Player: playerName,
		Data:   map[string]interface{}{"deckSize": len(state.Game.Deck)},
	})
	return card, state, nil
}

func (l *Lobby) Snapshot() models.LobbyState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}

// commit records a change and snapshots the result. l.mu must be held.
func (l *Lobby) commit() models.LobbyState {
	l.version++
	return l.snapshot()
}

// notify must be called with l.mu held.
func (l *Lobby) notify(state models.LobbyState, event models.Event) {
	if l.publish == nil {
		return
	}
	event.LobbyID = l.id
	event.Version = state.Version
	l.publish(event)
}

// snapshot must be called with l.mu held.
func (l *Lobby) snapshot() models.LobbyState {
	state := models.LobbyState{
		ID:       l.id,
		Version:  l.version,
		HandSize: l.handSize,
		Players:  append([]string{}, l.players...),
	}
	if l.game != nil {
		state.Game = l.game.Snapshot()
	}
	return state
}
