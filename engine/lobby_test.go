package engine

import (
	"fmt"
	"sync"
	"testing"

	"github.com/pants721/mao/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLobby_Lifecycle(t *testing.T) {
	lobby := NewLobby("ABCDE", "alice", 2, newRNG(1))
	assert.Equal(t, "ABCDE", lobby.ID())

	state, err := lobby.Join("bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, state.Players)
	assert.False(t, state.Started())

	state, err = lobby.StartGame()
	require.NoError(t, err)
	require.True(t, state.Started())
	assert.Len(t, state.Game.Deck, 47)
	assertClosedSystem(t, state.Game)

	_, err = lobby.StartGame()
	assert.ErrorIs(t, err, ErrLobbyAlreadyStarted)
}

func TestLobby_ActionsBeforeStart(t *testing.T) {
	lobby := NewLobby("ABCDE", "alice", 2, newRNG(1))

	_, err := lobby.PlayCard(models.NewCard(models.Hearts, models.Ace), "alice")
	assert.ErrorIs(t, err, ErrGameNotStarted)

	_, _, err = lobby.DrawCard("alice")
	assert.ErrorIs(t, err, ErrGameNotStarted)
}

func TestLobby_StartGame_InsufficientDeckLeavesNoGame(t *testing.T) {
	lobby := NewLobby("ABCDE", "alice", 20, newRNG(1))
	_, err := lobby.Join("bob")
	require.NoError(t, err)
	_, err = lobby.Join("carol")
	require.NoError(t, err)

	_, err = lobby.StartGame()
	assert.ErrorIs(t, err, ErrInsufficientDeck)
	assert.False(t, lobby.Snapshot().Started())

	_, _, err = lobby.DrawCard("alice")
	assert.ErrorIs(t, err, ErrGameNotStarted)
}

func TestLobby_LateJoinerIsNotDealtIn(t *testing.T) {
	lobby := NewLobby("ABCDE", "alice", 3, newRNG(1))
	_, err := lobby.StartGame()
	require.NoError(t, err)

	state, err := lobby.Join("bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, state.Players)
	_, ok := state.Game.Player("bob")
	assert.False(t, ok)

	_, _, err = lobby.DrawCard("bob")
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestLobby_SnapshotDoesNotAlias(t *testing.T) {
	lobby := NewLobby("ABCDE", "alice", 3, newRNG(1))
	snap := lobby.Snapshot()
	snap.Players[0] = "mallory"

	assert.Equal(t, []string{"alice"}, lobby.Snapshot().Players)
}

func TestLobby_ConcurrentJoins(t *testing.T) {
	lobby := NewLobby("ABCDE", "host", 1, newRNG(1))

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := lobby.Join(fmt.Sprintf("player-%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	players := lobby.Snapshot().Players
	assert.Len(t, players, n+1)

	seen := make(map[string]bool)
	for _, p := range players {
		seen[p] = true
	}
	assert.Len(t, seen, n+1)
}

func TestLobby_DuplicateNameIsRejected(t *testing.T) {
	lobby := NewLobby("ABCDE", "alice", 3, newRNG(1))

	_, err := lobby.Join("alice")
	assert.ErrorIs(t, err, ErrPlayerNameTaken)

	state := lobby.Snapshot()
	assert.Equal(t, []string{"alice"}, state.Players)
	assert.Equal(t, uint64(1), state.Version)
}

func TestLobby_VersionGrowsWithEveryChange(t *testing.T) {
	lobby := NewLobby("ABCDE", "alice", 51, newRNG(1))
	var events []models.Event
	lobby.publish = func(e models.Event) { events = append(events, e) }

	assert.Equal(t, uint64(1), lobby.Snapshot().Version)

	started, err := lobby.StartGame()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), started.Version)

	_, err = lobby.StartGame()
	require.Error(t, err)
	assert.Equal(t, uint64(2), lobby.Snapshot().Version)

	// one card on the pile and an empty deck: nothing to draw
	card, exhausted, err := lobby.DrawCard("alice")
	require.NoError(t, err)
	assert.Nil(t, card)
	assert.Equal(t, uint64(2), exhausted.Version)

	joined, err := lobby.Join("bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), joined.Version)

	require.Len(t, events, 3)
	assert.Equal(t, models.EventGameStarted, events[0].Event)
	assert.Equal(t, uint64(2), events[0].Version)
	assert.Equal(t, models.EventDeckExhausted, events[1].Event)
	assert.Equal(t, uint64(2), events[1].Version)
	assert.Equal(t, models.EventPlayerJoined, events[2].Event)
	assert.Equal(t, uint64(3), events[2].Version)
	for _, e := range events {
		assert.Equal(t, "ABCDE", e.LobbyID)
	}
}
