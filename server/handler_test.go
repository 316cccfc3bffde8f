package server

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/pants721/mao/engine"
	"github.com/pants721/mao/internal/lobbycode"
	"github.com/pants721/mao/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *engine.LobbyManager {
	t.Helper()
	var mu sync.Mutex
	seed := int64(0)
	lm := engine.NewLobbyManager(
		lobbycode.NewMinter(lobbycode.NewMemoryReserver(), 5),
		engine.WithRandSource(func() *rand.Rand {
			mu.Lock()
			defer mu.Unlock()
			seed++
			return rand.New(rand.NewSource(seed))
		}),
	)
	t.Cleanup(lm.Close)
	return lm
}

func TestCommandHandler_Flow(t *testing.T) {
	h := NewCommandHandler(newTestManager(t))
	ctx := context.Background()

	res, err := h.Handle(ctx, models.CreateLobby{PlayerName: "alice", HandSize: 3})
	require.NoError(t, err)
	assert.True(t, res.Subscribe)
	assert.Equal(t, "alice", res.Player)
	assert.Len(t, res.State.ID, 5)
	id := res.State.ID

	res, err = h.Handle(ctx, models.JoinLobby{LobbyID: id, PlayerName: "bob"})
	require.NoError(t, err)
	assert.True(t, res.Subscribe)
	assert.Equal(t, "bob", res.Player)
	assert.Equal(t, []string{"alice", "bob"}, res.State.Players)

	res, err = h.Handle(ctx, models.StartGame{LobbyID: id})
	require.NoError(t, err)
	assert.False(t, res.Subscribe)
	assert.Empty(t, res.Player)
	require.True(t, res.State.Started())

	res, err = h.Handle(ctx, models.DrawCard{LobbyID: id, PlayerID: "bob"})
	require.NoError(t, err)
	require.NotNil(t, res.Draw)
	require.NotNil(t, res.Draw.Card)
	bob, _ := res.State.Game.Player("bob")
	assert.Contains(t, bob.Hand, *res.Draw.Card)

	top := *res.State.Game.TopCard()
	_, err = h.Handle(ctx, models.PlayCard{LobbyID: id, PlayerID: "bob", Card: top})
	assert.ErrorIs(t, err, engine.ErrCardNotInHand)
}

func TestCommandHandler_Errors(t *testing.T) {
	h := NewCommandHandler(newTestManager(t))
	ctx := context.Background()

	_, err := h.Handle(ctx, models.JoinLobby{LobbyID: "ZZZZZ", PlayerName: "bob"})
	assert.ErrorIs(t, err, engine.ErrLobbyNotFound)

	_, err = h.Handle(ctx, models.CreateLobby{PlayerName: "alice", HandSize: 0})
	assert.ErrorIs(t, err, engine.ErrInvalidHandSize)

	res, err := h.Handle(ctx, models.CreateLobby{PlayerName: "alice", HandSize: 30})
	require.NoError(t, err)
	_, err = h.Handle(ctx, models.PlayCard{LobbyID: res.State.ID, PlayerID: "alice", Card: models.NewCard(models.Hearts, models.Ace)})
	assert.ErrorIs(t, err, engine.ErrGameNotStarted)

	_, err = h.Handle(ctx, models.JoinLobby{LobbyID: res.State.ID, PlayerName: "bob"})
	require.NoError(t, err)
	_, err = h.Handle(ctx, models.StartGame{LobbyID: res.State.ID})
	assert.ErrorIs(t, err, engine.ErrInsufficientDeck)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want models.ErrorKind
	}{
		{fmt.Errorf("wrapped: %w", engine.ErrInvalidPlay), models.ErrKindInvalidPlay},
		{engine.ErrCardNotInHand, models.ErrKindCardNotInHand},
		{engine.ErrPlayerNotFound, models.ErrKindPlayerNotFound},
		{engine.ErrLobbyNotFound, models.ErrKindLobbyNotFound},
		{engine.ErrLobbyAlreadyStarted, models.ErrKindLobbyAlreadyStarted},
		{engine.ErrGameNotStarted, models.ErrKindGameNotStarted},
		{engine.ErrInsufficientDeck, models.ErrKindInsufficientDeck},
		{engine.ErrInvalidHandSize, models.ErrKindInvalidHandSize},
		{engine.ErrInvalidPlayerName, models.ErrKindInvalidPlayerName},
		{engine.ErrPlayerNameTaken, models.ErrKindPlayerNameTaken},
		{ErrRateLimited, models.ErrKindRateLimited},
		{models.ErrMalformedRequest, models.ErrKindMalformedRequest},
		{models.ErrUnsupportedMessage, models.ErrKindUnsupportedMessage},
		{engine.ErrLobbyIDExhausted, models.ErrKindInternal},
		{errors.New("boom"), models.ErrKindInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}

	resp := ErrorResponse(fmt.Errorf("%w: nope", engine.ErrInvalidPlay))
	require.NotNil(t, resp.Error)
	assert.Equal(t, models.ErrKindInvalidPlay, resp.Error.Kind)
	assert.Contains(t, resp.Error.Message, "nope")
	assert.Nil(t, resp.GameState)
}

func TestRender_HidesOtherHands(t *testing.T) {
	state := models.LobbyState{
		ID:      "ABCDE",
		Players: []string{"alice", "bob"},
		Game: &models.GameState{
			Deck:      []models.Card{models.NewCard(models.Clubs, models.Two)},
			PlayStack: []models.Card{models.NewCard(models.Hearts, models.Ace)},
			Players: []models.PlayerState{
				{Name: "alice", Hand: []models.Card{models.NewCard(models.Spades, models.Four)}},
				{Name: "bob", Hand: []models.Card{models.NewCard(models.Spades, models.Five), models.NewCard(models.Spades, models.Six)}},
			},
		},
	}

	resp := Render(state, "bob", nil)
	require.NotNil(t, resp.GameState)
	require.NotNil(t, resp.Lobby)
	assert.True(t, resp.Lobby.Started)
	assert.Equal(t, 1, resp.GameState.DeckSize)
	assert.Nil(t, resp.GameState.Players[0].Hand)
	assert.Equal(t, 1, resp.GameState.Players[0].HandSize)
	assert.Len(t, resp.GameState.Players[1].Hand, 2)
	assert.Nil(t, resp.Draw)
}
