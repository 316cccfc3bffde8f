package engine

import (
	"math/rand"
	"testing"

	"github.com/pants721/mao/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// assertClosedSystem checks that deck, pile and hands hold every card exactly once.
func assertClosedSystem(t *testing.T, state *models.GameState) {
	t.Helper()
	require.NotNil(t, state)

	var all []models.Card
	all = append(all, state.Deck...)
	all = append(all, state.PlayStack...)
	for _, p := range state.Players {
		all = append(all, p.Hand...)
	}
	require.Len(t, all, models.DeckSize)
	assert.ElementsMatch(t, models.StandardDeck(), all)
}

func playableCard(g *Game, name string) (models.Card, bool) {
	hand, _ := g.Hand(name)
	for _, c := range hand {
		if g.ValidPlay(c) {
			return c, true
		}
	}
	return models.Card{}, false
}

func unplayableCard(g *Game, name string) (models.Card, bool) {
	hand, _ := g.Hand(name)
	for _, c := range hand {
		if !g.ValidPlay(c) {
			return c, true
		}
	}
	return models.Card{}, false
}

func TestNewGame_Deal(t *testing.T) {
	g, err := NewGame(2, []string{"a", "b"}, newRNG(1))
	require.NoError(t, err)

	assert.Equal(t, 47, g.DeckSize())
	assert.Len(t, g.PlayStack(), 1)
	for _, name := range []string{"a", "b"} {
		hand, err := g.Hand(name)
		require.NoError(t, err)
		assert.Len(t, hand, 2)
	}
	snap := g.Snapshot()
	require.Len(t, snap.Players, 2)
	assert.Equal(t, "a", snap.Players[0].Name)
	assert.Equal(t, "b", snap.Players[1].Name)
	assertClosedSystem(t, snap)
}

func TestNewGame_Validation(t *testing.T) {
	_, err := NewGame(0, []string{"a"}, newRNG(1))
	assert.ErrorIs(t, err, ErrInvalidHandSize)

	_, err = NewGame(5, nil, newRNG(1))
	assert.ErrorIs(t, err, ErrNoPlayers)

	// 2 * 26 + 1 > 52
	_, err = NewGame(26, []string{"a", "b"}, newRNG(1))
	assert.ErrorIs(t, err, ErrInsufficientDeck)

	// 51 + 1 == 52 leaves an empty deck
	g, err := NewGame(51, []string{"a"}, newRNG(1))
	require.NoError(t, err)
	assert.Equal(t, 0, g.DeckSize())
	assertClosedSystem(t, g.Snapshot())
}

func TestGame_EndToEnd(t *testing.T) {
	// find a deal where "a" can follow the first card
	var g *Game
	var card models.Card
	for seed := int64(1); seed < 500; seed++ {
		candidate, err := NewGame(2, []string{"a", "b"}, newRNG(seed))
		require.NoError(t, err)
		if c, ok := playableCard(candidate, "a"); ok {
			g, card = candidate, c
			break
		}
	}
	require.NotNil(t, g, "no seed dealt a playable card")

	require.Equal(t, 47, g.DeckSize())
	require.NoError(t, g.PlayCard(card, "a"))
	assert.Len(t, g.PlayStack(), 2)
	assert.Equal(t, card, g.TopCard())
	hand, _ := g.Hand("a")
	assert.Len(t, hand, 1)

	drawn, err := g.DrawCard("a")
	require.NoError(t, err)
	require.NotNil(t, drawn)
	hand, _ = g.Hand("a")
	assert.Len(t, hand, 2)
	assert.Contains(t, hand, *drawn)
	assert.Equal(t, 46, g.DeckSize())
	assertClosedSystem(t, g.Snapshot())
}

func TestGame_PlayCard_InvalidPlayLeavesStateUnchanged(t *testing.T) {
	var g *Game
	var card models.Card
	for seed := int64(1); seed < 500; seed++ {
		candidate, err := NewGame(5, []string{"a", "b"}, newRNG(seed))
		require.NoError(t, err)
		if c, ok := unplayableCard(candidate, "a"); ok {
			g, card = candidate, c
			break
		}
	}
	require.NotNil(t, g)

	before := g.Snapshot()
	err := g.PlayCard(card, "a")
	assert.ErrorIs(t, err, ErrInvalidPlay)
	assert.Equal(t, before, g.Snapshot())
}

func TestGame_PlayCard_Errors(t *testing.T) {
	g, err := NewGame(3, []string{"a", "b"}, newRNG(7))
	require.NoError(t, err)
	top := g.TopCard()

	// a stackable card nobody is playing as
	err = g.PlayCard(top, "ghost")
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	// the top card itself is stackable but sits on the pile, not in a hand
	before := g.Snapshot()
	err = g.PlayCard(top, "a")
	assert.ErrorIs(t, err, ErrCardNotInHand)
	assert.Equal(t, before, g.Snapshot())
}

func TestGame_PlayCard_CompactsPile(t *testing.T) {
	g := &Game{
		deck:    models.NewDeckFrom(nil, newRNG(1)),
		rng:     newRNG(1),
		players: []*models.Player{models.NewPlayer("a")},
	}
	g.playStack = []models.Card{models.NewCard(models.Hearts, models.Ace)}
	g.players[0].Hand = []models.Card{
		models.NewCard(models.Hearts, models.Two),
		models.NewCard(models.Hearts, models.Three),
		models.NewCard(models.Hearts, models.Four),
		models.NewCard(models.Hearts, models.Five),
		models.NewCard(models.Hearts, models.Six),
	}

	for i, c := range append([]models.Card(nil), g.players[0].Hand...) {
		require.NoError(t, g.PlayCard(c, "a"))
		assert.LessOrEqual(t, len(g.PlayStack()), MaxPlayStack)
		assert.Equal(t, c, g.TopCard())
		if i >= 3 {
			assert.Equal(t, i-2, g.DeckSize())
		}
	}

	assert.Equal(t, []models.Card{
		models.NewCard(models.Hearts, models.Three),
		models.NewCard(models.Hearts, models.Four),
		models.NewCard(models.Hearts, models.Five),
		models.NewCard(models.Hearts, models.Six),
	}, g.PlayStack())
	assert.ElementsMatch(t, []models.Card{
		models.NewCard(models.Hearts, models.Ace),
		models.NewCard(models.Hearts, models.Two),
	}, g.deck.Cards())
}

func TestGame_DrawCard_RecyclesPile(t *testing.T) {
	top := models.NewCard(models.Clubs, models.King)
	under := models.NewCard(models.Clubs, models.Queen)
	g := &Game{
		deck:      models.NewDeckFrom(nil, newRNG(1)),
		rng:       newRNG(1),
		players:   []*models.Player{models.NewPlayer("a")},
		playStack: []models.Card{under, top},
	}

	drawn, err := g.DrawCard("a")
	require.NoError(t, err)
	require.NotNil(t, drawn)
	assert.Equal(t, under, *drawn)
	assert.Equal(t, []models.Card{top}, g.PlayStack())
	assert.Equal(t, 0, g.DeckSize())

	drawn, err = g.DrawCard("a")
	require.NoError(t, err)
	assert.Nil(t, drawn)
	hand, _ := g.Hand("a")
	assert.Equal(t, []models.Card{under}, hand)
}

func TestGame_DrawCard_UnknownPlayer(t *testing.T) {
	g, err := NewGame(51, []string{"a"}, newRNG(3))
	require.NoError(t, err)

	// the lookup comes first even when nothing is left to draw
	_, err = g.DrawCard("ghost")
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	drawn, err := g.DrawCard("a")
	require.NoError(t, err)
	assert.Nil(t, drawn)
}

func TestGame_RandomizedPlayKeepsInvariants(t *testing.T) {
	configs := []struct {
		handSize int
		players  []string
	}{
		{2, []string{"a", "b"}},
		{7, []string{"a", "b", "c"}},
		{25, []string{"a", "b"}},
		{51, []string{"solo"}},
		{12, []string{"a", "b", "c", "d"}},
	}

	for seed := int64(1); seed <= 10; seed++ {
		for _, cfg := range configs {
			rng := newRNG(seed)
			g, err := NewGame(cfg.handSize, cfg.players, newRNG(seed*31))
			require.NoError(t, err)
			assertClosedSystem(t, g.Snapshot())

			for step := 0; step < 200; step++ {
				name := cfg.players[rng.Intn(len(cfg.players))]

				if card, ok := playableCard(g, name); ok && rng.Intn(3) > 0 {
					require.NoError(t, g.PlayCard(card, name))
					assert.LessOrEqual(t, len(g.PlayStack()), MaxPlayStack)
				} else {
					expectNil := g.DeckSize() == 0 && len(g.PlayStack()) == 1
					drawn, err := g.DrawCard(name)
					require.NoError(t, err)
					assert.Equal(t, expectNil, drawn == nil)
				}
				assertClosedSystem(t, g.Snapshot())
			}
		}
	}
}

func TestGame_SnapshotIsDeepCopy(t *testing.T) {
	g, err := NewGame(3, []string{"a"}, newRNG(9))
	require.NoError(t, err)

	snap := g.Snapshot()
	snap.Players[0].Hand[0] = models.NewCard(models.Diamonds, models.Ace)
	snap.PlayStack[0] = models.NewCard(models.Diamonds, models.Ace)
	snap.Deck = nil

	assertClosedSystem(t, g.Snapshot())
}
