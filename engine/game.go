package engine

import (
	"fmt"
	"math/rand"

	"github.com/pants721/mao/models"
)

// MaxPlayStack is how many played cards stay on the pile. Older cards go back
// into the deck.
const MaxPlayStack = 4

// Game is one round: a deck, the play pile and every player's hand. Cards only
// move between those three places. A Game is not safe for concurrent use; its
// Lobby serializes access.
type Game struct {
	deck      *models.Deck
	playStack []models.Card
	players   []*models.Player
	rng       *rand.Rand
}

// NewGame shuffles a fresh deck, deals handSize cards to each player in order
// and turns one more card face up to start the pile.
func NewGame(handSize int, playerNames []string, rng *rand.Rand) (*Game, error) {
	if handSize < 1 {
		return nil, ErrInvalidHandSize
	}
	if len(playerNames) == 0 {
		return nil, ErrNoPlayers
	}
	if handSize*len(playerNames)+1 > models.DeckSize {
		return nil, fmt.Errorf("%w: %d players x %d cards", ErrInsufficientDeck, len(playerNames), handSize)
	}

	g := &Game{
		deck:    models.NewDeck(rng),
		players: make([]*models.Player, 0, len(playerNames)),
		rng:     rng,
	}

	for _, name := range playerNames {
		player := models.NewPlayer(name)
		for i := 0; i < handSize; i++ {
			card, err := g.deck.Pop()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInsufficientDeck, err)
			}
			player.Hand = append(player.Hand, card)
		}
		g.players = append(g.players, player)
	}

	first, err := g.deck.Pop()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsufficientDeck, err)
	}
	g.playStack = []models.Card{first}

	return g, nil
}

func (g *Game) TopCard() models.Card {
	return g.playStack[len(g.playStack)-1]
}

func (g *Game) ValidPlay(card models.Card) bool {
	return card.Stackable(g.TopCard())
}

func (g *Game) findPlayer(name string) *models.Player {
	for _, p := range g.players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// PlayCard moves card from the player's hand onto the pile. The state is left
// untouched when any check fails.
func (g *Game) PlayCard(card models.Card, playerName string) error {
	if !g.ValidPlay(card) {
		return fmt.Errorf("%w: %s on %s", ErrInvalidPlay, card.Name(), g.TopCard().Name())
	}

	player := g.findPlayer(playerName)
	if player == nil {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, playerName)
	}

	if !player.RemoveCard(card) {
		return fmt.Errorf("%w: %s does not hold %s", ErrCardNotInHand, playerName, card.Name())
	}
	g.playStack = append(g.playStack, card)

	// nobody needs to see further back than MaxPlayStack cards
	for len(g.playStack) > MaxPlayStack {
		bottom := g.playStack[0]
		g.playStack = append([]models.Card(nil), g.playStack[1:]...)
		g.deck.Push(bottom)
		g.deck.Shuffle()
	}

	return nil
}

// DrawCard gives the player the top card of the deck. When the deck is empty
// the pile below the top card is shuffled back in first. It returns nil
// without error when the top card of the pile is the only card left to draw.
func (g *Game) DrawCard(playerName string) (*models.Card, error) {
	player := g.findPlayer(playerName)
	if player == nil {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerName)
	}

	if g.deck.Len() == 0 && len(g.playStack) > 1 {
		g.recyclePile()
	}

	if g.deck.Len() == 0 {
		return nil, nil
	}

	card, err := g.deck.Pop()
	if err != nil {
		return nil, err
	}
	player.Hand = append(player.Hand, card)
	return &card, nil
}

// recyclePile moves everything but the top card of the pile into the deck.
func (g *Game) recyclePile() {
	top := g.TopCard()
	g.deck.Push(g.playStack[:len(g.playStack)-1]...)
	g.deck.Shuffle()
	g.playStack = []models.Card{top}
}

func (g *Game) DeckSize() int {
	return g.deck.Len()
}

func (g *Game) PlayStack() []models.Card {
	return append([]models.Card(nil), g.playStack...)
}

// Hand returns a copy of the named player's hand.
func (g *Game) Hand(playerName string) ([]models.Card, error) {
	player := g.findPlayer(playerName)
	if player == nil {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerName)
	}
	return append([]models.Card(nil), player.Hand...), nil
}

// Snapshot deep-copies the game.
func (g *Game) Snapshot() *models.GameState {
	players := make([]models.PlayerState, len(g.players))
	for i, p := range g.players {
		players[i] = models.PlayerState{
			Name: p.Name,
			Hand: append([]models.Card{}, p.Hand...),
		}
	}
	return &models.GameState{
		Deck:      g.deck.Cards(),
		PlayStack: append([]models.Card{}, g.playStack...),
		Players:   players,
	}
}
