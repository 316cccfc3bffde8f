package models

import (
	"encoding/json"
	"fmt"
	"math/rand"
)

type Suit string
type Rank string

const (
	Hearts   Suit = "Hearts"
	Spades   Suit = "Spades"
	Clubs    Suit = "Clubs"
	Diamonds Suit = "Diamonds"
)

const (
	Ace   Rank = "Ace"
	Two   Rank = "Two"
	Three Rank = "Three"
	Four  Rank = "Four"
	Five  Rank = "Five"
	Six   Rank = "Six"
	Seven Rank = "Seven"
	Eight Rank = "Eight"
	Nine  Rank = "Nine"
	Ten   Rank = "Ten"
	Jack  Rank = "Jack"
	Queen Rank = "Queen"
	King  Rank = "King"
)

// DeckSize is the number of cards in a standard deck.
const DeckSize = 52

var (
	suits = []Suit{Hearts, Spades, Clubs, Diamonds}
	ranks = []Rank{Ace, Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King}
)

func (s Suit) Valid() bool {
	for _, v := range suits {
		if v == s {
			return true
		}
	}
	return false
}

func (s *Suit) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if !Suit(raw).Valid() {
		return fmt.Errorf("unknown suit %q", raw)
	}
	*s = Suit(raw)
	return nil
}

func (r Rank) Valid() bool {
	for _, v := range ranks {
		if v == r {
			return true
		}
	}
	return false
}

func (r *Rank) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if !Rank(raw).Valid() {
		return fmt.Errorf("unknown rank %q", raw)
	}
	*r = Rank(raw)
	return nil
}

type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

func NewCard(suit Suit, rank Rank) Card {
	return Card{Suit: suit, Rank: rank}
}

// Name renders the card the way players say it, e.g. "Ace of Hearts".
func (c Card) Name() string {
	return fmt.Sprintf("%s of %s", c.Rank, c.Suit)
}

func (c Card) String() string {
	return c.Name()
}

// Stackable reports whether c may be played on top of other.
func (c Card) Stackable(other Card) bool {
	return c.Suit == other.Suit || c.Rank == other.Rank
}

// StandardDeck returns the 52 cards in canonical order: suit-major, rank-minor.
func StandardDeck() []Card {
	cards := make([]Card, 0, DeckSize)
	for _, suit := range suits {
		for _, rank := range ranks {
			cards = append(cards, Card{Suit: suit, Rank: rank})
		}
	}
	return cards
}

// Deck is a stack of cards whose top is the end of the slice.
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// NewDeck returns a shuffled standard deck.
func NewDeck(rng *rand.Rand) *Deck {
	deck := &Deck{
		cards: StandardDeck(),
		rng:   rng,
	}
	deck.Shuffle()
	return deck
}

// NewDeckFrom wraps cards as a deck without shuffling them.
func NewDeckFrom(cards []Card, rng *rand.Rand) *Deck {
	return &Deck{
		cards: append([]Card(nil), cards...),
		rng:   rng,
	}
}

func (d *Deck) Shuffle() {
	d.rng.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}

// Pop removes and returns the top card.
func (d *Deck) Pop() (Card, error) {
	if len(d.cards) == 0 {
		return Card{}, fmt.Errorf("deck is empty - no more cards to deal")
	}
	card := d.cards[len(d.cards)-1]
	d.cards = d.cards[:len(d.cards)-1]
	return card, nil
}

// Push places cards on top of the deck. Callers reshuffle as needed.
func (d *Deck) Push(cards ...Card) {
	d.cards = append(d.cards, cards...)
}

func (d *Deck) Len() int {
	return len(d.cards)
}

// Cards returns a copy of the deck, bottom first.
func (d *Deck) Cards() []Card {
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out
}
