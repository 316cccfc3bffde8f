package engine

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pants721/mao/models"
)

// MaxPlayerNameLength bounds player names in runes.
const MaxPlayerNameLength = 32

// ValidatePlayerName checks a name before it becomes a lobby identity.
func ValidatePlayerName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPlayerName)
	}
	if utf8.RuneCountInString(name) > MaxPlayerNameLength {
		return fmt.Errorf("%w: name must be <= %d characters", ErrInvalidPlayerName, MaxPlayerNameLength)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: name contains control characters", ErrInvalidPlayerName)
		}
	}
	return nil
}

// ValidateHandSize checks that a lobby's first player could be dealt in.
func ValidateHandSize(handSize int) error {
	if handSize < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidHandSize, handSize)
	}
	if handSize+1 > models.DeckSize {
		return fmt.Errorf("%w: hand size %d leaves no card for the pile", ErrInsufficientDeck, handSize)
	}
	return nil
}
