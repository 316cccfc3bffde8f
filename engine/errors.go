package engine

import "errors"

// Engine errors
var (
	// Rule violations
	ErrInvalidPlay   = errors.New("card is not stackable on the top of the pile")
	ErrCardNotInHand = errors.New("player does not hold that card")

	// Lookup failures
	ErrPlayerNotFound = errors.New("player not found")
	ErrLobbyNotFound  = errors.New("lobby not found")

	// Lifecycle errors
	ErrLobbyAlreadyStarted = errors.New("lobby already started")
	ErrGameNotStarted      = errors.New("game not started")

	// Setup validation errors
	ErrInsufficientDeck  = errors.New("hand size times player count exceeds deck size")
	ErrInvalidHandSize   = errors.New("hand size must be positive")
	ErrInvalidPlayerName = errors.New("invalid player name")
	ErrPlayerNameTaken   = errors.New("player name already taken in lobby")
	ErrNoPlayers         = errors.New("game needs at least one player")
	ErrLobbyIDExhausted  = errors.New("could not mint a unique lobby id")
)
