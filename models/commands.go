package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformedRequest is returned for payloads that do not decode to exactly one request.
	ErrMalformedRequest = errors.New("malformed request")
	// ErrUnsupportedMessage is returned for non-text frames.
	ErrUnsupportedMessage = errors.New("non-text messages not supported")
)

type RequestKind string

const (
	KindCreateLobby RequestKind = "CreateLobby"
	KindJoinLobby   RequestKind = "JoinLobby"
	KindStartGame   RequestKind = "StartGame"
	KindPlayCard    RequestKind = "PlayCard"
	KindDrawCard    RequestKind = "DrawCard"
)

// Request is the closed set of client requests. Only the types in this file
// implement it.
type Request interface {
	Kind() RequestKind
	isRequest()
}

type CreateLobby struct {
	PlayerName string `json:"player_name"`
	HandSize   int    `json:"hand_size"`
}

type JoinLobby struct {
	LobbyID    string `json:"lobby_id"`
	PlayerName string `json:"player_name"`
}

type StartGame struct {
	LobbyID string `json:"lobby_id"`
}

type PlayCard struct {
	PlayerID string `json:"player_id"`
	LobbyID  string `json:"lobby_id"`
	Card     Card   `json:"card"`
}

type DrawCard struct {
	PlayerID string `json:"player_id"`
	LobbyID  string `json:"lobby_id"`
}

func (CreateLobby) Kind() RequestKind { return KindCreateLobby }
func (JoinLobby) Kind() RequestKind   { return KindJoinLobby }
func (StartGame) Kind() RequestKind   { return KindStartGame }
func (PlayCard) Kind() RequestKind    { return KindPlayCard }
func (DrawCard) Kind() RequestKind    { return KindDrawCard }

func (CreateLobby) isRequest() {}
func (JoinLobby) isRequest()   {}
func (StartGame) isRequest()   {}
func (PlayCard) isRequest()    {}
func (DrawCard) isRequest()    {}

// envelope is the externally tagged wire form: {"PlayCard": {...}}.
type envelope struct {
	CreateLobby *CreateLobby `json:"CreateLobby,omitempty"`
	JoinLobby   *JoinLobby   `json:"JoinLobby,omitempty"`
	StartGame   *StartGame   `json:"StartGame,omitempty"`
	PlayCard    *PlayCard    `json:"PlayCard,omitempty"`
	DrawCard    *DrawCard    `json:"DrawCard,omitempty"`
}

// DecodeRequest parses one client message.
func DecodeRequest(data []byte) (Request, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}

	var found []Request
	if env.CreateLobby != nil {
		found = append(found, *env.CreateLobby)
	}
	if env.JoinLobby != nil {
		found = append(found, *env.JoinLobby)
	}
	if env.StartGame != nil {
		found = append(found, *env.StartGame)
	}
	if env.PlayCard != nil {
		found = append(found, *env.PlayCard)
	}
	if env.DrawCard != nil {
		found = append(found, *env.DrawCard)
	}

	if len(found) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one request kind, got %d", ErrMalformedRequest, len(found))
	}
	return found[0], nil
}

// EncodeRequest produces the wire form of req.
func EncodeRequest(req Request) ([]byte, error) {
	var env envelope
	switch r := req.(type) {
	case CreateLobby:
		env.CreateLobby = &r
	case JoinLobby:
		env.JoinLobby = &r
	case StartGame:
		env.StartGame = &r
	case PlayCard:
		env.PlayCard = &r
	case DrawCard:
		env.DrawCard = &r
	default:
		return nil, fmt.Errorf("unknown request type %T", req)
	}
	return json.Marshal(env)
}

type ErrorKind string

const (
	ErrKindInvalidPlay         ErrorKind = "InvalidPlay"
	ErrKindPlayerNotFound      ErrorKind = "PlayerNotFound"
	ErrKindLobbyNotFound       ErrorKind = "LobbyNotFound"
	ErrKindLobbyAlreadyStarted ErrorKind = "LobbyAlreadyStarted"
	ErrKindInsufficientDeck    ErrorKind = "InsufficientDeck"
	ErrKindInvalidHandSize     ErrorKind = "InvalidHandSize"
	ErrKindInvalidPlayerName   ErrorKind = "InvalidPlayerName"
	ErrKindPlayerNameTaken     ErrorKind = "PlayerNameTaken"
	ErrKindGameNotStarted      ErrorKind = "GameNotStarted"
	ErrKindCardNotInHand       ErrorKind = "CardNotInHand"
	ErrKindRateLimited         ErrorKind = "RateLimited"
	ErrKindMalformedRequest    ErrorKind = "MalformedRequest"
	ErrKindUnsupportedMessage  ErrorKind = "UnsupportedMessage"
	ErrKindInternal            ErrorKind = "Internal"
)

type ErrorBody struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

type DrawResult struct {
	// Card is nil when there was nothing left to draw.
	Card *Card `json:"card"`
}

type Response struct {
	GameState *GameView   `json:"game_state"`
	Lobby     *LobbyView  `json:"lobby,omitempty"`
	Draw      *DrawResult `json:"draw,omitempty"`
	Error     *ErrorBody  `json:"error,omitempty"`
}

type EventType string

const (
	EventLobbyCreated  EventType = "lobbyCreated"
	EventPlayerJoined  EventType = "playerJoined"
	EventGameStarted   EventType = "gameStarted"
	EventCardPlayed    EventType = "cardPlayed"
	EventCardDrawn     EventType = "cardDrawn"
	EventDeckExhausted EventType = "deckExhausted"
)

// Event reports one lobby change. Version is the lobby version the change
// produced.
type Event struct {
	Event   EventType              `json:"event"`
	LobbyID string                 `json:"lobbyId"`
	Version uint64                 `json:"version"`
	Player  string                 `json:"player,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
