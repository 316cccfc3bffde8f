package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/pants721/mao/engine"
	"github.com/pants721/mao/models"
)

// Result is the outcome of one successful request.
type Result struct {
	State models.LobbyState
	// Player is the player the request acted as; empty for StartGame.
	Player string
	// Subscribe is set when the requester became a lobby member.
	Subscribe bool
	Draw      *models.DrawResult
}

type CommandHandler struct {
	manager *engine.LobbyManager
}

func NewCommandHandler(manager *engine.LobbyManager) *CommandHandler {
	return &CommandHandler{manager: manager}
}

// Handle runs one request against the registry.
func (h *CommandHandler) Handle(ctx context.Context, req models.Request) (Result, error) {
	switch r := req.(type) {
	case models.CreateLobby:
		return h.handleCreateLobby(ctx, r)
	case models.JoinLobby:
		return h.handleJoinLobby(r)
	case models.StartGame:
		return h.handleStartGame(r)
	case models.PlayCard:
		return h.handlePlayCard(r)
	case models.DrawCard:
		return h.handleDrawCard(r)
	default:
		return Result{}, fmt.Errorf("unhandled request type %T", req)
	}
}

func (h *CommandHandler) handleCreateLobby(ctx context.Context, r models.CreateLobby) (Result, error) {
	state, err := h.manager.CreateLobby(ctx, r.PlayerName, r.HandSize)
	if err != nil {
		return Result{}, err
	}
	return Result{State: state, Player: r.PlayerName, Subscribe: true}, nil
}

func (h *CommandHandler) handleJoinLobby(r models.JoinLobby) (Result, error) {
	state, err := h.manager.JoinLobby(r.LobbyID, r.PlayerName)
	if err != nil {
		return Result{}, err
	}
	return Result{State: state, Player: r.PlayerName, Subscribe: true}, nil
}

func (h *CommandHandler) handleStartGame(r models.StartGame) (Result, error) {
	state, err := h.manager.StartGame(r.LobbyID)
	if err != nil {
		return Result{}, err
	}
	return Result{State: state}, nil
}

func (h *CommandHandler) handlePlayCard(r models.PlayCard) (Result, error) {
	state, err := h.manager.PlayCard(r.LobbyID, r.PlayerID, r.Card)
	if err != nil {
		return Result{}, err
	}
	return Result{State: state, Player: r.PlayerID}, nil
}

func (h *CommandHandler) handleDrawCard(r models.DrawCard) (Result, error) {
	card, state, err := h.manager.DrawCard(r.LobbyID, r.PlayerID)
	if err != nil {
		return Result{}, err
	}
	return Result{State: state, Player: r.PlayerID, Draw: &models.DrawResult{Card: card}}, nil
}

// Render builds the response for a recipient playing as viewer.
func Render(state models.LobbyState, viewer string, draw *models.DrawResult) models.Response {
	lobby := state.View()
	return models.Response{
		GameState: state.GameView(viewer),
		Lobby:     &lobby,
		Draw:      draw,
	}
}

// ErrorResponse maps err onto its wire kind.
func ErrorResponse(err error) models.Response {
	return models.Response{
		Error: &models.ErrorBody{Kind: classify(err), Message: err.Error()},
	}
}

var errorKinds = []struct {
	target error
	kind   models.ErrorKind
}{
	{engine.ErrInvalidPlay, models.ErrKindInvalidPlay},
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
}

func classify(err error) models.ErrorKind {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.kind
		}
	}
	return models.ErrKindInternal
}

// ErrRateLimited is reported when a connection sends requests too quickly.
var ErrRateLimited = errors.New("rate limit exceeded, slow down")
