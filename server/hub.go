package server

import (
	"encoding/json"
	"sync"

	"github.com/pants721/mao/models"
	"go.uber.org/zap"
)

type member struct {
	player string
	// version is the newest lobby version queued for this member.
	version uint64
}

// room holds the subscribers of one lobby. Deliveries to a room are made
// under its lock and never go backwards in lobby version, so a member's last
// message is always the newest state it has been sent.
type room struct {
	mu      sync.Mutex
	members map[*Client]*member
}

// Hub routes lobby updates to the connections subscribed to each lobby. The
// hub lock is taken before a room lock, never the other way round, and
// neither is held while a lobby lock is taken or a frame is written.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]*room
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]*room),
		logger: logger.Named("hub"),
	}
}

func (h *Hub) room(lobbyID string) *room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[lobbyID]
}

// Subscribe binds client to lobbyID as playerName. A later subscription to
// the same lobby rebinds the name.
func (h *Hub) Subscribe(lobbyID string, client *Client, playerName string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[lobbyID]
	if !ok {
		r = &room{members: make(map[*Client]*member)}
		h.rooms[lobbyID] = r
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.members[client]; ok {
		m.player = playerName
		return
	}
	r.members[client] = &member{player: playerName}
}

// UnsubscribeAll drops every subscription held by client.
func (h *Hub) UnsubscribeAll(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for lobbyID, r := range h.rooms {
		r.mu.Lock()
		delete(r.members, client)
		empty := len(r.members) == 0
		r.mu.Unlock()
		if empty {
			delete(h.rooms, lobbyID)
		}
	}
}

// PlayerFor returns the player name client is bound to in lobbyID.
func (h *Hub) PlayerFor(lobbyID string, client *Client) (string, bool) {
	r := h.room(lobbyID)
	if r == nil {
		return "", false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[client]
	if !ok {
		return "", false
	}
	return m.player, true
}

func (h *Hub) Subscribers(lobbyID string) int {
	r := h.room(lobbyID)
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Reply sends client the result of its own request. The state is rendered
// for the player the connection is bound to in the lobby, whatever player the
// request named; an unbound connection sees no hands. The drawn card is only
// shown when the bound player is the one who drew it.
func (h *Hub) Reply(state models.LobbyState, client *Client, actor string, draw *models.DrawResult) {
	viewer := ""
	if r := h.room(state.ID); r != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		if m, ok := r.members[client]; ok {
			viewer = m.player
			if state.Version > m.version {
				m.version = state.Version
			}
		}
	}

	if draw != nil && (viewer == "" || viewer != actor) {
		draw = nil
	}
	client.SendJSON(Render(state, viewer, draw))
}

// Broadcast sends state to every subscriber of the lobby except sender, each
// rendered for its own player. A subscriber already sent this version or a
// newer one is skipped. Delivery is best effort.
func (h *Hub) Broadcast(state models.LobbyState, sender *Client) {
	r := h.room(state.ID)
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for client, m := range r.members {
		if state.Version <= m.version {
			continue
		}
		m.version = state.Version
		if client == sender {
			continue
		}
		h.deliver(client, m.player, state)
	}
}

// Sync sends client the state if it is newer than anything already queued
// for it in that lobby.
func (h *Hub) Sync(state models.LobbyState, client *Client) {
	r := h.room(state.ID)
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[client]
	if !ok || state.Version <= m.version {
		return
	}
	m.version = state.Version
	h.deliver(client, m.player, state)
}

// deliver must be called with the room lock held.
func (h *Hub) deliver(client *Client, player string, state models.LobbyState) {
	data, err := json.Marshal(Render(state, player, nil))
	if err != nil {
		h.logger.Error("failed to marshal broadcast", zap.String("lobby_id", state.ID), zap.Error(err))
		return
	}
	if !client.Enqueue(data) {
		h.logger.Warn("broadcast dropped",
			zap.String("lobby_id", state.ID),
			zap.String("client_id", client.ID),
			zap.String("player", player),
			zap.Uint64("version", state.Version))
	}
}
