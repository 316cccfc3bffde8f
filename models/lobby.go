package models

// PlayerState is a point-in-time copy of one player's hand.
type PlayerState struct {
	Name string `json:"name"`
	Hand []Card `json:"hand"`
}

// GameState is a point-in-time copy of a running game. The last card of
// PlayStack is the top of the pile; the last card of Deck is the next draw.
type GameState struct {
	Deck      []Card        `json:"deck"`
	PlayStack []Card        `json:"play_stack"`
	Players   []PlayerState `json:"players"`
}

func (g *GameState) TopCard() *Card {
	if g == nil || len(g.PlayStack) == 0 {
		return nil
	}
	top := g.PlayStack[len(g.PlayStack)-1]
	return &top
}

func (g *GameState) Player(name string) (PlayerState, bool) {
	if g == nil {
		return PlayerState{}, false
	}
	for _, p := range g.Players {
		if p.Name == name {
			return p, true
		}
	}
	return PlayerState{}, false
}

// CardCount returns how many cards the game accounts for across deck, pile and hands.
func (g *GameState) CardCount() int {
	n := len(g.Deck) + len(g.PlayStack)
	for _, p := range g.Players {
		n += len(p.Hand)
	}
	return n
}

// LobbyState is a snapshot of a lobby taken while holding its lock. Version
// grows by one with every change to the lobby, so a later snapshot always
// carries a larger version.
type LobbyState struct {
	ID       string     `json:"id"`
	Version  uint64     `json:"version"`
	HandSize int        `json:"hand_size"`
	Players  []string   `json:"players"`
	Game     *GameState `json:"game,omitempty"`
}

func (s LobbyState) Started() bool {
	return s.Game != nil
}

// LobbyView is the public part of a lobby sent to every client.
type LobbyView struct {
	ID       string   `json:"id"`
	Version  uint64   `json:"version"`
	HandSize int      `json:"hand_size"`
	Players  []string `json:"players"`
	Started  bool     `json:"started"`
}

type PlayerView struct {
	Name     string `json:"name"`
	HandSize int    `json:"hand_size"`
	Hand     []Card `json:"hand,omitempty"`
}

// GameView is a game as seen by one player: only the viewer's hand is
// revealed and the deck is reduced to its size.
type GameView struct {
	DeckSize  int          `json:"deck_size"`
	TopCard   *Card        `json:"top_card"`
	PlayStack []Card       `json:"play_stack"`
	Players   []PlayerView `json:"players"`
}

func (s LobbyState) View() LobbyView {
	players := make([]string, len(s.Players))
	copy(players, s.Players)
	return LobbyView{
		ID:       s.ID,
		Version:  s.Version,
		HandSize: s.HandSize,
		Players:  players,
		Started:  s.Started(),
	}
}

// GameView renders the game for viewer. An empty viewer sees no hands.
func (s LobbyState) GameView(viewer string) *GameView {
	if s.Game == nil {
		return nil
	}

	players := make([]PlayerView, 0, len(s.Game.Players))
	for _, p := range s.Game.Players {
		pv := PlayerView{Name: p.Name, HandSize: len(p.Hand)}
		if viewer != "" && p.Name == viewer {
			pv.Hand = append([]Card{}, p.Hand...)
		}
		players = append(players, pv)
	}

	return &GameView{
		DeckSize:  len(s.Game.Deck),
		TopCard:   s.Game.TopCard(),
		PlayStack: append([]Card{}, s.Game.PlayStack...),
		Players:   players,
	}
}
