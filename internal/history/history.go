package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pants721/mao/internal/db"
	"github.com/pants721/mao/models"

	"go.uber.org/zap"
)

// LobbyEvent is one recorded lobby event.
type LobbyEvent struct {
	ID             uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	LobbyID        string    `gorm:"column:lobby_id;type:varchar(16);index:idx_lobby_seq,priority:1;not null" json:"lobby_id"`
	SequenceNumber int       `gorm:"column:sequence_number;index:idx_lobby_seq,priority:2;not null" json:"sequence_number"`
	LobbyVersion   uint64    `gorm:"column:lobby_version;not null" json:"lobby_version"`
	EventType      string    `gorm:"column:event_type;type:varchar(32);not null" json:"event_type"`
	Player         string    `gorm:"column:player;type:varchar(64)" json:"player,omitempty"`
	Metadata       string    `gorm:"column:metadata;type:text" json:"metadata"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (LobbyEvent) TableName() string {
	return "lobby_events"
}

// Recorder writes lobby events to the database with a per-lobby sequence.
// Events of one lobby reach it in the order they happened, so sequence
// numbers follow lobby versions.
type Recorder struct {
	db        *db.DB
	logger    *zap.Logger
	mu        sync.Mutex
	sequences map[string]int // lobby_id -> next sequence number
}

// NewRecorder migrates the lobby_events table and returns a recorder.
func NewRecorder(database *db.DB, logger *zap.Logger) (*Recorder, error) {
	if err := database.AutoMigrate(&LobbyEvent{}); err != nil {
		return nil, fmt.Errorf("failed to migrate lobby_events: %w", err)
	}
	return &Recorder{
		db:        database,
		logger:    logger.Named("history"),
		sequences: make(map[string]int),
	}, nil
}

// Record stores a single event.
func (r *Recorder) Record(event models.Event) error {
	metadata := "{}"
	if len(event.Data) > 0 {
		raw, err := json.Marshal(event.Data)
		if err != nil {
			r.logger.Warn("failed to marshal metadata", zap.String("event", string(event.Event)), zap.Error(err))
		} else {
			metadata = string(raw)
		}
	}

	row := LobbyEvent{
		LobbyID:        event.LobbyID,
		SequenceNumber: r.nextSequence(event.LobbyID),
		LobbyVersion:   event.Version,
		EventType:      string(event.Event),
		Player:         event.Player,
		Metadata:       metadata,
	}

	if err := r.db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to save %s for lobby %s: %w", event.Event, event.LobbyID, err)
	}
	return nil
}

func (r *Recorder) nextSequence(lobbyID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	seq := r.sequences[lobbyID]
	r.sequences[lobbyID] = seq + 1
	return seq
}

// Run records events until the channel closes or ctx is done. A failed write
// is logged and the loop carries on.
func (r *Recorder) Run(ctx context.Context, events <-chan models.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := r.Record(event); err != nil {
				r.logger.Error("failed to record event", zap.Error(err))
			}
		}
	}
}

// Events returns a lobby's recorded events in order.
func (r *Recorder) Events(ctx context.Context, lobbyID string) ([]LobbyEvent, error) {
	var events []LobbyEvent
	err := r.db.WithContext(ctx).
		Where("lobby_id = ?", lobbyID).
		Order("sequence_number ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load events for lobby %s: %w", lobbyID, err)
	}
	return events, nil
}
