package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeGameStateUpdated EventType = "game.state_updated"
	EventTypeQueueChanged     EventType = "queue.changed"
)

// Event represents a generic event structure
type Event struct {
	Type   EventType      `json:"type"`
	GameID string         `json:"game_id,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// Publisher is implemented by anything that can fan out game events.
type Publisher interface {
	PublishGameStateUpdated(ctx context.Context, gameID uuid.UUID, turn, applied, failed int) error
	PublishQueueChanged(ctx context.Context, gameID uuid.UUID, depth int) error
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

var _ Publisher = (*Broadcaster)(nil)

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// Channel is the pub/sub channel carrying one game's events.
func Channel(gameID uuid.UUID) string {
	return fmt.Sprintf("game-events:%s", gameID.String())
}

// PublishGameStateUpdated publishes a game.state_updated event after a
// confirmed batch.
func (b *Broadcaster) PublishGameStateUpdated(ctx context.Context, gameID uuid.UUID, turn, applied, failed int) error {
	event := Event{
		Type:   EventTypeGameStateUpdated,
		GameID: gameID.String(),
		Data: map[string]any{
			"turn":    turn,
			"applied": applied,
			"failed":  failed,
		},
	}
	return b.publishToGame(ctx, gameID, event)
}

// PublishQueueChanged publishes a queue.changed event
func (b *Broadcaster) PublishQueueChanged(ctx context.Context, gameID uuid.UUID, depth int) error {
	event := Event{
		Type:   EventTypeQueueChanged,
		GameID: gameID.String(),
		Data: map[string]any{
			"depth": depth,
		},
	}
	return b.publishToGame(ctx, gameID, event)
}

func (b *Broadcaster) publishToGame(ctx context.Context, gameID uuid.UUID, event Event) error {
	channel := Channel(gameID)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
	)

	return nil
}
