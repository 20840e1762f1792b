// Package announce consumes operator announcements from a Redis pub/sub
// channel and relays each one into its target room as a chat event from the
// reserved sender "server".
package announce

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"chat-relay/internal/protocol"
	"chat-relay/internal/room"
)

const serverSender = "server"

type Subscriber struct {
	logger      *slog.Logger
	client      *redis.Client
	topic       string
	broadcaster *room.Broadcaster
}

func NewSubscriber(logger *slog.Logger, client *redis.Client, topic string, broadcaster *room.Broadcaster) *Subscriber {
	return &Subscriber{
		logger:      logger,
		client:      client,
		topic:       topic,
		broadcaster: broadcaster,
	}
}

func (s *Subscriber) Start(ctx context.Context) error {
	s.logger.Info("Redis subscriber is running", "topic", s.topic)
	pubsub := s.client.Subscribe(ctx, s.topic)
	defer func() {
		if err := pubsub.Close(); err != nil {
			s.logger.Warn("failed to close pubsub", "error", err)
		}
	}()

	msgCh := pubsub.Channel()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				s.logger.Warn("pubsub channel closed by Redis")
				return nil
			}
			if err := s.handleMessage(msg.Payload); err != nil {
				s.logger.Error("error handling announcement", "error", err)
			}
		case <-ctx.Done():
			s.logger.Info("shutting down Redis subscriber")
			return nil
		}
	}
}

func (s *Subscriber) handleMessage(payload string) error {
	var a Announcement
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return fmt.Errorf("unmarshalling announcement: %w", err)
	}
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid announcement: %w", err)
	}

	data, err := protocol.EncodeChatDeliver(serverSender, a.Message)
	if err != nil {
		return fmt.Errorf("encoding announcement: %w", err)
	}

	// A room with no members is simply an empty audience, not an error.
	sent := s.broadcaster.Broadcast(a.RoomID, data, nil)
	s.logger.Info("announcement relayed", "roomId", a.RoomID, "recipients", sent)
	return nil
}
