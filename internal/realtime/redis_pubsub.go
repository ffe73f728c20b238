package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "project:"
	publishTimeout = 5 * time.Second
	// Per-subscription buffer between the Redis reader and the hub.
	subscriptionBuffer = 256
)

// envelope wraps a project event on its Redis channel. Project is repeated inside the body so a
// subscriber can drop anything that lands on the wrong channel.
type envelope struct {
	Project uuid.UUID       `json:"project"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
	SentAt  time.Time       `json:"sent_at"`
}

// RedisPubSub carries project events between instances. It implements RedisPublisher and
// RedisSubscriber.
type RedisPubSub struct {
	client redis.UniversalClient
	logger *zap.Logger
}

func NewRedisPubSub(client redis.UniversalClient, logger *zap.Logger) *RedisPubSub {
	return &RedisPubSub{client: client, logger: logger}
}

// ProjectChannel returns the Redis channel carrying a project's events.
func ProjectChannel(projectID uuid.UUID) string {
	return channelPrefix + projectID.String()
}

// PublishProject sends one project event to every instance subscribed to the project.
func (r *RedisPubSub) PublishProject(projectID uuid.UUID, event string, payload []byte) error {
	body, err := json.Marshal(envelope{
		Project: projectID,
		Event:   event,
		Data:    payload,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode %s for project %s: %w", event, projectID, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, ProjectChannel(projectID), body).Err(); err != nil {
		return fmt.Errorf("publish %s for project %s: %w", event, projectID, err)
	}
	return nil
}

// SubscribeProject listens on the project's channel until the returned cancel is called.
// It returns once Redis has confirmed the subscription.
func (r *RedisPubSub) SubscribeProject(projectID uuid.UUID, handler func(event string, payload []byte)) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	sub := r.client.Subscribe(ctx, ProjectChannel(projectID))
	if _, err := sub.Receive(ctx); err != nil {
		cancel()
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe to project %s: %w", projectID, err)
	}

	go r.forward(ctx, projectID, sub, handler)
	return cancel, nil
}

func (r *RedisPubSub) forward(ctx context.Context, projectID uuid.UUID, sub *redis.PubSub, handler func(string, []byte)) {
	defer sub.Close()
	msgs := sub.Channel(redis.WithChannelSize(subscriptionBuffer))
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			env, err := decodeEnvelope(msg.Payload)
			if err != nil {
				r.logger.Warn("undecodable project event", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			if env.Project != projectID {
				r.logger.Warn("project event on foreign channel",
					zap.String("channel", msg.Channel),
					zap.String("project_id", env.Project.String()),
				)
				continue
			}
			handler(env.Event, env.Data)
		}
	}
}

func decodeEnvelope(raw string) (envelope, error) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return env, err
	}
	if env.Event == "" {
		return env, fmt.Errorf("missing event name")
	}
	return env, nil
}
