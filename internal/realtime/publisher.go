// Package realtime publishes generation progress on Redis Pub/Sub. Clients
// follow a single job on generation:{job_id} or everything for a user on
// user:{user_id}.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"wedding-ai-backend/internal/models"
)

// Message is the envelope published on every channel.
type Message struct {
	Event     string                 `json:"event"`
	JobID     string                 `json:"job_id"`
	Status    string                 `json:"status"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

type Publisher struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client, now: time.Now}
}

func JobChannel(jobID string) string {
	return fmt.Sprintf("generation:%s", jobID)
}

func UserChannel(userID string) string {
	return fmt.Sprintf("user:%s", userID)
}

func (p *Publisher) PublishEvent(ctx context.Context, channel string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// PublishJobEvent sends the event to the job channel and, for owned jobs, to
// the owner's channel.
func (p *Publisher) PublishJobEvent(ctx context.Context, job *models.GenerationJob, event string, payload map[string]interface{}) error {
	msg := Message{
		Event:     event,
		JobID:     job.ID,
		Status:    string(job.Status),
		Payload:   payload,
		Timestamp: p.now().UTC().Format(time.RFC3339),
	}

	if err := p.PublishEvent(ctx, JobChannel(job.ID), msg); err != nil {
		return err
	}
	if job.UserID.Valid {
		return p.PublishEvent(ctx, UserChannel(job.UserID.String), msg)
	}
	return nil
}
