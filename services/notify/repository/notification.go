package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/lapar/orderbell/internal/pkg/logger"
	"github.com/lapar/orderbell/internal/pkg/models"
)

const defaultHistoryLimit = 100

// NotificationRepo keeps per-scope notification history and read
// state in Redis. History is a capped list, newest first; read state
// is a set of notification ids.
type NotificationRepo struct {
	client       *redis.Client
	historyLimit int64
}

// NewNotificationRepo creates the Redis-backed notification store.
func NewNotificationRepo(client *redis.Client, historyLimit int64) *NotificationRepo {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &NotificationRepo{
		client:       client,
		historyLimit: historyLimit,
	}
}

func historyKey(scope string) string {
	return fmt.Sprintf("notifications:%s", scope)
}

func readKey(scope string) string {
	return fmt.Sprintf("notifications:%s:read", scope)
}

// Append stores a notification at the head of the scope's history and
// trims the list to the configured limit.
func (r *NotificationRepo) Append(ctx context.Context, scope string, n *models.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	key := historyKey(scope)
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, r.historyLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append notification: %w", err)
	}
	return nil
}

// List returns the scope's history, newest first, with the read flag
// resolved against the read set.
func (r *NotificationRepo) List(ctx context.Context, scope string) ([]models.Notification, error) {
	items, err := r.client.LRange(ctx, historyKey(scope), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read notification history: %w", err)
	}

	readIDs, err := r.client.SMembers(ctx, readKey(scope)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read read-state: %w", err)
	}
	read := make(map[string]bool, len(readIDs))
	for _, id := range readIDs {
		read[id] = true
	}

	notifications := make([]models.Notification, 0, len(items))
	for _, item := range items {
		var n models.Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			logger.Warn("Skipping undecodable stored notification",
				logger.String("scope", scope),
				logger.Err(err))
			continue
		}
		n.Read = read[n.ID]
		notifications = append(notifications, n)
	}
	return notifications, nil
}

// MarkRead records a notification id in the scope's read set.
func (r *NotificationRepo) MarkRead(ctx context.Context, scope, notificationID string) error {
	if err := r.client.SAdd(ctx, readKey(scope), notificationID).Err(); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}
