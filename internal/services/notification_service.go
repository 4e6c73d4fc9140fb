package services

import (
	"context"
	"fmt"
	"log/slog"

	pubnub "github.com/pubnub/go"
	"github.com/redis/go-redis/v9"

	"hive-backend/monitoring"
)

// maxMessagePreview caps the notification body built from a chat message.
const maxMessagePreview = 100

// NotificationService fans out push notifications over PubNub. Each user
// owns a registry of device tokens (a Redis hash tokenID -> channel);
// a publish failure prunes the offending token.
type NotificationService struct {
	Redis  *redis.Client
	PubNub *pubnub.PubNub

	publish func(channel string, message map[string]any) error
}

func NewNotificationService(redisClient *redis.Client, pn *pubnub.PubNub) *NotificationService {
	s := &NotificationService{
		Redis:  redisClient,
		PubNub: pn,
	}
	s.publish = s.publishPubNub
	return s
}

func tokensKey(userID string) string {
	return fmt.Sprintf("user:tokens:%s", userID)
}

// RegisterToken stores a device channel token for a user.
func (s *NotificationService) RegisterToken(ctx context.Context, userID, tokenID, channel string) error {
	if userID == "" || tokenID == "" || channel == "" {
		return fmt.Errorf("notification: user id, token id and channel are required")
	}
	return s.Redis.HSet(ctx, tokensKey(userID), tokenID, channel).Err()
}

// UnregisterToken drops a device token from the user's registry.
func (s *NotificationService) UnregisterToken(ctx context.Context, userID, tokenID string) error {
	return s.Redis.HDel(ctx, tokensKey(userID), tokenID).Err()
}

// NotifyUser publishes a notification to every device channel the user
// has registered. Tokens whose channel rejects the publish are removed.
func (s *NotificationService) NotifyUser(ctx context.Context, userID, title, body string, data map[string]string) error {
	tokens, err := s.Redis.HGetAll(ctx, tokensKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("notification: load tokens: %w", err)
	}

	if len(tokens) == 0 {
		slog.Warn("User has no device tokens registered", "userID", userID)
		return nil
	}

	message := map[string]any{
		"type":  "notification",
		"title": title,
		"body":  body,
	}
	for k, v := range data {
		message[k] = v
	}

	var successCount, failureCount int
	for tokenID, channel := range tokens {
		if err := s.publish(channel, message); err != nil {
			failureCount++
			monitoring.TrackNotification("failure")
			slog.Warn("Removing invalid device token",
				"userID", userID,
				"tokenID", tokenID,
				"error", err,
			)
			if delErr := s.Redis.HDel(ctx, tokensKey(userID), tokenID).Err(); delErr != nil {
				slog.Error("Failed to prune device token", "userID", userID, "tokenID", tokenID, "error", delErr)
			}
			continue
		}
		successCount++
		monitoring.TrackNotification("success")
	}

	slog.Info("Notification sent", "userID", userID, "success", successCount, "failure", failureCount)
	return nil
}

// NotifyNewMessage notifies the receiver of a freshly created chat
// message. Self-sends are skipped and the body is truncated.
func (s *NotificationService) NotifyNewMessage(ctx context.Context, messageID, senderID, receiverID, senderName, text string) error {
	if receiverID == "" || receiverID == senderID {
		return nil
	}

	title := senderName
	if title == "" {
		title = "New message"
	}

	body := text
	if runes := []rune(body); len(runes) > maxMessagePreview {
		body = string(runes[:maxMessagePreview-3]) + "..."
	}

	return s.NotifyUser(ctx, receiverID, title, body, map[string]string{
		"type":       "message",
		"message_id": messageID,
		"sender_id":  senderID,
	})
}

func (s *NotificationService) publishPubNub(channel string, message map[string]any) error {
	_, _, err := s.PubNub.Publish().
		Channel(channel).
		Message(message).
		Execute()
	return err
}
