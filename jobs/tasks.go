// Package jobs defines the asynq task types and the worker that processes
// them. Collaborator services enqueue an invalidation task whenever they
// mutate a user's roles, business access or direct permissions.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuthzInvalidate purges every cached authorization context for a
	// user.
	TaskAuthzInvalidate = "authz:invalidate"
)

// InvalidatePayload identifies the user whose cached contexts must go.
type InvalidatePayload struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason,omitempty"`
}

// NewInvalidateTask constructs an Asynq task for the payload.
func NewInvalidateTask(payload InvalidatePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuthzInvalidate, data), nil
}

// CacheInvalidator is the slice of the resolver the worker needs.
type CacheInvalidator interface {
	InvalidateUser(ctx context.Context, userID string) int
}

// NewInvalidateHandler builds the handler processing TaskAuthzInvalidate.
// A payload without a user identity is dropped, not retried.
func NewInvalidateHandler(invalidator CacheInvalidator, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload InvalidatePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.UserID == "" {
			return asynq.SkipRetry
		}
		deleted := invalidator.InvalidateUser(ctx, payload.UserID)
		if logger != nil {
			logger.Info("processed cache invalidation task",
				slog.String("user_id", payload.UserID),
				slog.String("reason", payload.Reason),
				slog.Int("entries", deleted))
		}
		return nil
	}
}
