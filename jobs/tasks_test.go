package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	userIDs []string
}

func (r *recordingInvalidator) InvalidateUser(ctx context.Context, userID string) int {
	r.userIDs = append(r.userIDs, userID)
	return 2
}

func TestInvalidateHandlerPurgesUser(t *testing.T) {
	inv := &recordingInvalidator{}
	handler := NewInvalidateHandler(inv, slog.New(slog.NewTextHandler(io.Discard, nil)))

	task, err := NewInvalidateTask(InvalidatePayload{UserID: "u1", Reason: "role change"})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), task))
	assert.Equal(t, []string{"u1"}, inv.userIDs)
}

func TestInvalidateHandlerDropsBadPayloads(t *testing.T) {
	inv := &recordingInvalidator{}
	handler := NewInvalidateHandler(inv, nil)

	err := handler(context.Background(), asynq.NewTask(TaskAuthzInvalidate, []byte("{broken")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	err = handler(context.Background(), asynq.NewTask(TaskAuthzInvalidate, []byte(`{"user_id":""}`)))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	assert.Empty(t, inv.userIDs)
}
