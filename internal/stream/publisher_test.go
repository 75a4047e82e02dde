package stream

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"smartinfra-data/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewTicketEvent(t *testing.T) {
	from := domain.TicketAssigned
	h := &domain.TicketStatusHistory{
		TicketID:   "t-1",
		FromStatus: &from,
		ToStatus:   domain.TicketInProgress,
		ChangedBy:  sql.NullString{Valid: true, String: "worker-7"},
		CreatedAt:  time.Unix(1700000000, 0),
	}

	ev := NewTicketEvent("TICKET-20260831-0001", h)
	assert.Equal(t, "t-1", ev.TicketID)
	assert.Equal(t, "TICKET-20260831-0001", ev.TicketNumber)
	require.NotNil(t, ev.FromStatus)
	assert.Equal(t, "ASSIGNED", *ev.FromStatus)
	assert.Equal(t, "IN_PROGRESS", ev.ToStatus)
	assert.Equal(t, "worker-7", ev.ChangedBy)
	assert.Equal(t, int64(1700000000), ev.OccurredAt)
}

func TestNewTicketEvent_InitialStatus(t *testing.T) {
	h := &domain.TicketStatusHistory{
		TicketID:  "t-1",
		ToStatus:  domain.TicketDetected,
		CreatedAt: time.Now(),
	}
	ev := NewTicketEvent("TICKET-20260831-0002", h)
	assert.Nil(t, ev.FromStatus)
}

func TestRedisPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	pub := NewRedisPublisher(client, "ticket-events", zap.NewNop())
	ctx := context.Background()

	ev := TicketEvent{
		TicketID:     "t-1",
		TicketNumber: "TICKET-20260831-0001",
		ToStatus:     "DETECTED",
		OccurredAt:   time.Now().Unix(),
	}
	require.NoError(t, pub.PublishTicketEvent(ctx, ev))

	msgs, err := client.XRange(ctx, "ticket-events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var got TicketEvent
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &got))
	assert.Equal(t, ev.TicketID, got.TicketID)
	assert.Equal(t, ev.ToStatus, got.ToStatus)
	assert.Nil(t, got.FromStatus)
}
