package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/entity"
	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/pkg/messaging"
)

func TestRedisSnapshotPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := messaging.NewRedisClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := client.Subscribe(ctx, "reconciler.events")
	require.NoError(t, err)

	publisher := NewRedisSnapshotPublisher(client, "reconciler.events")
	require.NoError(t, publisher.PublishSnapshot(ctx, testSnapshot().Summary()))

	select {
	case msg := <-messages:
		var event SnapshotCompletedEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, "reconciliation.completed", event.Event)
		assert.Equal(t, 2, event.Summary.ProfileCount)
		assert.Equal(t, 1, event.Summary.CohortSizes["legacy_member"])
	case <-time.After(2 * time.Second):
		t.Fatal("event not received")
	}
}

type recordingPublisher struct {
	calls int
	err   error
}

func (p *recordingPublisher) PublishSnapshot(context.Context, entity.SnapshotSummary) error {
	p.calls++
	return p.err
}

func TestFanoutSnapshotPublisher(t *testing.T) {
	ok := &recordingPublisher{}
	failing := &recordingPublisher{err: assert.AnError}
	last := &recordingPublisher{}

	publisher := NewFanoutSnapshotPublisher(ok, nil, failing, last)
	err := publisher.PublishSnapshot(context.Background(), testSnapshot().Summary())

	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, last.calls, "a failing publisher does not stop the others")

	assert.NoError(t, NewFanoutSnapshotPublisher().PublishSnapshot(context.Background(), entity.SnapshotSummary{}))
}
