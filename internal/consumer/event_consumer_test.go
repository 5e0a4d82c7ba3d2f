package consumer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	rediscommon "github.com/Gstman420/emergency-response-backend/common/redis"
	"github.com/Gstman420/emergency-response-backend/internal/models"
	"github.com/Gstman420/emergency-response-backend/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testEmergencyStream = "arbiter:emergencies:created"
	testDecisionStream  = "arbiter:context-responses:created"
	testGroup           = "emergency-arbiter-group"
)

type fakeHandler struct {
	mu          sync.Mutex
	emergencies []models.EmergencyCreated
	decisions   []models.HumanDecisionCreated
	err         error
}

func (h *fakeHandler) HandleEmergencyCreated(_ context.Context, evt models.EmergencyCreated) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.emergencies = append(h.emergencies, evt)
	return h.err
}

func (h *fakeHandler) HandleHumanDecision(_ context.Context, evt models.HumanDecisionCreated) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.decisions = append(h.decisions, evt)
	return h.err
}

func setupConsumer(t *testing.T, name string, handler Handler, client *redis.Client) *EventConsumer {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, rediscommon.CreateConsumerGroup(ctx, client, testEmergencyStream, testGroup))
	require.NoError(t, rediscommon.CreateConsumerGroup(ctx, client, testDecisionStream, testGroup))

	return NewEventConsumer(Config{
		EmergencyStream: testEmergencyStream,
		DecisionStream:  testDecisionStream,
		ConsumerGroup:   testGroup,
		ConsumerName:    name,
		BatchSize:       10,
		Workers:         4,
		Block:           -1,
	}, client, handler, zap.NewNop())
}

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func pendingCount(t *testing.T, client *redis.Client, stream string) int64 {
	t.Helper()
	p, err := client.XPending(context.Background(), stream, testGroup).Result()
	require.NoError(t, err)
	return p.Count
}

func publishEmergency(t *testing.T, client *redis.Client, id string) {
	t.Helper()
	_, err := rediscommon.PublishJSONToStream(context.Background(), client, testEmergencyStream, models.EventEmergencyCreated,
		models.EmergencyCreated{
			EmergencyID: id,
			Record:      models.Emergency{EmergencyID: id, Type: "fire", Severity: 8, RequiredResource: "ambulance", Status: "open"},
		})
	require.NoError(t, err)
}

func TestConsumeOnce_DispatchesAndAcks(t *testing.T) {
	client := setupRedis(t)
	handler := &fakeHandler{}
	c := setupConsumer(t, "c1", handler, client)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		publishEmergency(t, client, fmt.Sprintf("E%d", i))
	}
	_, err := rediscommon.PublishJSONToStream(ctx, client, testDecisionStream, models.EventHumanDecisionCreated,
		models.HumanDecisionCreated{ResponseID: "resp-1", ChosenEmergencyID: "E3"})
	require.NoError(t, err)

	require.NoError(t, c.ConsumeOnce(ctx))

	assert.Len(t, handler.emergencies, 5)
	require.Len(t, handler.decisions, 1)
	assert.Equal(t, "E3", handler.decisions[0].ChosenEmergencyID)
	assert.Equal(t, int64(0), pendingCount(t, client, testEmergencyStream))
	assert.Equal(t, int64(0), pendingCount(t, client, testDecisionStream))

	snapshot := c.Metrics().GetSnapshot()
	assert.Equal(t, int64(6), snapshot.MessagesProcessed)
	assert.Equal(t, int64(6), snapshot.MessagesSucceeded)
}

func TestConsumeOnce_TransientErrorLeavesMessagePending(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "commit failed after retries", err: fmt.Errorf("commit automatic decision: %w", repository.ErrCommitFailed)},
		{name: "store unavailable", err: repository.ErrStoreUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := setupRedis(t)
			handler := &fakeHandler{err: tt.err}
			c := setupConsumer(t, "c1", handler, client)

			publishEmergency(t, client, "E1")
			require.NoError(t, c.ConsumeOnce(context.Background()))

			assert.Len(t, handler.emergencies, 1)
			assert.Equal(t, int64(1), pendingCount(t, client, testEmergencyStream))
			assert.Equal(t, int64(1), c.Metrics().GetSnapshot().MessagesFailed)
		})
	}
}

func TestConsumeOnce_PermanentErrorIsAcked(t *testing.T) {
	client := setupRedis(t)
	handler := &fakeHandler{err: fmt.Errorf("commit human decision for ghost: %w", repository.ErrNotFound)}
	c := setupConsumer(t, "c1", handler, client)
	ctx := context.Background()

	_, err := rediscommon.PublishJSONToStream(ctx, client, testDecisionStream, models.EventHumanDecisionCreated,
		models.HumanDecisionCreated{ResponseID: "resp-1", ChosenEmergencyID: "ghost"})
	require.NoError(t, err)

	require.NoError(t, c.ConsumeOnce(ctx))

	assert.Equal(t, int64(0), pendingCount(t, client, testDecisionStream))
	snapshot := c.Metrics().GetSnapshot()
	assert.Equal(t, int64(1), snapshot.MessagesDropped)
	assert.Equal(t, int64(1), snapshot.ErrorsNotFound)
}

func TestConsumeOnce_MalformedMessageIsAcked(t *testing.T) {
	client := setupRedis(t)
	handler := &fakeHandler{}
	c := setupConsumer(t, "c1", handler, client)
	ctx := context.Background()

	_, err := rediscommon.PublishToStream(ctx, client, testEmergencyStream, map[string]interface{}{
		"event_type": models.EventEmergencyCreated,
		"data":       "{not json",
	})
	require.NoError(t, err)
	_, err = rediscommon.PublishToStream(ctx, client, testEmergencyStream, map[string]interface{}{
		"event_type": models.EventEmergencyCreated,
	})
	require.NoError(t, err)

	require.NoError(t, c.ConsumeOnce(ctx))

	assert.Empty(t, handler.emergencies)
	assert.Equal(t, int64(0), pendingCount(t, client, testEmergencyStream))
	assert.Equal(t, int64(2), c.Metrics().GetSnapshot().ErrorsParse)
}

func TestReclaimStale_ReprocessesAbandonedMessages(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	failing := &fakeHandler{err: repository.ErrStoreUnavailable}
	crashed := setupConsumer(t, "c1", failing, client)
	publishEmergency(t, client, "E1")
	require.NoError(t, crashed.ConsumeOnce(ctx))
	require.Equal(t, int64(1), pendingCount(t, client, testEmergencyStream))

	healthy := &fakeHandler{}
	rescuer := setupConsumer(t, "c2", healthy, client)
	rescuer.cfg.ClaimIdle = time.Millisecond
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, rescuer.ReclaimStale(ctx))

	require.Len(t, healthy.emergencies, 1)
	assert.Equal(t, "E1", healthy.emergencies[0].EmergencyID)
	assert.Equal(t, int64(0), pendingCount(t, client, testEmergencyStream))
	assert.Equal(t, int64(1), rescuer.Metrics().GetSnapshot().MessagesReclaimed)
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	client := setupRedis(t)
	handler := &fakeHandler{}
	c := NewEventConsumer(Config{
		EmergencyStream: testEmergencyStream,
		DecisionStream:  testDecisionStream,
		ConsumerGroup:   testGroup,
		ConsumerName:    "c1",
		Block:           10 * time.Millisecond,
	}, client, handler, zap.NewNop())

	publishEmergency(t, client, "E1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool {
		handler.mu.Lock()
		defer handler.mu.Unlock()
		return len(handler.emergencies) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
