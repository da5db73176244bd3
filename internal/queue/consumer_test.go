package queue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/order-collab/internal/model"
)

type sinkSpy struct {
	userID string
	delta  model.MetricsDelta
	calls  int
}

func (s *sinkSpy) Submit(userID string, delta model.MetricsDelta) {
	s.userID = userID
	s.delta = delta
	s.calls++
}

func TestHandleMessageSubmitsDelta(t *testing.T) {
	body, err := json.Marshal(MetricsChangedEvent{
		UserID:    "alice",
		Metrics:   model.MetricsDelta{"orders_today": 12, "revenue": 420},
		ChangedAt: "2026-01-02T15:04:05Z",
	})
	require.NoError(t, err)

	spy := &sinkSpy{}
	require.NoError(t, handleMessage(body, spy))
	assert.Equal(t, 1, spy.calls)
	assert.Equal(t, "alice", spy.userID)
	assert.Equal(t, model.MetricsDelta{"orders_today": 12, "revenue": 420}, spy.delta)
}

func TestHandleMessageRejectsBadPayloads(t *testing.T) {
	spy := &sinkSpy{}
	assert.Error(t, handleMessage([]byte("{broken"), spy))
	assert.Error(t, handleMessage([]byte(`{"metrics":{"x":1}}`), spy), "missing user_id")
	assert.Zero(t, spy.calls)
}
