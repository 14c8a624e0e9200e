package event

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RegistryAccord/discovery-go/internal/model"
)

func TestNewPublisherWithoutURL(t *testing.T) {
	p := NewPublisher("")
	require.NoError(t, p.PublishExchange(context.Background(), model.Exchange{ID: "x"}))
	require.NoError(t, p.Close())
}

func TestNewPublisherUnreachable(t *testing.T) {
	p := NewPublisher("nats://127.0.0.1:1")
	_, ok := p.(*noop)
	assert.True(t, ok)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "discovery.exchanges.query.completed",
		Subject(model.Exchange{Operation: "query", StatusCode: 200}))
	assert.Equal(t, "discovery.exchanges.addDocument.failed",
		Subject(model.Exchange{Operation: "addDocument", StatusCode: 400}))
	assert.Equal(t, "discovery.exchanges.getEnvironments.failed",
		Subject(model.Exchange{Operation: "getEnvironments", Error: "dial tcp: refused"}))
}

func TestEnvelope(t *testing.T) {
	at := time.Date(2017, 8, 1, 12, 0, 0, 0, time.UTC)
	env := Envelope(model.Exchange{ID: "01H", Operation: "query", StatusCode: 200, CorrelationID: "abc", CompletedAt: at})
	assert.Equal(t, "abc", env.CorrelationID)
	assert.Equal(t, at, env.OccurredAt)

	b, err := json.Marshal(env)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "discovery.exchanges.query.completed", decoded["type"])
	assert.Equal(t, "01H", decoded["payload"].(map[string]interface{})["id"])

	assert.NotEmpty(t, Envelope(model.Exchange{Operation: "query"}).CorrelationID)
}
