package producer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Topic: "warden.audit"}, nil)
	require.Error(t, err)

	_, err = New(Config{Brokers: []string{"localhost:9092"}}, nil)
	require.Error(t, err)
}

func TestClosedProducerRejectsPublish(t *testing.T) {
	// kgo clients connect lazily, so no broker is needed to construct one.
	p, err := New(Config{Brokers: []string{"127.0.0.1:1"}, Topic: "warden.audit"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "warden.audit", p.Topic())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = p.Close(ctx)

	assert.ErrorIs(t, p.Publish(context.Background(), Message{Value: []byte("{}")}), ErrClosed)
	assert.ErrorIs(t, p.Health(context.Background()), ErrClosed)
	assert.NoError(t, p.Close(context.Background()))
}
